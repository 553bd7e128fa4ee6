package provider

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// findStagedFile locates the artifact an extractor left in its staging
// directory. Extractors sometimes leave partial or sidecar files next to the
// result, so the largest regular file wins.
func findStagedFile(dir string) (string, fs.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("reading staging dir: %w", err)
	}

	var (
		bestPath string
		bestInfo fs.FileInfo
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".part" || ext == ".ytdl" || ext == ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if bestInfo == nil || info.Size() > bestInfo.Size() {
			bestPath = filepath.Join(dir, entry.Name())
			bestInfo = info
		}
	}

	if bestInfo == nil {
		return "", nil, fmt.Errorf("%w: no output file produced", ErrExtractionFailed)
	}
	return bestPath, bestInfo, nil
}

func statFile(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return info, nil
}

// stagedArtifact builds an Artifact for a file on disk.
func stagedArtifact(path string, info fs.FileInfo) *Artifact {
	name := filepath.Base(path)
	return &Artifact{
		LocalPath:   path,
		Filename:    name,
		ContentType: ContentTypeFor(name),
		Size:        info.Size(),
	}
}
