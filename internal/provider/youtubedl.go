package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
)

// YoutubeDL is the legacy extractor, wrapping the youtube-dl binary. Kept in
// the chain because it still succeeds on some sites where newer extractors
// have regressed.
type YoutubeDL struct{}

func NewYoutubeDL() *YoutubeDL { return &YoutubeDL{} }

func (p *YoutubeDL) Name() string { return NameLegacy }

func (p *YoutubeDL) Available() bool {
	_, err := exec.LookPath("youtube-dl")
	return err == nil
}

func (p *YoutubeDL) SupportsPlatform(tag platform.Tag) bool {
	return tag != platform.TagUnknown
}

func (p *YoutubeDL) Fetch(ctx context.Context, rawURL string, opts Options, sink progress.Sink) (*Artifact, error) {
	args := []string{
		"--no-playlist",
		"--restrict-filenames",
		"--no-continue",
		"-o", filepath.Join(opts.WorkDir, "%(title)s.%(ext)s"),
	}

	if opts.AudioOnly {
		args = append(args, "-f", "bestaudio/best", "-x", "--audio-format", audioFormat(opts.Format))
	} else {
		args = append(args, "-f", legacyFormatSelector(opts))
	}
	args = append(args, rawURL)

	cmd := exec.CommandContext(ctx, "youtube-dl", args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	slog.Debug("executing youtube-dl", "args", args)

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: youtube-dl killed after deadline", ErrTimeout)
			}
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: youtube-dl: %v: %s", ErrExtractionFailed, err, tail(stderrBuf.String(), 300))
	}

	path, fi, err := findStagedFile(opts.WorkDir)
	if err != nil {
		return nil, err
	}
	// youtube-dl only prints progress to a terminal; report the final size
	// once so the sink sees completion.
	sink.Report(fi.Size(), fi.Size())
	return stagedArtifact(path, fi), nil
}

func legacyFormatSelector(opts Options) string {
	switch opts.Quality {
	case "", "best":
		return "best"
	case "worst":
		return "worst"
	default:
		return opts.Quality
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
