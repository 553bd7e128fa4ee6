package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	ytdl "github.com/lrstanley/go-ytdlp"

	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
)

const progressInterval = 500 * time.Millisecond

// YtDLP is the primary extractor, wrapping the yt-dlp binary. It handles
// every platform yt-dlp has an extractor for, which in practice is every tag
// except unknown.
type YtDLP struct{}

func NewYtDLP() *YtDLP { return &YtDLP{} }

func (p *YtDLP) Name() string { return NamePrimary }

func (p *YtDLP) Available() bool {
	_, err := exec.LookPath("yt-dlp")
	return err == nil
}

func (p *YtDLP) SupportsPlatform(tag platform.Tag) bool {
	return tag != platform.TagUnknown
}

func (p *YtDLP) Fetch(ctx context.Context, rawURL string, opts Options, sink progress.Sink) (*Artifact, error) {
	dl := ytdl.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		Output(filepath.Join(opts.WorkDir, "%(title)s.%(ext)s"))

	if opts.AudioOnly {
		dl = dl.Format("bestaudio/best").ExtractAudio().AudioFormat(audioFormat(opts.Format))
	} else {
		dl = dl.Format(formatSelector(opts))
		if opts.Format != "" {
			dl = dl.MergeOutputFormat(opts.Format)
		}
	}

	dl.ProgressFunc(progressInterval, func(update ytdl.ProgressUpdate) {
		sink.Report(int64(update.DownloadedBytes), int64(update.TotalBytes))
	})

	result, err := dl.Run(ctx, rawURL)
	if err != nil {
		return nil, classifyRunError(ctx, err)
	}

	// Prefer the filename yt-dlp reported; fall back to scanning our own
	// staging directory.
	if result != nil {
		if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Filename != nil {
			path := *info[0].Filename
			if fi, statErr := statFile(path); statErr == nil {
				return stagedArtifact(path, fi), nil
			}
			slog.Debug("reported output file missing, scanning staging dir", "path", path)
		}
	}

	path, fi, err := findStagedFile(opts.WorkDir)
	if err != nil {
		return nil, err
	}
	return stagedArtifact(path, fi), nil
}

// Probe fetches metadata for a URL without downloading it.
func (p *YtDLP) Probe(ctx context.Context, rawURL string) (*MediaInfo, error) {
	dl := ytdl.New().
		SkipDownload().
		NoPlaylist().
		DumpJSON()

	result, err := dl.Run(ctx, rawURL)
	if err != nil {
		return nil, classifyRunError(ctx, err)
	}

	var info MediaInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return nil, fmt.Errorf("%w: parsing metadata: %v", ErrExtractionFailed, err)
	}
	return &info, nil
}

func formatSelector(opts Options) string {
	switch opts.Quality {
	case "", "best":
		return "bestvideo*+bestaudio/best"
	case "worst":
		return "worst"
	default:
		// Raw yt-dlp selector passed through untouched.
		return opts.Quality
	}
}

func audioFormat(format string) string {
	switch format {
	case "mp3", "m4a", "wav", "flac", "opus", "vorbis", "aac":
		return format
	default:
		return "mp3"
	}
}

func classifyRunError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case strings.Contains(err.Error(), "Unsupported URL"):
		return fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	default:
		return fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
}
