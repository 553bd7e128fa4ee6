// Package provider contains the download providers and the fallback chain
// resolver that orders them for a given URL.
package provider

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
)

// Canonical provider names, used by the resolver to build chains.
const (
	NamePrimary = "yt-dlp"
	NameNative  = "youtube-native"
	NameLegacy  = "youtube-dl"
	NameDirect  = "direct"
)

// Options are the per-fetch preferences. WorkDir is plumbing supplied by the
// pipeline, not by callers: providers that stage to disk must write only
// under it.
type Options struct {
	// Quality is "best", "worst" or a raw extractor format selector.
	Quality string
	// Format is the preferred container extension (mp4, webm, ...).
	Format string
	// AudioOnly extracts the audio track instead of the full video.
	AudioOnly bool
	// DirectDownload fetches the URL bytes as-is, no extraction.
	DirectDownload bool
	// WorkDir is this attempt's private staging directory.
	WorkDir string
}

// Artifact is what a successful fetch hands back. Exactly one of Stream and
// LocalPath is set: extractor providers stage to disk, the direct provider
// streams.
type Artifact struct {
	Stream      io.ReadCloser
	LocalPath   string
	Filename    string
	ContentType string
	// Size in bytes, -1 when unknown (open-ended streams).
	Size int64
}

// Provider is a single download strategy.
type Provider interface {
	Name() string
	// Available reports whether the provider can run right now, e.g. its
	// external binary is installed. Checked once per chain resolution.
	Available() bool
	SupportsPlatform(tag platform.Tag) bool
	Fetch(ctx context.Context, rawURL string, opts Options, sink progress.Sink) (*Artifact, error)
}

// MediaInfo is probe metadata for a URL, served without downloading.
type MediaInfo struct {
	Title     string  `json:"title"`
	Uploader  string  `json:"uploader,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Extractor string  `json:"extractor,omitempty"`
	Ext       string  `json:"ext,omitempty"`
	Size      int64   `json:"filesize_approx,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	URL       string  `json:"webpage_url,omitempty"`
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".flv":  "video/x-flv",
	".wmv":  "video/x-ms-wmv",
	".m4v":  "video/x-m4v",
	".3gp":  "video/3gpp",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

// ContentTypeFor maps a filename to a MIME type by extension.
func ContentTypeFor(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// progressReader counts bytes through an underlying stream and reports them
// to a sink on every read.
type progressReader struct {
	r     io.ReadCloser
	sink  progress.Sink
	done  int64
	total int64
}

func newProgressReader(r io.ReadCloser, total int64, sink progress.Sink) io.ReadCloser {
	return &progressReader{r: r, sink: sink, total: total}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.sink.Report(p.done, p.total)
	}
	return n, err
}

func (p *progressReader) Close() error { return p.r.Close() }
