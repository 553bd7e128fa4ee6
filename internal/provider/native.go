package provider

import (
	"context"
	"fmt"
	"strings"

	yt "github.com/kkdai/youtube/v2"

	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
)

// NativeYouTube downloads YouTube videos with a pure-Go client, no external
// binary needed. It returns a true byte stream, so it is the one extractor
// whose artifacts skip local staging.
type NativeYouTube struct {
	client yt.Client
}

func NewNativeYouTube() *NativeYouTube { return &NativeYouTube{} }

func (p *NativeYouTube) Name() string { return NameNative }

func (p *NativeYouTube) Available() bool { return true }

func (p *NativeYouTube) SupportsPlatform(tag platform.Tag) bool {
	return tag == platform.TagYouTube
}

func (p *NativeYouTube) Fetch(ctx context.Context, rawURL string, opts Options, sink progress.Sink) (*Artifact, error) {
	video, err := p.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, classifyRunError(ctx, err)
	}

	format, err := pickFormat(video, opts)
	if err != nil {
		return nil, err
	}

	stream, size, err := p.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, classifyRunError(ctx, err)
	}

	filename := sanitizeFilename(video.Title) + extensionForMime(format.MimeType)
	return &Artifact{
		Stream:      newProgressReader(stream, size, sink),
		Filename:    filename,
		ContentType: ContentTypeFor(filename),
		Size:        size,
	}, nil
}

func pickFormat(video *yt.Video, opts Options) (*yt.Format, error) {
	formats := video.Formats.WithAudioChannels()
	if opts.AudioOnly {
		if audio := video.Formats.Type("audio"); len(audio) > 0 {
			formats = audio
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: no playable formats", ErrExtractionFailed)
	}

	formats.Sort()
	if opts.Quality == "worst" {
		return &formats[len(formats)-1], nil
	}
	return &formats[0], nil
}

func extensionForMime(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "video/mp4":
		return ".mp4"
	case "video/webm", "audio/webm":
		return ".webm"
	case "audio/mp4":
		return ".m4a"
	case "video/3gpp":
		return ".3gp"
	default:
		return ".mp4"
	}
}

// sanitizeFilename strips characters that are hostile to filesystems and
// object keys.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", "\x00", "_",
	)
	clean := strings.TrimSpace(replacer.Replace(name))
	if clean == "" {
		return "download"
	}
	return clean
}
