package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
)

// maxScrapeBytes bounds how much of an HTML page is read when looking for an
// embedded media URL.
const maxScrapeBytes = 2 << 20

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Direct fetches URL bytes over plain HTTP and hands back a true stream.
// When the response turns out to be an HTML page and the caller did not ask
// for a literal download, it scrapes the page for an embedded media URL and
// fetches that instead.
type Direct struct {
	client *http.Client
}

func NewDirect() *Direct {
	return &Direct{client: &http.Client{}}
}

func (d *Direct) Name() string { return NameDirect }

func (d *Direct) Available() bool { return true }

func (d *Direct) SupportsPlatform(tag platform.Tag) bool {
	return tag != platform.TagUnknown
}

func (d *Direct) Fetch(ctx context.Context, rawURL string, opts Options, sink progress.Sink) (*Artifact, error) {
	resp, err := d.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if isHTMLContentType(resp.Header.Get("Content-Type")) && !opts.DirectDownload {
		mediaURL, scrapeErr := d.scrapeMediaURL(resp)
		if scrapeErr != nil {
			return nil, scrapeErr
		}
		resp, err = d.get(ctx, mediaURL)
		if err != nil {
			return nil, err
		}
		if isHTMLContentType(resp.Header.Get("Content-Type")) {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: scraped media URL also served HTML", ErrExtractionFailed)
		}
	}

	filename := responseFilename(resp)
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeFor(filename)
	}

	size := resp.ContentLength
	if size < 0 {
		size = -1
	}

	return &Artifact{
		Stream:      newProgressReader(resp.Body, size, sink),
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (d *Direct) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyHTTPError(ctx, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: HTTP %d fetching %s", ErrNetwork, resp.StatusCode, rawURL)
	}
	return resp, nil
}

// scrapeMediaURL consumes and closes the HTML response, returning the first
// embedded media URL found in it.
func (d *Direct) scrapeMediaURL(resp *http.Response) (string, error) {
	defer resp.Body.Close()

	base := resp.Request.URL
	mediaURL, err := extractMediaURL(io.LimitReader(resp.Body, maxScrapeBytes), base)
	if err != nil {
		return "", fmt.Errorf("%w: %s has no extractable media: %v", ErrExtractionFailed, base, err)
	}
	return mediaURL, nil
}

func classifyHTTPError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func isHTMLContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func responseFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return sanitizeFilename(name)
			}
		}
	}

	name := path.Base(resp.Request.URL.Path)
	if name == "" || name == "/" || name == "." {
		return "download"
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return sanitizeFilename(strings.TrimSpace(name))
}
