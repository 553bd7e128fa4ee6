// Package pipeline runs a resolved provider chain for one task: fetch,
// validate, upload to object storage, presign. Providers are tried in order
// until one produces an acceptable artifact.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
	"github.com/olastephen/video-audio-downloader/internal/provider"
	"github.com/olastephen/video-audio-downloader/internal/storage"
)

// Config tunes a Pipeline.
type Config struct {
	// ProviderTimeout is the wall-clock budget for a single fetch attempt.
	ProviderTimeout time.Duration
	// UploadTimeout bounds the storage upload of a fetched artifact.
	UploadTimeout time.Duration
	// MinArtifactBytes is the size floor below which an artifact is judged
	// to be an error page or a stub, not media.
	MinArtifactBytes int64
	// WorkDir is the base under which per-attempt staging directories are
	// created. Defaults to the OS temp dir.
	WorkDir string
	// URLExpiry is the lifetime of presigned download URLs.
	URLExpiry time.Duration
}

func (c *Config) defaults() {
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 30 * time.Minute
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = 15 * time.Minute
	}
	if c.MinArtifactBytes <= 0 {
		c.MinArtifactBytes = 100_000
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	if c.URLExpiry <= 0 {
		c.URLExpiry = 12 * time.Hour
	}
}

// Attempt records one provider try, success or not.
type Attempt struct {
	Provider string        `json:"provider"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Result is a completed download.
type Result struct {
	ObjectName  string
	Filename    string
	ContentType string
	Size        int64
	DownloadURL string
	Attempts    []Attempt
}

// Pipeline executes provider chains against one storage backend.
type Pipeline struct {
	store storage.Storage
	cfg   Config
}

func New(store storage.Storage, cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{store: store, cfg: cfg}
}

// Execute walks the chain until a provider delivers a valid, uploaded
// artifact. onUploading fires once per successful fetch, right before the
// upload starts, so callers can flip task state.
//
// Failure of one provider moves on to the next; two things end the walk
// early: the parent context dying, and the storage backend being
// unreachable, which no other provider can route around.
func (p *Pipeline) Execute(
	ctx context.Context,
	taskID, rawURL string,
	tag platform.Tag,
	opts provider.Options,
	chain []provider.Provider,
	sink progress.Sink,
	onUploading func(),
) (*Result, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no provider can handle %s URLs", provider.ErrUnsupportedURL, tag)
	}

	var (
		attempts []Attempt
		failures []string
	)
	for _, prov := range chain {
		started := time.Now()
		result, err := p.attempt(ctx, taskID, rawURL, opts, prov, sink, onUploading)

		record := Attempt{Provider: prov.Name(), Duration: time.Since(started)}
		if err != nil {
			record.Error = err.Error()
			failures = append(failures, prov.Name()+": "+errorKind(err))
		}
		attempts = append(attempts, record)

		if err == nil {
			result.Attempts = attempts
			slog.Info("download completed",
				"taskId", taskID, "provider", prov.Name(),
				"object", result.ObjectName, "size", result.Size)
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, storage.ErrUnavailable) {
			return nil, fmt.Errorf("after %s: %w", prov.Name(), err)
		}

		slog.Warn("provider attempt failed",
			"taskId", taskID, "provider", prov.Name(), "error", err)
	}

	return nil, fmt.Errorf("%w: %s URL, %d provider(s) tried (%s)",
		provider.ErrAllProvidersFailed, tag, len(attempts), strings.Join(failures, "; "))
}

// errorKind reduces an attempt error to the failure class it belongs to, so
// the aggregate error names what went wrong per provider without dragging
// whole tool transcripts into the task record.
func errorKind(err error) string {
	switch {
	case errors.Is(err, provider.ErrTimeout):
		return "timed out"
	case errors.Is(err, provider.ErrUnsupportedURL):
		return "unsupported URL"
	case errors.Is(err, provider.ErrValidationFailed):
		return "validation failed"
	case errors.Is(err, provider.ErrNetwork):
		return "network error"
	case errors.Is(err, provider.ErrExtractionFailed):
		return "extraction failed"
	default:
		return "failed"
	}
}

// attempt runs one provider inside its own staging directory and timeout,
// then uploads whatever it produced. The staging directory is removed no
// matter how the attempt ends.
func (p *Pipeline) attempt(
	ctx context.Context,
	taskID, rawURL string,
	opts provider.Options,
	prov provider.Provider,
	sink progress.Sink,
	onUploading func(),
) (*Result, error) {
	workDir, err := os.MkdirTemp(p.cfg.WorkDir, "dl-"+taskID+"-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			slog.Warn("could not remove staging dir", "dir", workDir, "error", rmErr)
		}
	}()
	opts.WorkDir = workDir

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
	defer cancel()

	artifact, err := prov.Fetch(fetchCtx, rawURL, opts, sink)
	if err != nil {
		return nil, err
	}

	if onUploading != nil {
		onUploading()
	}

	uploadCtx, cancelUpload := context.WithTimeout(ctx, p.cfg.UploadTimeout)
	defer cancelUpload()

	result, err := p.upload(uploadCtx, taskID, artifact)
	if err != nil && errors.Is(uploadCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		// An upload that ran out its budget is this attempt's failure, not
		// storage unavailability; the next provider still gets its turn.
		return nil, fmt.Errorf("%w: upload exceeded %s", provider.ErrTimeout, p.cfg.UploadTimeout)
	}
	return result, err
}

func (p *Pipeline) upload(ctx context.Context, taskID string, artifact *provider.Artifact) (*Result, error) {
	objectName := taskID + "_" + artifact.Filename

	var (
		size int64
		err  error
	)
	switch {
	case artifact.Stream != nil:
		size, err = p.uploadStream(ctx, objectName, artifact)
	case artifact.LocalPath != "":
		size, err = p.uploadFile(ctx, objectName, artifact)
	default:
		return nil, fmt.Errorf("%w: provider returned an empty artifact", provider.ErrExtractionFailed)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		ObjectName:  objectName,
		Filename:    artifact.Filename,
		ContentType: artifact.ContentType,
		Size:        size,
	}

	// A failed presign does not undo a finished upload; the download
	// handler can presign again on demand.
	url, err := p.store.PresignGet(ctx, objectName, artifact.Filename, p.cfg.URLExpiry)
	if err != nil {
		slog.Warn("presigning after upload failed", "object", objectName, "error", err)
	} else {
		result.DownloadURL = url
	}

	return result, nil
}

// uploadStream sniffs the head of the stream before committing bytes to
// storage, then enforces the size floor afterwards, since the true length of
// a stream is only known once it has been drained.
func (p *Pipeline) uploadStream(ctx context.Context, objectName string, artifact *provider.Artifact) (int64, error) {
	defer artifact.Stream.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(artifact.Stream, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: reading stream: %v", provider.ErrNetwork, err)
	}
	head = head[:n]

	if looksLikeHTML(head) {
		return 0, fmt.Errorf("%w: stream is an HTML document, not media", provider.ErrValidationFailed)
	}

	body := io.MultiReader(bytes.NewReader(head), artifact.Stream)
	written, err := p.store.PutStream(ctx, objectName, body, artifact.Size, artifact.ContentType)
	if err != nil {
		return 0, err
	}

	if written < p.cfg.MinArtifactBytes {
		if delErr := p.store.Delete(ctx, objectName); delErr != nil {
			slog.Warn("could not delete undersized object", "object", objectName, "error", delErr)
		}
		return 0, fmt.Errorf("%w: uploaded %d bytes, floor is %d",
			provider.ErrValidationFailed, written, p.cfg.MinArtifactBytes)
	}
	return written, nil
}

// uploadFile validates the staged file in place, then hands the path to
// storage. The file itself lives in the attempt's staging directory and is
// removed with it.
func (p *Pipeline) uploadFile(ctx context.Context, objectName string, artifact *provider.Artifact) (int64, error) {
	if err := validateStagedFile(artifact.LocalPath, p.cfg.MinArtifactBytes); err != nil {
		return 0, err
	}
	return p.store.PutFile(ctx, objectName, artifact.LocalPath, artifact.ContentType)
}
