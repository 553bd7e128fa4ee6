// Package scheduler owns the task lifecycle: admission under a bounded
// concurrency gate, state transitions, progress tracking, retention sweeps
// and shutdown.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olastephen/video-audio-downloader/internal/pipeline"
	"github.com/olastephen/video-audio-downloader/internal/progress"
	"github.com/olastephen/video-audio-downloader/internal/provider"
	"github.com/olastephen/video-audio-downloader/internal/storage"
	"github.com/olastephen/video-audio-downloader/internal/store"
	"github.com/olastephen/video-audio-downloader/internal/task"
)

// ErrInvalidURL rejects submissions before a task is ever created.
var ErrInvalidURL = errors.New("invalid URL")

// shutdownMessage is stored on tasks that were cut off by server shutdown.
const shutdownMessage = "Server shutdown"

// Config tunes the scheduler.
type Config struct {
	// MaxConcurrent bounds how many tasks may be downloading or uploading
	// at once. Everything above it waits in queued.
	MaxConcurrent int
	// Retention is how long terminal tasks stay visible before the sweep
	// evicts them.
	Retention time.Duration
	// CleanupInterval is how often the sweep runs.
	CleanupInterval time.Duration
}

func (c *Config) defaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 3
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Hour
	}
}

// Scheduler runs submitted downloads through the pipeline.
type Scheduler struct {
	pipe      *pipeline.Pipeline
	providers []provider.Provider
	mem       *store.Memory
	durable   store.Store // nil when running without a database
	cfg       Config

	slots  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// New builds a scheduler and starts its retention sweep. durable may be nil.
func New(pipe *pipeline.Pipeline, providers []provider.Provider, mem *store.Memory, durable store.Store, cfg Config) *Scheduler {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		pipe:      pipe,
		providers: providers,
		mem:       mem,
		durable:   durable,
		cfg:       cfg,
		slots:     make(chan struct{}, cfg.MaxConcurrent),
		ctx:       ctx,
		cancel:    cancel,
	}

	s.wg.Add(1)
	go s.sweep()

	return s
}

// Submit validates the URL, registers a queued task and returns immediately.
// The download itself runs on a worker goroutine behind the admission gate.
func (s *Scheduler) Submit(rawURL string, opts task.Options) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", fmt.Errorf("%w: must start with http:// or https://", ErrInvalidURL)
	}

	now := time.Now()
	t := task.Task{
		ID:        uuid.NewString(),
		URL:       trimmed,
		Options:   opts,
		State:     task.StateQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mem.Put(t)
	s.persistCreate(t)

	s.wg.Add(1)
	go s.run(t.ID, trimmed, opts)

	slog.Info("task submitted", "taskId", t.ID, "url", trimmed)
	return t.ID, nil
}

// Get returns a point-in-time copy of a task.
func (s *Scheduler) Get(id string) (task.Task, bool) {
	return s.mem.Get(id)
}

// List returns copies of all tracked tasks, newest first.
func (s *Scheduler) List() []task.Task {
	return s.mem.List()
}

// Counts returns the number of tasks per state.
func (s *Scheduler) Counts() map[task.State]int {
	return s.mem.Counts()
}

// ActiveSlots returns how many admission slots are currently held.
func (s *Scheduler) ActiveSlots() int { return len(s.slots) }

// MaxConcurrent returns the admission gate size.
func (s *Scheduler) MaxConcurrent() int { return s.cfg.MaxConcurrent }

// Shutdown cancels every running download and waits for the workers to
// settle their tasks. Tasks that were still queued pass through the gate,
// see the dead context and settle as cancelled too, which keeps slot
// accounting honest all the way down.
func (s *Scheduler) Shutdown() {
	s.shutdownOnce.Do(func() {
		slog.Info("scheduler shutting down")
		s.cancel()
		s.wg.Wait()
		slog.Info("scheduler stopped")
	})
}

// run is the worker for one task. It is the only goroutine that mutates the
// task after submission.
func (s *Scheduler) run(id, rawURL string, opts task.Options) {
	defer s.wg.Done()

	s.slots <- struct{}{}
	defer func() { <-s.slots }()

	if s.ctx.Err() != nil {
		s.settle(id, task.StateCancelled, shutdownMessage)
		return
	}

	s.transition(id, task.StateDownloading)

	provOpts := provider.Options{
		Quality:        opts.Quality,
		Format:         opts.Format,
		AudioOnly:      opts.AudioOnly,
		DirectDownload: opts.DirectDownload,
	}
	tag, chain := provider.Resolve(rawURL, provOpts, s.providers)

	sink := progress.Func(func(done, total int64) {
		s.reportProgress(id, done, total)
	})

	result, err := s.pipe.Execute(s.ctx, id, rawURL, tag, provOpts, chain, sink, func() {
		s.transition(id, task.StateUploading)
	})

	switch {
	case err == nil:
		s.complete(id, result)
	case s.ctx.Err() != nil:
		s.settle(id, task.StateCancelled, shutdownMessage)
	default:
		slog.Error("task failed", "taskId", id, "platform", tag, "error", err)
		s.settle(id, task.StateFailed, userMessage(err))
	}
}

// userMessage maps an internal error chain to the short classified string
// stored on the task. Raw provider output stays in the logs.
func userMessage(err error) string {
	switch {
	case errors.Is(err, provider.ErrAllProvidersFailed):
		return err.Error()
	case errors.Is(err, provider.ErrUnsupportedURL):
		return "no provider can handle this URL"
	case errors.Is(err, storage.ErrUnavailable):
		return "object storage is unavailable"
	case errors.Is(err, provider.ErrTimeout):
		return "download timed out"
	case errors.Is(err, provider.ErrValidationFailed):
		return "downloaded content failed validation"
	default:
		return err.Error()
	}
}

func (s *Scheduler) transition(id string, state task.State) {
	s.mem.Mutate(id, func(t *task.Task) {
		if t.State.IsTerminal() {
			return
		}
		t.State = state
	})
	s.persistUpdate(id, store.Fields{State: store.State(state)})
}

// reportProgress applies the monotonic clamp: within a run the number never
// moves backwards, and unknown totals leave it untouched.
func (s *Scheduler) reportProgress(id string, done, total int64) {
	if total <= 0 {
		return
	}
	pct := float64(done) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}

	persist := false
	s.mem.Mutate(id, func(t *task.Task) {
		if !t.State.IsActive() || pct <= t.Progress {
			return
		}
		// Persist on decile changes only; every sample would hammer the
		// database for nothing.
		persist = int(pct/10) != int(t.Progress/10)
		t.Progress = pct
	})
	if persist {
		s.persistUpdate(id, store.Fields{Progress: store.Float(pct)})
	}
}

func (s *Scheduler) complete(id string, result *pipeline.Result) {
	s.mem.Mutate(id, func(t *task.Task) {
		t.State = task.StateCompleted
		t.Progress = 100
		t.Filename = result.Filename
		t.ObjectName = result.ObjectName
		t.DownloadURL = result.DownloadURL
		t.Size = result.Size
		t.Error = ""
	})
	s.persistUpdate(id, store.Fields{
		State:       store.State(task.StateCompleted),
		Progress:    store.Float(100),
		Filename:    store.Str(result.Filename),
		ObjectName:  store.Str(result.ObjectName),
		DownloadURL: store.Str(result.DownloadURL),
		Size:        store.Int(result.Size),
	})
}

// settle moves a task into a terminal failure state. Already-terminal tasks
// are left alone.
func (s *Scheduler) settle(id string, state task.State, message string) {
	changed := false
	s.mem.Mutate(id, func(t *task.Task) {
		if t.State.IsTerminal() {
			return
		}
		t.State = state
		t.Error = message
		changed = true
	})
	if changed {
		s.persistUpdate(id, store.Fields{
			State: store.State(state),
			Error: store.Str(message),
		})
	}
}

// sweep evicts terminal tasks from the in-memory view once they are past
// retention. Durable rows are never deleted here; the database keeps the
// full history.
func (s *Scheduler) sweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if removed := s.mem.DeleteOlderThan(s.cfg.Retention); removed > 0 {
				slog.Info("evicted finished tasks", "count", removed)
			}
		}
	}
}

// Database failures never fail a download; the in-memory table stays
// authoritative and the mirror catches up on the next write.

func (s *Scheduler) persistCreate(t task.Task) {
	if s.durable == nil {
		return
	}
	if err := s.durable.Create(context.Background(), t); err != nil {
		slog.Warn("could not persist task", "taskId", t.ID, "error", err)
	}
}

func (s *Scheduler) persistUpdate(id string, f store.Fields) {
	if s.durable == nil {
		return
	}
	if err := s.durable.Update(context.Background(), id, f); err != nil {
		slog.Warn("could not persist task update", "taskId", id, "error", err)
	}
}
