package scheduler

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olastephen/video-audio-downloader/internal/pipeline"
	"github.com/olastephen/video-audio-downloader/internal/platform"
	"github.com/olastephen/video-audio-downloader/internal/progress"
	"github.com/olastephen/video-audio-downloader/internal/provider"
	"github.com/olastephen/video-audio-downloader/internal/storage/fake"
	"github.com/olastephen/video-audio-downloader/internal/store"
	"github.com/olastephen/video-audio-downloader/internal/task"
)

type fetchFunc func(ctx context.Context, url string, opts provider.Options, sink progress.Sink) (*provider.Artifact, error)

type stubProvider struct {
	name  string
	fetch fetchFunc
}

func (s *stubProvider) Name() string                       { return s.name }
func (s *stubProvider) Available() bool                    { return true }
func (s *stubProvider) SupportsPlatform(platform.Tag) bool { return true }
func (s *stubProvider) Fetch(ctx context.Context, url string, opts provider.Options, sink progress.Sink) (*provider.Artifact, error) {
	return s.fetch(ctx, url, opts, sink)
}

func artifact() *provider.Artifact {
	data := bytes.Repeat([]byte{0x42}, 2048)
	return &provider.Artifact{
		Stream:      io.NopCloser(bytes.NewReader(data)),
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(data)),
	}
}

func instantFetch(context.Context, string, provider.Options, progress.Sink) (*provider.Artifact, error) {
	return artifact(), nil
}

func newScheduler(t *testing.T, fetch fetchFunc, cfg Config) (*Scheduler, *fake.Storage) {
	t.Helper()
	st := fake.New()
	pipe := pipeline.New(st, pipeline.Config{MinArtifactBytes: 1, WorkDir: t.TempDir()})
	prov := &stubProvider{name: provider.NamePrimary, fetch: fetch}
	s := New(pipe, []provider.Provider{prov}, store.NewMemory(), nil, cfg)
	t.Cleanup(s.Shutdown)
	return s, st
}

func waitForState(t *testing.T, s *Scheduler, id string, want task.State) task.Task {
	t.Helper()
	var got task.Task
	require.Eventually(t, func() bool {
		tk, ok := s.Get(id)
		got = tk
		return ok && tk.State == want
	}, 5*time.Second, 5*time.Millisecond, "task %s never reached %s (last: %+v)", id, want, got)
	return got
}

func TestSubmitRejectsNonHTTPURL(t *testing.T) {
	s, _ := newScheduler(t, instantFetch, Config{})

	for _, url := range []string{"", "ftp://example.com/a", "file:///etc/passwd", "garbage"} {
		_, err := s.Submit(url, task.Options{})
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", url)
	}

	assert.Empty(t, s.List(), "rejected submissions never create tasks")
}

func TestTaskRunsToCompletion(t *testing.T) {
	s, st := newScheduler(t, instantFetch, Config{})

	id, err := s.Submit("https://example.com/v/1", task.Options{})
	require.NoError(t, err)

	got := waitForState(t, s, id, task.StateCompleted)
	assert.Equal(t, 100.0, got.Progress)
	assert.Equal(t, "clip.mp4", got.Filename)
	assert.Equal(t, id+"_clip.mp4", got.ObjectName)
	assert.NotEmpty(t, got.DownloadURL)
	assert.Equal(t, int64(2048), got.Size)
	assert.Empty(t, got.Error)

	_, ok := st.Object(id + "_clip.mp4")
	assert.True(t, ok)
}

func TestTaskFailureRecordsError(t *testing.T) {
	s, _ := newScheduler(t, func(context.Context, string, provider.Options, progress.Sink) (*provider.Artifact, error) {
		return nil, provider.ErrExtractionFailed
	}, Config{})

	id, err := s.Submit("https://example.com/v/1", task.Options{})
	require.NoError(t, err)

	got := waitForState(t, s, id, task.StateFailed)
	assert.Contains(t, got.Error, "all providers failed")
	assert.Contains(t, got.Error, provider.NamePrimary+": extraction failed")
}

func TestConcurrencyGateHoldsExtraTasksInQueued(t *testing.T) {
	release := make(chan struct{})
	var running atomic.Int32
	blocking := func(ctx context.Context, _ string, _ provider.Options, _ progress.Sink) (*provider.Artifact, error) {
		running.Add(1)
		defer running.Add(-1)
		select {
		case <-release:
			return artifact(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s, _ := newScheduler(t, blocking, Config{MaxConcurrent: 2})

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := s.Submit("https://example.com/v", task.Options{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	// At no point do more than two tasks hold slots; the third stays queued.
	counts := s.Counts()
	assert.Equal(t, 2, counts[task.StateDownloading])
	assert.Equal(t, 1, counts[task.StateQueued])
	assert.LessOrEqual(t, s.ActiveSlots(), 2)

	close(release)
	for _, id := range ids {
		waitForState(t, s, id, task.StateCompleted)
	}
}

func TestShutdownCancelsActiveAndQueuedTasks(t *testing.T) {
	blocking := func(ctx context.Context, _ string, _ provider.Options, _ progress.Sink) (*provider.Artifact, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s, _ := newScheduler(t, blocking, Config{MaxConcurrent: 1})

	first, err := s.Submit("https://example.com/v/1", task.Options{})
	require.NoError(t, err)
	waitForState(t, s, first, task.StateDownloading)

	// Second task is stuck behind the gate.
	second, err := s.Submit("https://example.com/v/2", task.Options{})
	require.NoError(t, err)

	s.Shutdown()

	for _, id := range []string{first, second} {
		got, ok := s.Get(id)
		require.True(t, ok)
		assert.Equal(t, task.StateCancelled, got.State, "task %s", id)
		assert.Equal(t, "Server shutdown", got.Error)
	}
	assert.Zero(t, s.ActiveSlots(), "every slot released on shutdown")
}

func TestProgressNeverDecreases(t *testing.T) {
	s, _ := newScheduler(t, instantFetch, Config{})

	id, err := s.Submit("https://example.com/v", task.Options{})
	require.NoError(t, err)
	waitForState(t, s, id, task.StateCompleted)

	// Drive the sink directly; the worker is done so the task is terminal
	// and progress is pinned at 100.
	s.reportProgress(id, 1, 100)
	got, _ := s.Get(id)
	assert.Equal(t, 100.0, got.Progress)
}

func TestReportProgressClamp(t *testing.T) {
	s, _ := newScheduler(t, instantFetch, Config{})
	s.mem.Put(task.Task{ID: "p1", State: task.StateDownloading, CreatedAt: time.Now(), UpdatedAt: time.Now()})

	s.reportProgress("p1", 50, 100)
	got, _ := s.Get("p1")
	assert.Equal(t, 50.0, got.Progress)

	// A stale lower sample does not move the number back.
	s.reportProgress("p1", 30, 100)
	got, _ = s.Get("p1")
	assert.Equal(t, 50.0, got.Progress)

	// Unknown totals leave progress untouched.
	s.reportProgress("p1", 9999, 0)
	got, _ = s.Get("p1")
	assert.Equal(t, 50.0, got.Progress)

	// Overshoot clamps to 100.
	s.reportProgress("p1", 200, 100)
	got, _ = s.Get("p1")
	assert.Equal(t, 100.0, got.Progress)
}

func TestTerminalStatesNeverTransition(t *testing.T) {
	s, _ := newScheduler(t, instantFetch, Config{})

	id, err := s.Submit("https://example.com/v", task.Options{})
	require.NoError(t, err)
	waitForState(t, s, id, task.StateCompleted)

	s.settle(id, task.StateFailed, "too late")
	s.transition(id, task.StateDownloading)

	got, _ := s.Get(id)
	assert.Equal(t, task.StateCompleted, got.State)
	assert.Empty(t, got.Error)
}

func TestSweepEvictsOldTerminalTasks(t *testing.T) {
	s, _ := newScheduler(t, instantFetch, Config{
		Retention:       time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	})

	id, err := s.Submit("https://example.com/v", task.Options{})
	require.NoError(t, err)
	waitForState(t, s, id, task.StateCompleted)

	require.Eventually(t, func() bool {
		_, ok := s.Get(id)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "terminal task was never evicted")
}

func TestSweepLeavesDurableRowsIntact(t *testing.T) {
	st := fake.New()
	pipe := pipeline.New(st, pipeline.Config{MinArtifactBytes: 1, WorkDir: t.TempDir()})
	prov := &stubProvider{name: provider.NamePrimary, fetch: instantFetch}

	db, err := store.NewSQLite(context.Background(), t.TempDir()+"/tasks.db")
	require.NoError(t, err)

	s := New(pipe, []provider.Provider{prov}, store.NewMemory(), db, Config{
		Retention:       time.Millisecond,
		CleanupInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { s.Shutdown(); db.Close() })

	id, err := s.Submit("https://example.com/v", task.Options{})
	require.NoError(t, err)
	waitForState(t, s, id, task.StateCompleted)

	require.Eventually(t, func() bool {
		_, ok := s.Get(id)
		return !ok
	}, 2*time.Second, 10*time.Millisecond, "terminal task was never evicted")

	// Eviction is an in-memory affair; the database row survives.
	got, found, err := db.Get(context.Background(), id)
	require.NoError(t, err)
	require.True(t, found, "durable row must outlive in-memory eviction")
	assert.Equal(t, task.StateCompleted, got.State)
}

func TestDurableStoreMirrorsLifecycle(t *testing.T) {
	st := fake.New()
	pipe := pipeline.New(st, pipeline.Config{MinArtifactBytes: 1, WorkDir: t.TempDir()})
	prov := &stubProvider{name: provider.NamePrimary, fetch: instantFetch}

	db, err := store.NewSQLite(context.Background(), t.TempDir()+"/tasks.db")
	require.NoError(t, err)

	s := New(pipe, []provider.Provider{prov}, store.NewMemory(), db, Config{})
	t.Cleanup(func() { s.Shutdown(); db.Close() })

	id, err := s.Submit("https://example.com/v", task.Options{Quality: "best"})
	require.NoError(t, err)
	waitForState(t, s, id, task.StateCompleted)

	require.Eventually(t, func() bool {
		got, found, err := db.Get(context.Background(), id)
		return err == nil && found && got.State == task.StateCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, _, err := db.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id+"_clip.mp4", got.ObjectName)
	assert.Equal(t, "best", got.Options.Quality)
}
