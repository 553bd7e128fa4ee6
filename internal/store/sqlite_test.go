package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olastephen/video-audio-downloader/internal/task"
)

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteCreateGet(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	tk := newTask("t1", task.StateQueued)
	tk.Options = task.Options{Quality: "best", Format: "mp4", AudioOnly: true}
	require.NoError(t, s.Create(ctx, tk))

	got, found, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tk.URL, got.URL)
	assert.Equal(t, task.StateQueued, got.State)
	assert.Equal(t, "best", got.Options.Quality)
	assert.True(t, got.Options.AudioOnly)
	assert.False(t, got.Options.DirectDownload)

	_, found, err = s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteUpdatePartial(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newTask("t1", task.StateQueued)))

	err := s.Update(ctx, "t1", Fields{
		State:    State(task.StateDownloading),
		Progress: Float(33.3),
	})
	require.NoError(t, err)

	got, _, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StateDownloading, got.State)
	assert.InDelta(t, 33.3, got.Progress, 0.001)
	assert.Empty(t, got.Error, "unset fields stay untouched")

	err = s.Update(ctx, "t1", Fields{
		State:       State(task.StateCompleted),
		Filename:    Str("clip.mp4"),
		ObjectName:  Str("t1_clip.mp4"),
		DownloadURL: Str("https://storage.test/t1_clip.mp4"),
		Size:        Int(123456),
	})
	require.NoError(t, err)

	got, _, err = s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StateCompleted, got.State)
	assert.Equal(t, "t1_clip.mp4", got.ObjectName)
	assert.Equal(t, int64(123456), got.Size)
}

func TestSQLiteUpdateMissingTask(t *testing.T) {
	s := newSQLite(t)
	err := s.Update(context.Background(), "nope", Fields{State: State(task.StateFailed)})
	assert.Error(t, err)
}

func TestSQLiteUpdateNoFieldsIsNoop(t *testing.T) {
	s := newSQLite(t)
	assert.NoError(t, s.Update(context.Background(), "whatever", Fields{}))
}

func TestSQLiteList(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		tk := newTask(id, task.StateQueued)
		tk.CreatedAt = time.Now().Add(time.Duration(i) * time.Second)
		require.NoError(t, s.Create(ctx, tk))
	}

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].ID)
}

func TestSQLiteDeleteOlderThan(t *testing.T) {
	s := newSQLite(t)
	ctx := context.Background()

	old := newTask("old", task.StateCompleted)
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.Create(ctx, old))

	active := newTask("active", task.StateDownloading)
	active.UpdatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.Create(ctx, active))

	fresh := newTask("fresh", task.StateFailed)
	require.NoError(t, s.Create(ctx, fresh))

	removed, err := s.DeleteOlderThan(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, found, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = s.Get(ctx, "active")
	require.NoError(t, err)
	assert.True(t, found, "active tasks survive eviction")
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.db")
	ctx := context.Background()

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, newTask("persist", task.StateCompleted)))
	require.NoError(t, s.Close())

	s, err = NewSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	_, found, err := s.Get(ctx, "persist")
	require.NoError(t, err)
	assert.True(t, found)
}
