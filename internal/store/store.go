// Package store persists download tasks. The in-memory store is the source
// of truth the scheduler reads and writes; the SQLite store mirrors it so
// task history survives restarts.
package store

import (
	"context"
	"time"

	"github.com/olastephen/video-audio-downloader/internal/task"
)

// Fields is a partial update. Nil pointers leave the column untouched.
type Fields struct {
	State       *task.State
	Progress    *float64
	Filename    *string
	ObjectName  *string
	DownloadURL *string
	Size        *int64
	Error       *string
}

// Store is the durable task record boundary.
type Store interface {
	Create(ctx context.Context, t task.Task) error
	Update(ctx context.Context, id string, f Fields) error
	Get(ctx context.Context, id string) (task.Task, bool, error)
	List(ctx context.Context) ([]task.Task, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
	Close() error
}

// Helpers for building Fields literals.

func State(s task.State) *task.State { return &s }
func Float(f float64) *float64       { return &f }
func Str(s string) *string           { return &s }
func Int(i int64) *int64             { return &i }
