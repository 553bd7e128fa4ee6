// Package storage is the object storage boundary. Completed downloads live
// in a bucket and are served to clients through presigned URLs.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrUnavailable wraps failures to reach the storage backend at all.
	// It is terminal for a download attempt: no provider fallback can fix
	// an unreachable bucket.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrNotFound means the object does not exist.
	ErrNotFound = errors.New("object not found")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Storage stores and serves download artifacts. Size -1 on PutStream means
// the total is unknown and the backend must multipart its way through.
type Storage interface {
	PutStream(ctx context.Context, name string, r io.Reader, size int64, contentType string) (int64, error)
	PutFile(ctx context.Context, name, path, contentType string) (int64, error)
	PresignGet(ctx context.Context, name, downloadName string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Stat(ctx context.Context, name string) (ObjectInfo, error)
}
