// Package fake holds an in-memory Storage used by tests.
package fake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/olastephen/video-audio-downloader/internal/storage"
)

type object struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Storage keeps objects in a map. Set Unavailable to make every call fail
// with storage.ErrUnavailable, or PutErr to fail only writes.
type Storage struct {
	mu          sync.Mutex
	objects     map[string]object
	Unavailable bool
	PutErr      error
}

func New() *Storage {
	return &Storage{objects: make(map[string]object)}
}

func (s *Storage) PutStream(ctx context.Context, name string, r io.Reader, size int64, contentType string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return 0, storage.ErrUnavailable
	}
	if s.PutErr != nil {
		return 0, s.PutErr
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, err
	}
	s.objects[name] = object{data: buf.Bytes(), contentType: contentType, modified: time.Now()}
	return n, nil
}

func (s *Storage) PutFile(ctx context.Context, name, path, contentType string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return s.PutStream(ctx, name, f, -1, contentType)
}

func (s *Storage) PresignGet(ctx context.Context, name, downloadName string, expiry time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return "", storage.ErrUnavailable
	}
	if _, ok := s.objects[name]; !ok {
		return "", storage.ErrNotFound
	}
	return fmt.Sprintf("https://storage.test/bucket/%s?expires=%d&filename=%s",
		url.PathEscape(name), int(expiry.Seconds()), url.QueryEscape(downloadName)), nil
}

func (s *Storage) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return storage.ErrUnavailable
	}
	delete(s.objects, name)
	return nil
}

func (s *Storage) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return nil, storage.ErrUnavailable
	}

	infos := make([]storage.ObjectInfo, 0, len(s.objects))
	for name, obj := range s.objects {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		infos = append(infos, storage.ObjectInfo{
			Name:         name,
			Size:         int64(len(obj.data)),
			ContentType:  obj.contentType,
			LastModified: obj.modified,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *Storage) Stat(ctx context.Context, name string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unavailable {
		return storage.ObjectInfo{}, storage.ErrUnavailable
	}
	obj, ok := s.objects[name]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrNotFound
	}
	return storage.ObjectInfo{
		Name:         name,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.modified,
	}, nil
}

// Object returns a stored object's bytes, for assertions.
func (s *Storage) Object(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[name]
	return obj.data, ok
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
