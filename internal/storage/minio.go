package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options configure the MinIO-backed storage.
type Options struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// MinIO implements Storage against any S3-compatible endpoint.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects to the endpoint and ensures the bucket exists.
func NewMinIO(ctx context.Context, opts Options) (*MinIO, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	s := &MinIO{client: client, bucket: opts.Bucket}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, s.classify(err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, s.classify(err)
		}
		slog.Info("created storage bucket", "bucket", opts.Bucket)
	}

	return s, nil
}

func (s *MinIO) PutStream(ctx context.Context, name string, r io.Reader, size int64, contentType string) (int64, error) {
	info, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, s.classify(err)
	}
	return info.Size, nil
}

func (s *MinIO) PutFile(ctx context.Context, name, path, contentType string) (int64, error) {
	info, err := s.client.FPutObject(ctx, s.bucket, name, path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, s.classify(err)
	}
	return info.Size, nil
}

func (s *MinIO) PresignGet(ctx context.Context, name, downloadName string, expiry time.Duration) (string, error) {
	reqParams := make(url.Values)
	if downloadName != "" {
		reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, name, expiry, reqParams)
	if err != nil {
		return "", s.classify(err)
	}
	return u.String(), nil
}

func (s *MinIO) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *MinIO) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, s.classify(obj.Err)
		}
		objects = append(objects, ObjectInfo{
			Name:         obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

func (s *MinIO) Stat(ctx context.Context, name string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, s.classify(err)
	}
	return ObjectInfo{
		Name:         info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// classify separates "the object/bucket is wrong" from "the backend is
// unreachable". Responses without an S3 error code never came from the
// server, so they count as unavailability.
func (s *MinIO) classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "":
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return err
	}
}
