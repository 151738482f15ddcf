// Package artifacts stores uploaded images so a report can refer back to
// the film it was computed from.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/synaptica-ai/radiology-console/pkg/common/logger"
)

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects and creates bucket if it does not exist.
func NewMinIOStore(ctx context.Context, endpoint, bucket, accessKey, secretKey string, useSSL bool) (*MinIOStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinIOStore{client: client, bucket: bucket}, nil
}

func (s *MinIOStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"bucket": s.bucket,
		"key":    key,
		"size":   info.Size,
	}).Debug("artifact uploaded")
	return nil
}

type object struct {
	contentType string
	data        []byte
}

type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]object)}
}

func (s *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{contentType: contentType, data: append([]byte(nil), data...)}
	return nil
}

// Get returns a stored object; used by tests and the in-process service.
func (s *MemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.data, obj.contentType, ok
}
