package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStore keeps objects in a Cloud Storage (Firebase Storage) bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSStore creates a client for bucket using application default credentials.
func NewGCSStore(ctx context.Context, bucket string, logger *zap.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("FIREBASE_STORAGE_BUCKET is not set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, logger: logger}, nil
}

// Put implements Store.
func (s *GCSStore) Put(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if err := validPath(objectPath); err != nil {
		return err
	}
	w := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return nil
}

// Get implements Store.
func (s *GCSStore) Get(ctx context.Context, objectPath string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(objectPath).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", objectPath, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", objectPath, err)
	}
	return data, nil
}

// Close implements Store.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
