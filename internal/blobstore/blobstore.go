// Package blobstore stores raw photo bytes under user-scoped paths.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no object exists at a path.
var ErrNotFound = errors.New("blobstore: object not found")

// Store is implemented by every backend.
type Store interface {
	Put(ctx context.Context, objectPath string, data []byte, contentType string) error
	Get(ctx context.Context, objectPath string) ([]byte, error)
	Close() error
}

// PhotoPath is where a check-in photo lives: users/{uid}/photos/{photoId}.jpg.
func PhotoPath(uid, photoID string) string {
	return fmt.Sprintf("users/%s/photos/%s.jpg", uid, photoID)
}

// OwnedBy reports whether objectPath is inside uid's partition.
func OwnedBy(objectPath, uid string) bool {
	clean := path.Clean("/" + objectPath)
	return uid != "" && strings.HasPrefix(clean, "/users/"+uid+"/")
}

func validPath(objectPath string) error {
	if objectPath == "" {
		return fmt.Errorf("empty object path")
	}
	clean := path.Clean("/" + objectPath)
	if clean != "/"+objectPath {
		return fmt.Errorf("object path %q is not canonical", objectPath)
	}
	return nil
}

// Options selects and configures a backend.
type Options struct {
	Backend string // "memory", "fs" or "gcs"
	Dir     string
	Bucket  string
}

// Open returns the backend named by opts.Backend.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "fs", "":
		store, err = NewFSStore(opts.Dir)
	case "gcs":
		store, err = NewGCSStore(ctx, opts.Bucket, logger)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
