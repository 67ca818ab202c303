package docstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Options selects and configures a backend.
type Options struct {
	Backend   string // "memory", "sqlite", "postgres" or "firestore"
	Path      string
	DSN       string
	ProjectID string
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
	case "sqlite", "":
		store, err = NewSQLiteStore(opts.Path, logger)
	case "postgres":
		store, err = NewPostgresStore(ctx, opts.DSN, logger)
	case "firestore":
		store, err = NewFirestoreStore(ctx, opts.ProjectID, logger)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
