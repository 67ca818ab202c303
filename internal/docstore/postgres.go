package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection_path TEXT NOT NULL,
    doc_id          TEXT NOT NULL,
    data            JSONB NOT NULL,
    create_time     TIMESTAMPTZ NOT NULL,
    update_time     TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (collection_path, doc_id)
)`

// PostgresStore implements Store on a JSONB table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	now    func() time.Time
	logger *zap.Logger
}

// NewPostgresStore connects to connString and ensures the schema exists.
func NewPostgresStore(ctx context.Context, connString string, logger *zap.Logger) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}
	if logger != nil {
		logger.Debug("postgres document store ready")
	}

	return &PostgresStore{pool: pool, now: time.Now, logger: logger}, nil
}

func (s *PostgresStore) write(ctx context.Context, ref DocRef, data Data, merge bool) error {
	now := s.now()
	normalized, err := normalizeData(data, now)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if merge {
		var raw string
		err := tx.QueryRow(ctx,
			`SELECT data::text FROM documents WHERE collection_path = $1 AND doc_id = $2 FOR UPDATE`,
			ref.Parent.Path(), ref.ID,
		).Scan(&raw)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("read %s for merge: %w", ref, err)
		default:
			existing, err := decodeData([]byte(raw))
			if err != nil {
				return err
			}
			normalized = mergeData(existing, normalized)
		}
	}

	encoded, err := encodeData(normalized)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO documents (collection_path, doc_id, data, create_time, update_time)
		VALUES ($1, $2, $3::jsonb, $4, $4)
		ON CONFLICT (collection_path, doc_id) DO UPDATE SET
			data = EXCLUDED.data,
			update_time = EXCLUDED.update_time
	`, ref.Parent.Path(), ref.ID, string(encoded), now.UTC())
	if err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	return tx.Commit(ctx)
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, ref DocRef, data Data) error {
	return s.write(ctx, ref, data, false)
}

// Merge implements Store.
func (s *PostgresStore) Merge(ctx context.Context, ref DocRef, data Data) error {
	return s.write(ctx, ref, data, true)
}

// Add implements Store.
func (s *PostgresStore) Add(ctx context.Context, coll CollectionRef, data Data) (DocRef, error) {
	ref := coll.Doc(newAutoID())
	return ref, s.write(ctx, ref, data, false)
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, ref DocRef) (*Snapshot, error) {
	var raw string
	var created, updated time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT data::text, create_time, update_time
		FROM documents WHERE collection_path = $1 AND doc_id = $2
	`, ref.Parent.Path(), ref.ID).Scan(&raw, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}

	data, err := decodeData([]byte(raw))
	if err != nil {
		return nil, err
	}
	return &Snapshot{Ref: ref, Data: data, CreateTime: created, UpdateTime: updated}, nil
}

// Query implements Store.
func (s *PostgresStore) Query(ctx context.Context, coll CollectionRef, q Query) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT doc_id, data::text, create_time, update_time
		FROM documents
		WHERE collection_path = $1
		ORDER BY doc_id ASC
	`, coll.Path())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var docs []Snapshot
	for rows.Next() {
		var id, raw string
		var created, updated time.Time
		if err := rows.Scan(&id, &raw, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		data, err := decodeData([]byte(raw))
		if err != nil {
			return nil, err
		}
		docs = append(docs, Snapshot{Ref: coll.Doc(id), Data: data, CreateTime: created, UpdateTime: updated})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return applyQuery(docs, q), nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
