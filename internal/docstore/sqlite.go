package docstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLiteStore implements Store on a single SQLite table keyed by
// (collection_path, doc_id).
type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Enable WAL mode so the CLI and the server can share one file
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error setting busy timeout: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}
	if logger != nil {
		logger.Debug("sqlite document store ready", zap.String("path", dbPath))
	}

	return &SQLiteStore{db: db, now: time.Now, logger: logger}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) upsert(ctx context.Context, tx *sql.Tx, ref DocRef, data Data, now time.Time) error {
	encoded, err := encodeData(data)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (collection_path, doc_id, data, create_time, update_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection_path, doc_id) DO UPDATE SET
			data = excluded.data,
			update_time = excluded.update_time
	`
	stamp := now.UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, query, ref.Parent.Path(), ref.ID, string(encoded), stamp, stamp)
	return err
}

func (s *SQLiteStore) write(ctx context.Context, ref DocRef, data Data, merge bool) error {
	now := s.now()
	normalized, err := normalizeData(data, now)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if merge {
		var raw string
		err := tx.QueryRowContext(ctx,
			`SELECT data FROM documents WHERE collection_path = ? AND doc_id = ?`,
			ref.Parent.Path(), ref.ID,
		).Scan(&raw)
		switch {
		case errors.Is(err, sql.ErrNoRows):
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

	if err := s.upsert(ctx, tx, ref, normalized, now); err != nil {
		return fmt.Errorf("write %s: %w", ref, err)
	}
	return tx.Commit()
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, ref DocRef, data Data) error {
	return s.write(ctx, ref, data, false)
}

// Merge implements Store.
func (s *SQLiteStore) Merge(ctx context.Context, ref DocRef, data Data) error {
	return s.write(ctx, ref, data, true)
}

// Add implements Store.
func (s *SQLiteStore) Add(ctx context.Context, coll CollectionRef, data Data) (DocRef, error) {
	ref := coll.Doc(newAutoID())
	return ref, s.write(ctx, ref, data, false)
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, ref DocRef) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT data, create_time, update_time
		FROM documents WHERE collection_path = ? AND doc_id = ?
	`, ref.Parent.Path(), ref.ID)

	var raw, created, updated string
	if err := row.Scan(&raw, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}

	snap, err := sqlSnapshot(ref, raw, created, updated)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Query implements Store.
func (s *SQLiteStore) Query(ctx context.Context, coll CollectionRef, q Query) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, data, create_time, update_time
		FROM documents
		WHERE collection_path = ?
		ORDER BY doc_id ASC
	`, coll.Path())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var docs []Snapshot
	for rows.Next() {
		var id, raw, created, updated string
		if err := rows.Scan(&id, &raw, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan %s: %w", coll, err)
		}
		snap, err := sqlSnapshot(coll.Doc(id), raw, created, updated)
		if err != nil {
			return nil, err
		}
		docs = append(docs, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return applyQuery(docs, q), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqlSnapshot(ref DocRef, raw, created, updated string) (Snapshot, error) {
	data, err := decodeData([]byte(raw))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", ref, err)
	}
	createTime, _ := time.Parse(time.RFC3339Nano, created)
	updateTime, _ := time.Parse(time.RFC3339Nano, updated)
	return Snapshot{Ref: ref, Data: data, CreateTime: createTime, UpdateTime: updateTime}, nil
}
