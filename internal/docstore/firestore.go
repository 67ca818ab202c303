package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore. Paths map one-to-one
// onto Firestore document paths.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreStore creates a client for projectID.
func NewFirestoreStore(ctx context.Context, projectID string, logger *zap.Logger, opts ...option.ClientOption) (*FirestoreStore, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, logger: logger}, nil
}

// toFirestore swaps the package sentinel for Firestore's own.
func toFirestore(v any) any {
	switch val := v.(type) {
	case serverTimestamp:
		return firestore.ServerTimestamp
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toFirestore(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toFirestore(item)
		}
		return out
	case []Data:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toFirestore(item)
		}
		return out
	default:
		return v
	}
}

func firestoreData(data Data) map[string]any {
	return toFirestore(map[string]any(data)).(map[string]any)
}

// Set implements Store.
func (s *FirestoreStore) Set(ctx context.Context, ref DocRef, data Data) error {
	if _, err := s.client.Doc(ref.Path()).Set(ctx, firestoreData(data)); err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	return nil
}

// Merge implements Store.
func (s *FirestoreStore) Merge(ctx context.Context, ref DocRef, data Data) error {
	if _, err := s.client.Doc(ref.Path()).Set(ctx, firestoreData(data), firestore.MergeAll); err != nil {
		return fmt.Errorf("merge %s: %w", ref, err)
	}
	return nil
}

// Add implements Store.
func (s *FirestoreStore) Add(ctx context.Context, coll CollectionRef, data Data) (DocRef, error) {
	doc, _, err := s.client.Collection(coll.Path()).Add(ctx, firestoreData(data))
	if err != nil {
		return DocRef{}, fmt.Errorf("add to %s: %w", coll, err)
	}
	return coll.Doc(doc.ID), nil
}

// Get implements Store.
func (s *FirestoreStore) Get(ctx context.Context, ref DocRef) (*Snapshot, error) {
	snap, err := s.client.Doc(ref.Path()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return &Snapshot{
		Ref:        ref,
		Data:       snap.Data(),
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}, nil
}

// Query implements Store.
func (s *FirestoreStore) Query(ctx context.Context, coll CollectionRef, q Query) ([]Snapshot, error) {
	query := s.client.Collection(coll.Path()).Query
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Direction == Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}

	out := make([]Snapshot, 0, len(docs))
	for _, doc := range docs {
		out = append(out, Snapshot{
			Ref:        coll.Doc(doc.Ref.ID),
			Data:       doc.Data(),
			CreateTime: doc.CreateTime,
			UpdateTime: doc.UpdateTime,
		})
	}
	return out, nil
}

// Close implements Store.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
