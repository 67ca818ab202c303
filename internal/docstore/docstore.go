// Package docstore is a hierarchical document store modelled on Firestore:
// documents live in collections addressed by slash-separated paths such as
// analysisResults/{uid}/items/{docId}. Every backend (memory, SQLite,
// Postgres, Firestore) answers the same ordered, limited queries.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Data is the field map of a document.
type Data = map[string]any

type serverTimestamp struct{}

// ServerTimestamp may be used as a field value; the store replaces it with
// its own clock at write time.
var ServerTimestamp any = serverTimestamp{}

// Direction orders query results.
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Query restricts a collection read. A zero Query returns every document in
// id order. Documents lacking the OrderBy field are excluded, as Firestore
// does; a null value is kept and sorts first.
type Query struct {
	OrderBy   string
	Direction Direction
	Limit     int
}

// Store is implemented by every backend.
type Store interface {
	// Set replaces the document.
	Set(ctx context.Context, ref DocRef, data Data) error
	// Merge writes the given top-level fields, creating the document if needed.
	Merge(ctx context.Context, ref DocRef, data Data) error
	// Add creates a document with a generated id.
	Add(ctx context.Context, coll CollectionRef, data Data) (DocRef, error)
	Get(ctx context.Context, ref DocRef) (*Snapshot, error)
	Query(ctx context.Context, coll CollectionRef, q Query) ([]Snapshot, error)
	Close() error
}

// CollectionRef addresses a collection. Its path has an odd number of segments.
type CollectionRef struct {
	segments []string
}

// DocRef addresses a document inside a collection.
type DocRef struct {
	Parent CollectionRef
	ID     string
}

// Collection returns a root collection reference.
func Collection(name string) CollectionRef {
	return CollectionRef{segments: []string{name}}
}

// UserItems is the per-user partition used by every persisted entity:
// {collection}/{uid}/items.
func UserItems(collection, uid string) CollectionRef {
	return Collection(collection).Doc(uid).Collection("items")
}

// ParseCollection parses a slash-separated collection path.
func ParseCollection(path string) (CollectionRef, error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments)%2 == 0 {
		return CollectionRef{}, fmt.Errorf("collection path must end with a collection name: %q", path)
	}
	for _, s := range segments {
		if s == "" {
			return CollectionRef{}, fmt.Errorf("empty segment in path %q", path)
		}
	}
	return CollectionRef{segments: segments}, nil
}

// Doc returns a reference to the document id in c.
func (c CollectionRef) Doc(id string) DocRef {
	return DocRef{Parent: c, ID: id}
}

// ID is the last path segment.
func (c CollectionRef) ID() string {
	if len(c.segments) == 0 {
		return ""
	}
	return c.segments[len(c.segments)-1]
}

// Path is the slash-separated collection path.
func (c CollectionRef) Path() string {
	return strings.Join(c.segments, "/")
}

func (c CollectionRef) String() string { return c.Path() }

// Collection returns a subcollection of the document.
func (d DocRef) Collection(name string) CollectionRef {
	segments := make([]string, 0, len(d.Parent.segments)+2)
	segments = append(segments, d.Parent.segments...)
	segments = append(segments, d.ID, name)
	return CollectionRef{segments: segments}
}

// Path is the slash-separated document path.
func (d DocRef) Path() string {
	return d.Parent.Path() + "/" + d.ID
}

func (d DocRef) String() string { return d.Path() }

// Snapshot is a document read from a store.
type Snapshot struct {
	Ref        DocRef
	Data       Data
	CreateTime time.Time
	UpdateTime time.Time
}

// Get returns the raw field value.
func (s Snapshot) Get(field string) (any, bool) {
	v, ok := s.Data[field]
	return v, ok
}

// String returns the field as a string, or "" when absent or not a string.
func (s Snapshot) String(field string) string {
	v, _ := s.Data[field].(string)
	return v
}

// Number returns the field as float64 when it holds any numeric type.
func (s Snapshot) Number(field string) (float64, bool) {
	return Number(s.Data[field])
}

// Time returns the field when it holds a structured timestamp.
func (s Snapshot) Time(field string) (time.Time, bool) {
	t, ok := s.Data[field].(time.Time)
	return t, ok
}
