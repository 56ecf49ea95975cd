// Package storage defines the document-store contract shared by the SQLite and
// MongoDB backends. Documents are addressed by ObjectID and filtered with a
// small backend-neutral Query.
package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no document matches an id lookup.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// Index describes a secondary index on one or more document fields.
type Index struct {
	Fields []string
	Unique bool
	// Sparse names a string field; documents where it is missing or null
	// are left out of the index, so a unique index only constrains
	// documents that set it.
	Sparse string
}

// CollectionSpec names a collection and the indexes it needs.
type CollectionSpec struct {
	Name    string
	Indexes []Index
}

// Backend is a document database.
type Backend interface {
	// Migrate creates collections and indexes that do not exist yet.
	Migrate(ctx context.Context, specs []CollectionSpec) error
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Collection stores documents of a single kind. Documents are encoded with
// their json/bson tags; both encodings must use the same field names since
// Query refers to fields by name.
type Collection interface {
	Insert(ctx context.Context, id primitive.ObjectID, doc any) error
	// Get decodes the document with id into out or returns ErrNotFound.
	Get(ctx context.Context, id primitive.ObjectID, out any) error
	// FindOne decodes the first match of q into out or returns ErrNotFound.
	FindOne(ctx context.Context, q Query, out any) error
	// Find decodes every match of q into out, which must point to a slice.
	Find(ctx context.Context, q Query, out any) error
	Count(ctx context.Context, q Query) (int64, error)
	// Replace overwrites the document with id or returns ErrNotFound.
	Replace(ctx context.Context, id primitive.ObjectID, doc any) error
	// Delete removes the document with id or returns ErrNotFound.
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteMany(ctx context.Context, q Query) (int64, error)
	// Pull removes value from the array field of every match of q and
	// returns how many documents changed.
	Pull(ctx context.Context, q Query, field string, value any) (int64, error)
	// Set assigns value to field on every match of q and returns how many
	// documents matched.
	Set(ctx context.Context, q Query, field string, value any) (int64, error)
}
