package store

import (
	"context"
	"errors"

	"inventory-service/internal/models"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

// Filter is an equality condition on a top-level field
type Filter struct {
	Field string
	Value any
}

// Query selects documents from one collection
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Where returns a copy of q with an extra equality filter
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return q
}

// DocumentStore is the document database the service persists to.
// Every write resolves models.ServerTimestamp placeholders with the store's clock.
type DocumentStore interface {
	List(ctx context.Context, collection string) ([]models.Document, error)
	Get(ctx context.Context, collection, id string) (models.Document, error)
	// Add stores fields under a generated id and returns it.
	Add(ctx context.Context, collection string, fields models.Document) (string, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, fields models.Document) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields models.Document) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]models.Document, error)
	// Commit applies every operation in the batch atomically.
	Commit(ctx context.Context, batch *Batch) error
	Close() error
}
