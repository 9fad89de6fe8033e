package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"inventory-service/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore for development and tests.
// Documents go through a JSON round trip on write so they read back with
// the same shapes the Postgres driver produces.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]models.Document
	now         func() time.Time
	last        time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]models.Document),
		now:         time.Now,
	}
}

// SetClock replaces the clock used to resolve server timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.last = time.Time{}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(collection), nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return withID(doc, id), nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields models.Document) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields models.Document) error {
	return s.Commit(ctx, NewBatch().Set(collection, id, fields))
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields models.Document) error {
	return s.Commit(ctx, NewBatch().Update(collection, id, fields))
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.Commit(ctx, NewBatch().Delete(collection, id))
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filters := make([]Filter, 0, len(q.Filters))
	for _, f := range q.Filters {
		v, err := roundTrip(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter on %s: %w", f.Field, err)
		}
		filters = append(filters, Filter{Field: f.Field, Value: v})
	}

	s.mu.RLock()
	docs := s.sorted(collection)
	s.mu.RUnlock()

	out := docs[:0]
	for _, doc := range docs {
		if matches(doc, filters) {
			out = append(out, doc)
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareValues(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Commit validates every operation before applying any of them.
func (s *MemoryStore) Commit(ctx context.Context, batch *Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.tick()
	encoded := make([]models.Document, len(batch.ops))
	pending := make(map[string]bool)
	for i, op := range batch.ops {
		key := op.collection + "/" + op.id
		switch op.kind {
		case opSet:
			pending[key] = true
		case opUpdate:
			if _, ok := s.collections[op.collection][op.id]; !ok && !pending[key] {
				return fmt.Errorf("batch %s: %w", key, ErrNotFound)
			}
		case opDelete:
			pending[key] = false
			continue
		}
		doc, err := encode(op.fields, now)
		if err != nil {
			return fmt.Errorf("batch %s: %w", key, err)
		}
		encoded[i] = doc
	}

	for i, op := range batch.ops {
		docs := s.collections[op.collection]
		if docs == nil {
			docs = make(map[string]models.Document)
			s.collections[op.collection] = docs
		}
		switch op.kind {
		case opSet:
			docs[op.id] = encoded[i]
		case opUpdate:
			merged := docs[op.id].Clone()
			if merged == nil {
				merged = models.Document{}
			}
			for k, v := range encoded[i] {
				merged[k] = v
			}
			docs[op.id] = merged
		case opDelete:
			delete(docs, op.id)
		}
	}
	return nil
}

// tick returns a clock reading strictly after the previous one.
func (s *MemoryStore) tick() time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

func (s *MemoryStore) sorted(collection string) []models.Document {
	docs := s.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, withID(docs[id], id))
	}
	return out
}

func withID(doc models.Document, id string) models.Document {
	out := doc.Clone()
	out["id"] = id
	return out
}

func encode(fields models.Document, now time.Time) (models.Document, error) {
	doc := fields.Without("id")
	doc.ResolveTimestamps(now)
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	out := models.Document{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func roundTrip(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(doc models.Document, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok || compareValues(v, f.Value) != 0 {
			return false
		}
	}
	return true
}

// compareValues orders numbers numerically and everything else by its
// string form. Missing values sort first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	fa, aNum := a.(float64)
	fb, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	ba, aBool := a.(bool)
	bb, bBool := b.(bool)
	if aBool && bBool {
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	}

	sa, sb := textOf(a), textOf(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func textOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.Marshal(v)
	return string(data)
}
