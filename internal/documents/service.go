package documents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/audit"
	"inventory-service/internal/auth"
	"inventory-service/internal/cache"
	"inventory-service/internal/feed"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Source is recorded in audit metadata for writes made through Service
const Source = "document_service"

// Auditor records mutations. Its results are informational only.
type Auditor interface {
	LogCreate(ctx context.Context, collection, documentID string, data any, metadata map[string]any) audit.Result
	LogUpdate(ctx context.Context, collection, documentID string, data any, metadata map[string]any) audit.Result
	LogDelete(ctx context.Context, collection, documentID string, data any, metadata map[string]any) audit.Result
}

// Service wraps every store operation with cache maintenance, auditing
// and change notification
type Service struct {
	store  store.DocumentStore
	cache  *cache.Cache
	audit  Auditor
	hub    *feed.Hub
	remote feed.Publisher
	origin string
	logger *zap.Logger
}

// NewService creates a new document service
func NewService(st store.DocumentStore, c *cache.Cache, a Auditor, hub *feed.Hub) *Service {
	return &Service{
		store:  st,
		cache:  c,
		audit:  a,
		hub:    hub,
		origin: uuid.New().String(),
		logger: util.GetLogger(),
	}
}

// SetRemote forwards change events to other processes as well
func (s *Service) SetRemote(p feed.Publisher) {
	s.remote = p
}

// Origin identifies this process on change events
func (s *Service) Origin() string {
	return s.origin
}

// Store exposes the underlying store for batched writes. Callers must
// call Invalidate for every collection they touch.
func (s *Service) Store() store.DocumentStore {
	return s.store
}

// List returns every document in collection. A fresh cache entry is served
// without reading the store; when the read fails a cached copy is used if
// there is one.
func (s *Service) List(ctx context.Context, collection string, useCache bool) ([]models.Document, error) {
	ctx, span := util.StartSpan(ctx, "DocumentService.List", collection)
	defer span.End()

	key := cache.CollectionKey(collection)
	if useCache {
		var cached []models.Document
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	start := time.Now()
	docs, err := s.store.List(ctx, collection)
	util.DocumentOperationLatency.WithLabelValues("list").Observe(time.Since(start).Seconds())
	if err != nil {
		s.record(collection, "list", err)
		s.logger.Error("Error fetching collection", zap.String("collection", collection), zap.Error(err))

		var cached []models.Document
		if s.cache.Get(ctx, key, &cached) {
			s.logger.Warn("Serving cached collection after fetch failure", zap.String("collection", collection))
			return cached, nil
		}
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	s.record(collection, "list", nil)

	if useCache {
		s.cache.Set(ctx, key, docs)
	}
	return docs, nil
}

// Get returns the document, or nil when it does not exist
func (s *Service) Get(ctx context.Context, collection, id string) (models.Document, error) {
	ctx, span := util.StartSpan(ctx, "DocumentService.Get", collection)
	defer span.End()

	doc, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	s.record(collection, "get", err)
	if err != nil {
		util.SpanError(span, err)
		s.logger.Error("Error fetching document",
			zap.String("collection", collection),
			zap.String("document_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Query runs q against collection without caching
func (s *Service) Query(ctx context.Context, collection string, q store.Query) ([]models.Document, error) {
	ctx, span := util.StartSpan(ctx, "DocumentService.Query", collection)
	defer span.End()

	docs, err := s.store.Query(ctx, collection, q)
	s.record(collection, "query", err)
	if err != nil {
		util.SpanError(span, err)
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return docs, nil
}

// Create adds a document and returns it as stored, timestamps resolved
func (s *Service) Create(ctx context.Context, collection string, data models.Document, metadata map[string]any) (models.Document, error) {
	ctx, span := util.StartSpan(ctx, "DocumentService.Create", collection)
	defer span.End()

	fields := data.Without("id").Merge(map[string]any{
		"createdAt": models.ServerTimestamp,
		"updatedAt": models.ServerTimestamp,
	})

	id, err := s.store.Add(ctx, collection, fields)
	s.record(collection, "create", err)
	if err != nil {
		util.SpanError(span, err)
		s.logger.Error("Error adding document", zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("failed to add to %s: %w", collection, err)
	}

	s.cache.Clear(ctx, cache.CollectionKey(collection))

	meta := s.metadata(ctx, metadata, collection, models.ActionCreate)
	if collection == models.CollectionInventory {
		if pid := models.ToString(data["productId"]); pid != "" {
			meta["productId"] = pid
		}
	}
	s.audit.LogCreate(ctx, collection, id, map[string]any(data.Without("id")), meta)

	s.publish(ctx, models.EventTypeDocumentCreated, collection, id)

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		s.logger.Warn("Could not re-read created document",
			zap.String("collection", collection),
			zap.String("document_id", id),
			zap.Error(err),
		)
		out := data.Without("id")
		out["id"] = id
		return out, nil
	}
	return doc, nil
}

// Update merges data into the document. Prior state is captured for the
// audit trail unless metadata already carries previousData.
func (s *Service) Update(ctx context.Context, collection, id string, data models.Document, metadata map[string]any) (models.Document, error) {
	ctx, span := util.StartSpan(ctx, "DocumentService.Update", collection)
	defer span.End()

	var previous models.Document
	if metadata["previousData"] == nil {
		prev, err := s.store.Get(ctx, collection, id)
		switch {
		case err == nil:
			previous = prev.Without("id")
		case !errors.Is(err, store.ErrNotFound):
			s.logger.Warn("Could not get previous data for audit log",
				zap.String("collection", collection),
				zap.String("document_id", id),
				zap.Error(err),
			)
		}
	}

	fields := data.Without("id").Merge(map[string]any{"updatedAt": models.ServerTimestamp})
	err := s.store.Update(ctx, collection, id, fields)
	s.record(collection, "update", err)
	if err != nil {
		util.SpanError(span, err)
		s.logger.Error("Error updating document",
			zap.String("collection", collection),
			zap.String("document_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}

	s.cache.Clear(ctx, cache.CollectionKey(collection))

	meta := s.metadata(ctx, metadata, collection, models.ActionUpdate)
	if previous != nil {
		meta["previousData"] = map[string]any(previous)
	}
	if collection == models.CollectionInventory {
		if pid := models.ToString(previous["productId"]); pid != "" {
			meta["productId"] = pid
		} else if pid := models.ToString(data["productId"]); pid != "" {
			meta["productId"] = pid
		}
	}
	s.audit.LogUpdate(ctx, collection, id, map[string]any(data.Without("id")), meta)

	s.publish(ctx, models.EventTypeDocumentUpdated, collection, id)

	out := data.Without("id")
	out["id"] = id
	return out, nil
}

// Delete removes the document
func (s *Service) Delete(ctx context.Context, collection, id string) error {
	ctx, span := util.StartSpan(ctx, "DocumentService.Delete", collection)
	defer span.End()

	err := s.store.Delete(ctx, collection, id)
	s.record(collection, "delete", err)
	if err != nil {
		util.SpanError(span, err)
		s.logger.Error("Error deleting document",
			zap.String("collection", collection),
			zap.String("document_id", id),
			zap.Error(err),
		)
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}

	s.cache.Clear(ctx, cache.CollectionKey(collection))
	s.audit.LogDelete(ctx, collection, id, nil, s.metadata(ctx, nil, collection, models.ActionDelete))
	s.publish(ctx, models.EventTypeDocumentDeleted, collection, id)
	return nil
}

// Invalidate drops the cached listing and tells subscribers the collection
// changed. Used after writes that bypass Service.
func (s *Service) Invalidate(ctx context.Context, collection string) {
	s.cache.Clear(ctx, cache.CollectionKey(collection))
	s.publish(ctx, models.EventTypeCollectionSynced, collection, "")
}

func (s *Service) metadata(ctx context.Context, custom map[string]any, collection, operation string) map[string]any {
	meta := map[string]any{
		"userId":    auth.UserID(ctx),
		"source":    Source,
		"timestamp": models.FormatTime(time.Now()),
	}
	for k, v := range custom {
		meta[k] = v
	}
	meta["documentType"] = collection
	meta["operation"] = operation
	return meta
}

func (s *Service) publish(ctx context.Context, eventType, collection, id string) {
	event := feed.NewChangeEvent(s.origin, eventType, collection, id)
	feed.Fanout{s.hubPublisher(), s.remote}.PublishChange(ctx, event)
}

func (s *Service) hubPublisher() feed.Publisher {
	if s.hub == nil {
		return nil
	}
	return s.hub
}

func (s *Service) record(collection, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	util.DocumentOperationsTotal.WithLabelValues(collection, op, result).Inc()
}
