package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher is the subset of Producer used to publish change events
type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// ChangePublisher sends change events to Kafka so other processes can
// refresh their subscriptions. Publishing is best-effort.
type ChangePublisher struct {
	producer EventPublisher
	logger   *zap.Logger
}

// NewChangePublisher creates a new change publisher
func NewChangePublisher(producer EventPublisher) *ChangePublisher {
	return &ChangePublisher{producer: producer, logger: util.GetLogger()}
}

// PublishChange keys events by collection so each collection's changes stay ordered
func (cp *ChangePublisher) PublishChange(ctx context.Context, event models.ChangeEvent) {
	if err := cp.producer.PublishEvent(ctx, event.Collection, event); err != nil {
		cp.logger.Warn("Failed to publish change event",
			zap.String("collection", event.Collection),
			zap.String("document_id", event.DocumentID),
			zap.Error(err),
		)
		return
	}
	util.ChangeEventsTotal.WithLabelValues("published").Inc()
}

// DecodeChangeEvent parses a consumed message, rejecting unknown event types
func DecodeChangeEvent(msg kafka.Message) (models.ChangeEvent, error) {
	var event models.ChangeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal change event: %w", err)
	}

	switch event.EventType {
	case models.EventTypeDocumentCreated,
		models.EventTypeDocumentUpdated,
		models.EventTypeDocumentDeleted,
		models.EventTypeCollectionSynced:
	default:
		return event, fmt.Errorf("unhandled event type: %q", event.EventType)
	}

	if event.Collection == "" {
		return event, fmt.Errorf("change event %s has no collection", event.EventID)
	}
	return event, nil
}
