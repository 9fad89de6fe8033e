package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"inventory-service/internal/feed"
	"inventory-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	keys   []string
	events []interface{}
	err    error
}

func (f *fakeProducer) PublishEvent(_ context.Context, key string, event interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.events = append(f.events, event)
	return nil
}

func TestChangePublisher_KeysByCollection(t *testing.T) {
	p := &fakeProducer{}
	cp := NewChangePublisher(p)

	cp.PublishChange(context.Background(), feed.NewChangeEvent("node", models.EventTypeDocumentCreated, models.CollectionInventory, "i1"))

	require.Len(t, p.keys, 1)
	assert.Equal(t, models.CollectionInventory, p.keys[0])
}

func TestChangePublisher_FailureIsLogged(t *testing.T) {
	cp := NewChangePublisher(&fakeProducer{err: errors.New("broker down")})

	assert.NotPanics(t, func() {
		cp.PublishChange(context.Background(), feed.NewChangeEvent("node", models.EventTypeDocumentDeleted, "c", "1"))
	})
}

func TestDecodeChangeEvent(t *testing.T) {
	event := feed.NewChangeEvent("node-b", models.EventTypeDocumentUpdated, models.CollectionOrders, "o1")
	value, err := json.Marshal(event)
	require.NoError(t, err)

	decoded, err := DecodeChangeEvent(kafka.Message{Value: value})
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "node-b", decoded.Origin)
	assert.Equal(t, models.CollectionOrders, decoded.Collection)
}

func TestDecodeChangeEvent_Rejects(t *testing.T) {
	_, err := DecodeChangeEvent(kafka.Message{Value: []byte(`{bad`)})
	assert.Error(t, err)

	_, err = DecodeChangeEvent(kafka.Message{Value: []byte(`{"event_type":"ORDER_PAID","collection":"orders"}`)})
	assert.Error(t, err)

	_, err = DecodeChangeEvent(kafka.Message{Value: []byte(`{"event_type":"DOCUMENT_CREATED"}`)})
	assert.Error(t, err)
}
