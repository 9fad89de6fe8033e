package worker

import (
	"context"
	"encoding/json"
	"testing"

	"inventory-service/internal/audit"
	"inventory-service/internal/feed"
	"inventory-service/internal/models"
	"inventory-service/internal/notify"
	"inventory-service/internal/store"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []models.ChangeEvent
}

func (r *recorder) PublishChange(_ context.Context, e models.ChangeEvent) {
	r.events = append(r.events, e)
}

func message(t *testing.T, e models.ChangeEvent) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(e.Collection), Value: raw}
}

func TestRetentionWorker_RunOnce(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	a := audit.NewWriter(st, 2, 0)
	h := notify.NewHistory(st, 2)

	for _, id := range []string{"1", "2", "3"} {
		require.True(t, a.LogCreate(ctx, models.CollectionProducts, id, nil, nil).OK())
		require.NotEmpty(t, h.Store(ctx, notify.HistoryInput{Message: "entry " + id}))
	}

	w := NewRetentionWorker(a, h, 2, 0)
	report, pruned := w.RunOnce(ctx)
	assert.Equal(t, 1, report.ByCount)
	assert.Equal(t, 0, report.ByAge)
	assert.Equal(t, 1, pruned)

	logs, err := st.List(ctx, models.CollectionAuditLogs)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	entries, err := h.List(ctx, notify.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "entry 3", entries[0].Message)

	report, pruned = w.RunOnce(ctx)
	assert.Zero(t, report.ByCount)
	assert.Zero(t, pruned)
}

func TestRetentionWorker_StartStopsWithContext(t *testing.T) {
	st := store.NewMemoryStore()
	w := NewRetentionWorker(audit.NewWriter(st, 0, 0), notify.NewHistory(st, 0), 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Start(ctx), context.Canceled)
}

func TestFeedWorker_RelaysRemoteEvents(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	w := NewFeedWorker(nil, rec, "node-a")

	remote := feed.NewChangeEvent("node-b", models.EventTypeDocumentUpdated, models.CollectionInventory, "p1")
	require.NoError(t, w.HandleMessage(ctx, message(t, remote)))

	own := feed.NewChangeEvent("node-a", models.EventTypeDocumentUpdated, models.CollectionInventory, "p2")
	require.NoError(t, w.HandleMessage(ctx, message(t, own)))

	require.Len(t, rec.events, 1)
	assert.Equal(t, "p1", rec.events[0].DocumentID)
	assert.Equal(t, "node-b", rec.events[0].Origin)
}

func TestFeedWorker_DropsUndecodableMessages(t *testing.T) {
	rec := &recorder{}
	w := NewFeedWorker(nil, rec, "node-a")

	assert.NoError(t, w.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")}))
	assert.NoError(t, w.HandleMessage(context.Background(), message(t, models.ChangeEvent{
		BaseEvent:  models.BaseEvent{EventType: "SOMETHING_ELSE"},
		Collection: "c",
	})))
	assert.Empty(t, rec.events)
}
