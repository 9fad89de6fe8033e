package audit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	store.DocumentStore
}

func (failingStore) Add(context.Context, string, models.Document) (string, error) {
	return "", errors.New("unavailable")
}

func TestLogAction_WritesOneEntry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	w := NewWriter(st, 0, 0)

	res := w.LogCreate(ctx, models.CollectionProducts, "p1", map[string]any{"name": "Fountain"}, map[string]any{"userId": "u1"})
	require.True(t, res.OK())
	require.NotEmpty(t, res.ID)

	docs, err := st.List(ctx, models.CollectionAuditLogs)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	e := models.AuditLogEntryFromDocument(docs[0])
	assert.Equal(t, models.ActionCreate, e.Action)
	assert.Equal(t, models.CollectionProducts, e.Collection)
	assert.Equal(t, "p1", e.DocumentID)
	assert.Equal(t, "u1", e.Metadata["userId"])
	assert.NotEmpty(t, e.Timestamp)
	assert.NotEmpty(t, e.CreatedAt)
}

func TestLogAction_EachConvenienceMethodUsesItsAction(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	w := NewWriter(st, 0, 0)

	w.LogCreate(ctx, "c", "1", nil, nil)
	w.LogUpdate(ctx, "c", "1", nil, map[string]any{"previousData": map[string]any{"v": 1}})
	w.LogDelete(ctx, "c", "1", nil, nil)
	w.LogView(ctx, "c", "", nil)

	entries, err := w.Query(ctx, Filter{Collection: "c"})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, models.ActionView, entries[0].Action)
	assert.Equal(t, models.ActionDelete, entries[1].Action)
	assert.Equal(t, models.ActionUpdate, entries[2].Action)
	assert.Equal(t, models.ActionCreate, entries[3].Action)
	assert.Equal(t, map[string]any{"v": float64(1)}, entries[2].Metadata["previousData"])
	assert.Empty(t, entries[0].DocumentID)
}

func TestLogAction_FailureIsAbsorbed(t *testing.T) {
	w := NewWriter(failingStore{store.NewMemoryStore()}, 0, 0)

	var res Result
	assert.NotPanics(t, func() {
		res = w.LogCreate(context.Background(), "c", "1", nil, nil)
	})
	assert.False(t, res.OK())
	assert.Empty(t, res.ID)
}

func TestQuery_FiltersAndLimit(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(store.NewMemoryStore(), 0, 0)

	for i := 0; i < 5; i++ {
		w.LogCreate(ctx, models.CollectionOrders, fmt.Sprint(i), nil, nil)
	}
	w.LogDelete(ctx, models.CollectionOrders, "0", nil, nil)
	w.LogCreate(ctx, models.CollectionVendors, "v", nil, nil)

	entries, err := w.Query(ctx, Filter{Collection: models.CollectionOrders, Action: models.ActionCreate, Limit: 3})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "4", entries[0].DocumentID)
	for _, e := range entries {
		assert.Equal(t, models.ActionCreate, e.Action)
		assert.Equal(t, models.CollectionOrders, e.Collection)
	}
}

func TestPruneCollection_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	w := NewWriter(st, 0, 0)

	for i := 0; i < 8; i++ {
		w.LogCreate(ctx, models.CollectionProducts, fmt.Sprint(i), nil, nil)
	}
	w.LogCreate(ctx, models.CollectionVendors, "v", nil, nil)

	deleted, err := w.PruneCollection(ctx, models.CollectionProducts, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	entries, err := w.Query(ctx, Filter{Collection: models.CollectionProducts})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "7", entries[0].DocumentID)
	assert.Equal(t, "5", entries[2].DocumentID)

	vendors, err := w.Query(ctx, Filter{Collection: models.CollectionVendors})
	require.NoError(t, err)
	assert.Len(t, vendors, 1)
}

func TestPruneCollection_UnderCapIsNoop(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(store.NewMemoryStore(), 0, 0)
	w.LogCreate(ctx, "c", "1", nil, nil)

	deleted, err := w.PruneCollection(ctx, "c", 10)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPruneOlderThan(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	w := NewWriter(st, 0, 0)
	now := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	w.SetClock(func() time.Time { return now })

	old := models.FormatTime(now.AddDate(0, 0, -120))
	recent := models.FormatTime(now.AddDate(0, 0, -10))
	require.NoError(t, st.Set(ctx, models.CollectionAuditLogs, "old", models.Document{"collection": "c", "action": "create", "timestamp": old}))
	require.NoError(t, st.Set(ctx, models.CollectionAuditLogs, "recent", models.Document{"collection": "c", "action": "create", "timestamp": recent}))

	deleted, err := w.PruneOlderThan(ctx, 90)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = st.Get(ctx, models.CollectionAuditLogs, "old")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.Get(ctx, models.CollectionAuditLogs, "recent")
	assert.NoError(t, err)
}

func TestRunRetention(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	w := NewWriter(st, 2, 90)

	for i := 0; i < 4; i++ {
		w.LogCreate(ctx, "a", fmt.Sprint(i), nil, nil)
		w.LogCreate(ctx, "b", fmt.Sprint(i), nil, nil)
	}

	report, err := w.RunRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.ByCount)
	assert.Zero(t, report.ByAge)

	docs, err := st.List(ctx, models.CollectionAuditLogs)
	require.NoError(t, err)
	assert.Len(t, docs, 4)
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(store.NewMemoryStore(), 0, 0)

	for i := 0; i < 12; i++ {
		w.LogCreate(ctx, models.CollectionProducts, fmt.Sprint(i), nil, nil)
	}
	w.LogDelete(ctx, models.CollectionOrders, "o", nil, nil)

	stats, err := w.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, stats.TotalLogs)
	assert.Equal(t, 12, stats.ActionCounts[models.ActionCreate])
	assert.Equal(t, 1, stats.ActionCounts[models.ActionDelete])
	assert.Equal(t, 1, stats.CollectionCounts[models.CollectionOrders])
	assert.Len(t, stats.RecentActivity, 10)
	assert.Equal(t, models.ActionDelete, stats.RecentActivity[0].Action)

	total := 0
	for _, n := range stats.ActivityByDay {
		total += n
	}
	assert.Equal(t, 13, total)
}
