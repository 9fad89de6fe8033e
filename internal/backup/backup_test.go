package backup

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"inventory-service/internal/audit"
	"inventory-service/internal/cache"
	"inventory-service/internal/documents"
	"inventory-service/internal/feed"
	"inventory-service/internal/models"
	"inventory-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 30, 18, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *audit.Writer) {
	t.Helper()
	st := store.NewMemoryStore()
	w := audit.NewWriter(st, 0, 0)
	docs := documents.NewService(st, cache.NewCache(cache.NewMemoryKV(), 0), w, feed.NewHub())
	svc := NewService(docs, w)
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, st, w
}

func seed(t *testing.T, st store.DocumentStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, models.CollectionProducts, "p1", models.Document{"name": "Roman Candle", "lowInventoryThreshold": 10}))
	require.NoError(t, st.Set(ctx, models.CollectionProducts, "p2", models.Document{"name": "Sparkler"}))
	require.NoError(t, st.Set(ctx, models.CollectionInventory, "i1", models.Document{"productId": "p1", "quantity": 5}))
}

func TestCreateFullBackup(t *testing.T) {
	ctx := context.Background()
	svc, st, w := newTestService(t)
	seed(t, st)

	snap, err := svc.CreateFullBackup(ctx)
	require.NoError(t, err)

	require.NotNil(t, snap.Metadata)
	assert.Equal(t, Version, snap.Metadata.Version)
	assert.Equal(t, CreatedBy, snap.Metadata.CreatedBy)
	assert.Equal(t, TypeFull, snap.Metadata.Type)
	assert.Equal(t, models.TrackedCollections, snap.Metadata.Collections)
	assert.Equal(t, "backup_1719770400000", snap.Metadata.ID)

	require.Len(t, snap.Data[models.CollectionProducts], 2)
	for _, d := range snap.Data[models.CollectionProducts] {
		assert.NotEmpty(t, d.ID())
		assert.Equal(t, models.FormatTime(fixedNow), d[backupTimestampField])
	}
	assert.Len(t, snap.Data[models.CollectionInventory], 1)
	assert.Empty(t, snap.Data[models.CollectionOrders])

	stored, err := st.Get(ctx, models.CollectionBackups, snap.Metadata.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeFull, stored["type"])

	entries, err := w.Query(ctx, audit.Filter{Collection: models.CollectionBackups})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActionCreate, entries[0].Action)
	assert.Equal(t, "backup_created", entries[0].Metadata["action"])
}

func TestBackupRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, st, w := newTestService(t)
	seed(t, st)

	snap, err := svc.CreateFullBackup(ctx)
	require.NoError(t, err)
	raw, err := EncodeSnapshot(snap)
	require.NoError(t, err)

	// lose some data, then restore from the encoded file
	require.NoError(t, st.Delete(ctx, models.CollectionProducts, "p2"))
	require.NoError(t, st.Update(ctx, models.CollectionInventory, "i1", models.Document{"quantity": 0}))

	decoded, report, err := DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.True(t, report.IsValid)

	restored, err := svc.RestoreFromBackup(ctx, decoded, []string{models.CollectionProducts, models.CollectionInventory}, false)
	require.NoError(t, err)
	assert.Equal(t, []RestoredCollection{
		{Collection: models.CollectionProducts, DocumentsRestored: 2},
		{Collection: models.CollectionInventory, DocumentsRestored: 1},
	}, restored)

	p2, err := st.Get(ctx, models.CollectionProducts, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Sparkler", p2["name"])
	assert.Equal(t, snap.Metadata.CreatedAt, p2[restoredFromField])
	assert.Equal(t, models.FormatTime(fixedNow), p2[restoredAtField])
	assert.NotContains(t, p2, backupTimestampField)

	inv, err := st.Get(ctx, models.CollectionInventory, "i1")
	require.NoError(t, err)
	assert.Equal(t, float64(5), inv["quantity"])

	entries, err := w.Query(ctx, audit.Filter{Action: models.ActionRestore})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.CollectionBackups, entries[0].Collection)
	assert.Equal(t, "backup_restored", entries[0].Metadata["action"])
	assert.Equal(t, float64(3), models.ToMap(entries[0].Data)["totalDocuments"])
}

func TestRestore_ReplaceExistingClearsFirst(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)
	require.NoError(t, st.Set(ctx, models.CollectionVendors, "stale", models.Document{"name": "Gone Inc"}))

	snap := &models.Snapshot{
		Data: map[string][]models.Document{
			models.CollectionVendors: {{"id": "v1", "name": "Acme", backupTimestampField: "x"}},
		},
	}
	restored, err := svc.RestoreFromBackup(ctx, snap, nil, true)
	require.NoError(t, err)
	require.Len(t, restored, 1)

	vendors, err := st.List(ctx, models.CollectionVendors)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, "v1", vendors[0].ID())
	assert.Equal(t, "unknown", vendors[0][restoredFromField])
}

func TestRestore_SkipsMissingCollectionsAndKeepsUnselected(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t)

	snap := &models.Snapshot{
		Metadata: &models.BackupMetadata{CreatedAt: "2024-01-01T00:00:00.000000Z"},
		Data: map[string][]models.Document{
			models.CollectionVendors:    {{"id": "v1", "name": "Acme"}},
			models.CollectionCategories: {{"id": "c1", "name": "Rockets"}},
		},
	}
	restored, err := svc.RestoreFromBackup(ctx, snap, []string{models.CollectionVendors, "reports"}, false)
	require.NoError(t, err)
	assert.Equal(t, []RestoredCollection{{Collection: models.CollectionVendors, DocumentsRestored: 1}}, restored)

	cats, err := st.List(ctx, models.CollectionCategories)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestRestore_InvalidSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RestoreFromBackup(context.Background(), nil, nil, false)
	assert.ErrorIs(t, err, ErrInvalidBackup)

	_, err = svc.RestoreFromBackup(context.Background(), &models.Snapshot{}, nil, false)
	assert.ErrorIs(t, err, ErrInvalidBackup)
}

type failingCommit struct {
	*store.MemoryStore
}

func (failingCommit) Commit(context.Context, *store.Batch) error {
	return errors.New("deadline exceeded")
}

func TestRestore_CommitFailureWritesNothing(t *testing.T) {
	st := failingCommit{store.NewMemoryStore()}
	w := audit.NewWriter(st, 0, 0)
	svc := NewService(documents.NewService(st, cache.NewCache(nil, 0), w, feed.NewHub()), w)

	snap := &models.Snapshot{Data: map[string][]models.Document{
		models.CollectionVendors: {{"id": "v1", "name": "Acme"}},
	}}
	_, err := svc.RestoreFromBackup(context.Background(), snap, nil, false)
	assert.Error(t, err)

	entries, err := w.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestValidateBackupData(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		v := ValidateBackupData(nil)
		assert.False(t, v.IsValid)
		assert.Equal(t, []string{"Backup data is null or undefined"}, v.Errors)
	})

	t.Run("missing sections", func(t *testing.T) {
		v := ValidateBackupData(map[string]any{})
		assert.False(t, v.IsValid)
		assert.Equal(t, []string{"Backup metadata is missing", "Backup data section is missing"}, v.Errors)
	})

	t.Run("orders not an array", func(t *testing.T) {
		v := ValidateJSON([]byte(`{"metadata":{"version":"1.0.0"},"data":{"orders":{"a":1},"products":[{"id":"p1"}]}}`))
		assert.False(t, v.IsValid)
		assert.Empty(t, v.Errors)
		orders := v.Collections["orders"]
		assert.False(t, orders.HasValidDocuments)
		assert.Equal(t, []string{"Collection data is not an array"}, orders.Errors)
		assert.True(t, v.Collections["products"].HasValidDocuments)
		assert.Equal(t, 1, v.Collections["products"].DocumentCount)
	})

	t.Run("missing ids are warnings", func(t *testing.T) {
		v := ValidateJSON([]byte(`{"metadata":{},"data":{"vendors":[{"name":"x"},{"id":"v2"}]}}`))
		assert.True(t, v.IsValid)
		assert.Equal(t, []string{"vendors: Document at index 0 missing id"}, v.Warnings)
		assert.Equal(t, []string{"Document at index 0 missing id"}, v.Collections["vendors"].Errors)
	})

	t.Run("not json", func(t *testing.T) {
		v := ValidateJSON([]byte(`{oops`))
		assert.False(t, v.IsValid)
		require.Len(t, v.Errors, 1)
		assert.Contains(t, v.Errors[0], "Validation error")
	})
}

func TestDecodeSnapshot_RejectsInvalid(t *testing.T) {
	_, report, err := DecodeSnapshot([]byte(`{"metadata":{},"data":{"orders":"nope"}}`))
	assert.ErrorIs(t, err, ErrInvalidBackup)
	require.NotNil(t, report)
	assert.False(t, report.IsValid)
}

func TestHistoryDeleteAndStatistics(t *testing.T) {
	ctx := context.Background()
	svc, st, w := newTestService(t)
	seed(t, st)

	first, err := svc.CreateFullBackup(ctx)
	require.NoError(t, err)
	svc.SetClock(func() time.Time { return fixedNow.Add(time.Hour) })
	second, err := svc.CreateFullBackup(ctx)
	require.NoError(t, err)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.Metadata.ID, history[0].ID)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalBackups)
	assert.Equal(t, second.Metadata.ID, stats.LatestBackup.ID)
	assert.Equal(t, first.Metadata.ID, stats.OldestBackup.ID)
	assert.Equal(t, len(models.TrackedCollections), stats.CollectionsTracked)
	assert.Equal(t, 2, stats.EstimatedDataSize.Collections[models.CollectionProducts])
	assert.Equal(t, stats.EstimatedDataSize.TotalDocuments*2, stats.EstimatedDataSize.EstimatedSizeKB)

	require.NoError(t, svc.Delete(ctx, first.Metadata.ID))
	history, err = svc.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	deletes, err := w.Query(ctx, audit.Filter{Collection: models.CollectionBackups, Action: models.ActionDelete})
	require.NoError(t, err)
	require.Len(t, deletes, 1)
	assert.Equal(t, "backup_deleted", deletes[0].Metadata["action"])
}

func TestEncodeSnapshotIsPortable(t *testing.T) {
	raw, err := EncodeSnapshot(&models.Snapshot{
		Metadata: &models.BackupMetadata{Version: Version, Type: TypeFull},
		Data:     map[string][]models.Document{"vendors": {{"id": "v1"}}},
	})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.True(t, ValidateBackupData(generic).IsValid)

	assert.Equal(t, "firework-factory-backup-2024-06-30.json", ExportFilename(fixedNow))

	_, err = EncodeSnapshot(nil)
	assert.ErrorIs(t, err, ErrInvalidBackup)
}
