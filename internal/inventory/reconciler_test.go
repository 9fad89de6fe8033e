package inventory

import (
	"context"
	"errors"
	"sync"
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

type fixture struct {
	store *store.MemoryStore
	docs  *documents.Service
	rec   *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	docs := documents.NewService(st, cache.NewCache(cache.NewMemoryKV(), 0), audit.NewWriter(st, 0, 0), feed.NewHub())
	return &fixture{store: st, docs: docs, rec: NewReconciler(docs, NewLocalLocker())}
}

func (f *fixture) product(t *testing.T, id, name string, threshold float64) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), models.CollectionProducts, id, models.Document{
		"name":                  name,
		"lowInventoryThreshold": threshold,
	}))
}

func (f *fixture) stock(t *testing.T, productID string) (models.InventoryRecord, int) {
	t.Helper()
	docs, err := f.store.Query(context.Background(), models.CollectionInventory, store.Query{}.Where("productId", productID))
	require.NoError(t, err)
	if len(docs) == 0 {
		return models.InventoryRecord{}, 0
	}
	return models.InventoryFromDocument(docs[0]), len(docs)
}

func TestParseUpdate(t *testing.T) {
	assert.Equal(t, 12, ParseUpdate(12).Quantity)
	assert.Equal(t, 7, ParseUpdate("7").Quantity)
	assert.Equal(t, 0, ParseUpdate("lots").Quantity)
	assert.Equal(t, 0, ParseUpdate(nil).Quantity)

	u := ParseUpdate(map[string]any{"quantity": "7", "location": "A1", "lastUpdated": "2024-01-01T00:00:00.000000Z"})
	assert.Equal(t, 7, u.Quantity)
	require.NotNil(t, u.Location)
	assert.Equal(t, "A1", *u.Location)
	assert.Equal(t, "2024-01-01T00:00:00.000000Z", u.LastUpdated)

	u = ParseUpdate(map[string]any{"location": "B2"})
	assert.Equal(t, 0, u.Quantity)
}

func TestUpdateInventory_StructuredInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p2", "Sparkler", 0)

	_, err := f.rec.UpdateInventory(ctx, "p2", Update{Quantity: 1, Location: strPtr("Z9")})
	require.NoError(t, err)
	before, _ := f.stock(t, "p2")

	_, err = f.rec.UpdateInventory(ctx, "p2", ParseUpdate(map[string]any{"quantity": "7", "location": "A1"}))
	require.NoError(t, err)

	rec, n := f.stock(t, "p2")
	assert.Equal(t, 1, n)
	assert.Equal(t, before.ID, rec.ID)
	assert.Equal(t, 7, rec.Quantity)
	require.NotNil(t, rec.Location)
	assert.Equal(t, "A1", *rec.Location)

	doc, err := f.store.Get(ctx, models.CollectionInventory, rec.ID)
	require.NoError(t, err)
	assert.IsType(t, float64(0), doc["quantity"])
	assert.NotEmpty(t, doc["createdAt"])
}

func TestUpdateInventory_AuditsPriorState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p3", "Fountain", 0)

	_, err := f.rec.UpdateInventory(ctx, "p3", Update{Quantity: 4})
	require.NoError(t, err)
	_, err = f.rec.UpdateInventory(ctx, "p3", Update{Quantity: 9})
	require.NoError(t, err)

	entries, err := audit.NewWriter(f.store, 0, 0).Query(ctx, audit.Filter{Collection: models.CollectionInventory})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	update := entries[0]
	assert.Equal(t, models.ActionUpdate, update.Action)
	assert.Equal(t, "quantity_update", update.Metadata["changeType"])
	assert.Equal(t, "Fountain", update.Metadata["productName"])
	assert.Equal(t, "p3", update.Metadata["productId"])
	assert.Equal(t, float64(4), models.ToMap(update.Metadata["previousData"])["quantity"])

	create := entries[1]
	assert.Equal(t, models.ActionCreate, create.Action)
	assert.Equal(t, "create_inventory", create.Metadata["changeType"])
}

func TestUpdateInventory_UnknownProductName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.rec.UpdateInventory(ctx, "ghost", Update{Quantity: 1})
	require.NoError(t, err)

	entries, err := audit.NewWriter(f.store, 0, 0).Query(ctx, audit.Filter{Collection: models.CollectionInventory})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, unknownProduct, entries[0].Metadata["productName"])
}

func TestUpdateInventory_RejectsNegative(t *testing.T) {
	f := newFixture(t)

	_, err := f.rec.UpdateInventory(context.Background(), "p1", Update{Quantity: -3})
	var verr *models.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, n := f.stock(t, "p1")
	assert.Zero(t, n)
}

func TestReceivedOrderClearsLowStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", "Roman Candle", 10)

	_, err := f.rec.UpdateInventory(ctx, "p1", Update{Quantity: 5})
	require.NoError(t, err)

	low, err := f.rec.GetLowStockProducts(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "p1", low[0].ProductID)
	assert.Equal(t, 5, low[0].CurrentStock)

	order := models.Order{ID: "o1", Status: models.OrderStatusReceived, Items: []models.OrderItem{{ProductID: "p1", Quantity: 20}}}
	outcomes := f.rec.ApplyReceivedOrder(ctx, order)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Equal(t, 25, outcomes[0].NewQuantity)

	rec, _ := f.stock(t, "p1")
	assert.Equal(t, 25, rec.Quantity)

	low, err = f.rec.GetLowStockProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, low)
}

func TestApplyReceivedOrder_IsAdditive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.product(t, "p1", "Roman Candle", 0)
	_, err := f.rec.UpdateInventory(ctx, "p1", Update{Quantity: 5})
	require.NoError(t, err)

	order := models.Order{ID: "o1", Items: []models.OrderItem{{ProductID: "p1", Quantity: 20}}}
	f.rec.ApplyReceivedOrder(ctx, order)
	f.rec.ApplyReceivedOrder(ctx, order)

	rec, _ := f.stock(t, "p1")
	assert.Equal(t, 45, rec.Quantity)
}

func TestApplyReceivedOrder_CreatesMissingRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	outcomes := f.rec.ApplyReceivedOrder(ctx, models.Order{Items: []models.OrderItem{
		{ProductID: "a", Quantity: 3},
		{ProductID: "b", Quantity: 0},
	}})
	require.Len(t, outcomes, 2)

	a, _ := f.stock(t, "a")
	assert.Equal(t, 3, a.Quantity)
	b, n := f.stock(t, "b")
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, b.Quantity)
}

type busyLocker struct{ failKey string }

func (b busyLocker) Lock(_ context.Context, key string) (func(), error) {
	if key == b.failKey {
		return nil, ErrBusy
	}
	return func() {}, nil
}

func TestApplyReceivedOrder_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := NewReconciler(f.docs, busyLocker{failKey: "inventory:bad"})

	outcomes := rec.ApplyReceivedOrder(ctx, models.Order{Items: []models.OrderItem{
		{ProductID: "bad", Quantity: 1},
		{ProductID: "good", Quantity: 2},
	}})
	require.Len(t, outcomes, 2)
	assert.ErrorIs(t, outcomes[0].Err, ErrBusy)
	assert.NoError(t, outcomes[1].Err)

	good, _ := f.stock(t, "good")
	assert.Equal(t, 2, good.Quantity)
}

func TestApplyReceivedOrder_ConcurrentOrdersDoNotLoseUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.rec.UpdateInventory(ctx, "p1", Update{Quantity: 0})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.rec.ApplyReceivedOrder(ctx, models.Order{Items: []models.OrderItem{{ProductID: "p1", Quantity: 1}}})
		}()
	}
	wg.Wait()

	rec, n := f.stock(t, "p1")
	assert.Equal(t, 1, n)
	assert.Equal(t, 10, rec.Quantity)
}

func TestLowStock(t *testing.T) {
	products := []models.Product{
		{ID: "at", Name: "At threshold", LowInventoryThreshold: 5},
		{ID: "above", Name: "Above", LowInventoryThreshold: 5},
		{ID: "items", Name: "Threshold in items wins", LowInventoryThreshold: 1, ThresholdInItems: 50},
		{ID: "missing", Name: "No record, no threshold"},
	}
	records := []models.InventoryRecord{
		{ProductID: "at", Quantity: 5},
		{ProductID: "above", Quantity: 6},
		{ProductID: "items", Quantity: 20},
	}

	low := LowStock(products, records)
	ids := make([]string, 0, len(low))
	for _, l := range low {
		ids = append(ids, l.ProductID)
	}
	assert.Equal(t, []string{"at", "items", "missing"}, ids)
	assert.Equal(t, float64(50), low[1].Threshold)
	assert.Equal(t, 0, low[2].CurrentStock)
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := l.Lock(ctx, "other")
	require.NoError(t, err)
	other()

	unlock()
	again, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	again()
}

type fakeLockClient struct {
	mu     sync.Mutex
	held   map[string]string
	denied int
}

func (f *fakeLockClient) AcquireLock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.held[key]; ok {
		f.denied++
		return false, nil
	}
	f.held[key] = token
	return true, nil
}

func (f *fakeLockClient) ReleaseLock(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	return nil
}

func TestRedisLocker(t *testing.T) {
	client := &fakeLockClient{held: map[string]string{}}
	l := NewRedisLocker(client, time.Second)
	l.wait = time.Millisecond
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "inventory:p1")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "inventory:p1")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 3, client.denied)

	unlock()
	unlock2, err := l.Lock(ctx, "inventory:p1")
	require.NoError(t, err)
	unlock2()
}

func strPtr(s string) *string { return &s }
