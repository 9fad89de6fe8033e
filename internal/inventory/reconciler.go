package inventory

import (
	"context"
	"fmt"
	"time"

	"inventory-service/internal/documents"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

const unknownProduct = "Unknown Product"

// Update is a normalized inventory write
type Update struct {
	Quantity    int
	LastUpdated string
	Location    *string
}

// ParseUpdate accepts a bare quantity or an object carrying quantity,
// lastUpdated and location. Missing or non-numeric quantities become 0.
func ParseUpdate(v any) Update {
	m := models.ToMap(v)
	if m == nil {
		return Update{Quantity: models.ToInt(v)}
	}

	u := Update{Quantity: models.ToInt(m["quantity"])}
	if s := models.ToString(m["lastUpdated"]); s != "" {
		u.LastUpdated = s
	}
	if raw, ok := m["location"]; ok && raw != nil {
		loc := fmt.Sprint(raw)
		u.Location = &loc
	}
	return u
}

// ItemOutcome is the result of applying one order line
type ItemOutcome struct {
	ProductID   string `json:"productId"`
	Added       int    `json:"added"`
	NewQuantity int    `json:"newQuantity"`
	Err         error  `json:"-"`
	Error       string `json:"error,omitempty"`
}

// Reconciler keeps inventory records in step with stock changes
type Reconciler struct {
	docs   *documents.Service
	locker Locker
	now    func() time.Time
	logger *zap.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(docs *documents.Service, locker Locker) *Reconciler {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Reconciler{
		docs:   docs,
		locker: locker,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// ApplyReceivedOrder adds every line's quantity to current stock. It is
// additive: applying the same order twice counts it twice, so callers
// must only apply an order on its transition into received. A failing
// line is logged and the rest are still applied.
func (r *Reconciler) ApplyReceivedOrder(ctx context.Context, order models.Order) []ItemOutcome {
	ctx, span := util.StartSpan(ctx, "Reconciler.ApplyReceivedOrder", models.CollectionInventory)
	defer span.End()

	outcomes := make([]ItemOutcome, 0, len(order.Items))
	for _, item := range order.Items {
		out := ItemOutcome{ProductID: item.ProductID, Added: item.Quantity}

		err := r.withLock(ctx, item.ProductID, func(ctx context.Context) error {
			current, err := r.current(ctx, item.ProductID)
			if err != nil {
				return err
			}
			have := 0
			if current != nil {
				have = current.Quantity
			}
			out.NewQuantity = have + item.Quantity

			r.logger.Info("Updating inventory from order",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("current", have),
				zap.Int("adding", item.Quantity),
				zap.Int("new", out.NewQuantity),
			)
			_, err = r.write(ctx, item.ProductID, current, Update{Quantity: out.NewQuantity})
			return err
		})
		if err != nil {
			util.SpanError(span, err)
			r.logger.Error("Error updating inventory from order",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
			out.Err = err
			out.Error = err.Error()
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// UpdateInventory sets a product's stock, creating its record on first write
func (r *Reconciler) UpdateInventory(ctx context.Context, productID string, u Update) (models.Document, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.UpdateInventory", models.CollectionInventory)
	defer span.End()

	var doc models.Document
	err := r.withLock(ctx, productID, func(ctx context.Context) error {
		current, err := r.current(ctx, productID)
		if err != nil {
			return err
		}
		doc, err = r.write(ctx, productID, current, u)
		return err
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	return doc, nil
}

// GetLowStockProducts reads products and inventory and returns the low ones
func (r *Reconciler) GetLowStockProducts(ctx context.Context) ([]models.LowStockItem, error) {
	products, records, err := r.Snapshot(ctx, true)
	if err != nil {
		return nil, err
	}
	return LowStock(products, records), nil
}

// Snapshot lists products and inventory records
func (r *Reconciler) Snapshot(ctx context.Context, useCache bool) ([]models.Product, []models.InventoryRecord, error) {
	productDocs, err := r.docs.List(ctx, models.CollectionProducts, useCache)
	if err != nil {
		return nil, nil, err
	}
	inventoryDocs, err := r.docs.List(ctx, models.CollectionInventory, useCache)
	if err != nil {
		return nil, nil, err
	}

	products := make([]models.Product, 0, len(productDocs))
	for _, d := range productDocs {
		products = append(products, models.ProductFromDocument(d))
	}
	records := make([]models.InventoryRecord, 0, len(inventoryDocs))
	for _, d := range inventoryDocs {
		records = append(records, models.InventoryFromDocument(d))
	}
	return products, records, nil
}

// LowStock flags every product whose stock is at or below its effective
// threshold. A product with no record has stock 0.
func LowStock(products []models.Product, records []models.InventoryRecord) []models.LowStockItem {
	stock := make(map[string]int, len(records))
	for _, rec := range records {
		if _, seen := stock[rec.ProductID]; !seen {
			stock[rec.ProductID] = rec.Quantity
		}
	}

	low := make([]models.LowStockItem, 0)
	for _, p := range products {
		current := stock[p.ID]
		threshold := p.EffectiveThreshold()
		if float64(current) <= threshold {
			low = append(low, models.LowStockItem{
				ProductID:    p.ID,
				ProductName:  p.Name,
				CurrentStock: current,
				Threshold:    threshold,
			})
		}
	}
	return low
}

func (r *Reconciler) withLock(ctx context.Context, productID string, fn func(ctx context.Context) error) error {
	unlock, err := r.locker.Lock(ctx, "inventory:"+productID)
	if err != nil {
		return fmt.Errorf("lock inventory for %s: %w", productID, err)
	}
	defer unlock()
	return fn(ctx)
}

// current reads the product's record straight from the store
func (r *Reconciler) current(ctx context.Context, productID string) (*models.InventoryRecord, error) {
	docs, err := r.docs.Query(ctx, models.CollectionInventory,
		store.Query{Limit: 1}.Where("productId", productID))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	rec := models.InventoryFromDocument(docs[0])
	return &rec, nil
}

func (r *Reconciler) write(ctx context.Context, productID string, current *models.InventoryRecord, u Update) (models.Document, error) {
	rec := models.InventoryRecord{ProductID: productID, Quantity: u.Quantity}
	if err := rec.Validate(); err != nil {
		util.InventoryReconciliationsTotal.WithLabelValues("rejected", "error").Inc()
		return nil, err
	}

	lastUpdated := u.LastUpdated
	if lastUpdated == "" {
		lastUpdated = models.FormatTime(r.now())
	}
	productName := r.productName(ctx, productID)

	if current == nil {
		fields := models.Document{
			"productId":   productID,
			"quantity":    u.Quantity,
			"lastUpdated": lastUpdated,
		}
		if u.Location != nil {
			fields["location"] = *u.Location
		}
		doc, err := r.docs.Create(ctx, models.CollectionInventory, fields, map[string]any{
			"action":      "Initial inventory creation",
			"productId":   productID,
			"productName": productName,
			"reason":      "New inventory item",
			"changeType":  "create_inventory",
		})
		r.count("create_inventory", err)
		return doc, err
	}

	fields := models.Document{
		"quantity":    u.Quantity,
		"lastUpdated": lastUpdated,
	}
	if u.Location != nil {
		fields["location"] = *u.Location
	}
	var prevLocation any
	if current.Location != nil {
		prevLocation = *current.Location
	}
	doc, err := r.docs.Update(ctx, models.CollectionInventory, current.ID, fields, map[string]any{
		"previousData": map[string]any{
			"quantity": current.Quantity,
			"location": prevLocation,
		},
		"inventoryId": current.ID,
		"productId":   productID,
		"productName": productName,
		"reason":      "Inventory update",
		"changeType":  "quantity_update",
	})
	r.count("quantity_update", err)
	return doc, err
}

func (r *Reconciler) productName(ctx context.Context, productID string) string {
	doc, err := r.docs.Get(ctx, models.CollectionProducts, productID)
	if err != nil || doc == nil {
		return unknownProduct
	}
	if name := models.ToString(doc["name"]); name != "" {
		return name
	}
	return unknownProduct
}

func (r *Reconciler) count(changeType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	util.InventoryReconciliationsTotal.WithLabelValues(changeType, result).Inc()
}
