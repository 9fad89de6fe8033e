package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-service/internal/documents"
	"inventory-service/internal/inventory"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

var errEmptyID = errors.New("notification id is required")

// Deriver turns low-stock detections into persisted notifications
type Deriver struct {
	docs     *documents.Service
	suppress time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewDeriver creates a new deriver. With a positive suppress window a
// product already alerted on within the window is not alerted again;
// zero keeps every repeated alert.
func NewDeriver(docs *documents.Service, suppress time.Duration) *Deriver {
	return &Deriver{
		docs:     docs,
		suppress: suppress,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

func (d *Deriver) SetClock(now func() time.Time) {
	d.now = now
}

// CheckLowInventory persists one low_inventory notification per detection
// and returns the detections. A failed notification write is logged and
// does not stop the others.
func (d *Deriver) CheckLowInventory(ctx context.Context, products []models.Product, records []models.InventoryRecord) []models.LowStockItem {
	ctx, span := util.StartSpan(ctx, "Deriver.CheckLowInventory", models.CollectionNotifications)
	defer span.End()

	low := inventory.LowStock(products, records)
	util.LowStockDetectionsTotal.Add(float64(len(low)))

	recent := d.recentlyAlerted(ctx)
	for _, item := range low {
		if recent[item.ProductID] {
			d.logger.Debug("Low stock alert suppressed", zap.String("product_id", item.ProductID))
			continue
		}
		msg := fmt.Sprintf("Low stock alert: %s (%d remaining)", item.ProductName, item.CurrentStock)
		if _, err := d.AddNotification(ctx, models.NotificationLowInventory, msg, item.Fields()); err != nil {
			util.SpanError(span, err)
			d.logger.Error("Failed to create low stock notification",
				zap.String("product_id", item.ProductID),
				zap.Error(err),
			)
		}
	}
	return low
}

// AddNotification stores an unread notification
func (d *Deriver) AddNotification(ctx context.Context, notificationType, message string, data map[string]any) (*models.Notification, error) {
	n := models.Notification{Type: notificationType, Message: message, Data: data}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	st := d.docs.Store()
	id, err := st.Add(ctx, models.CollectionNotifications, models.Document{
		"type":      notificationType,
		"message":   message,
		"data":      data,
		"isRead":    false,
		"createdAt": models.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add notification: %w", err)
	}
	d.docs.Invalidate(ctx, models.CollectionNotifications)
	util.NotificationsCreatedTotal.WithLabelValues(notificationType).Inc()

	doc, err := st.Get(ctx, models.CollectionNotifications, id)
	if err != nil {
		n.ID = id
		return &n, nil
	}
	stored := models.NotificationFromDocument(doc)
	return &stored, nil
}

// MarkAsRead flips isRead and stamps readAt
func (d *Deriver) MarkAsRead(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyID
	}
	_, err := d.docs.Update(ctx, models.CollectionNotifications, id, models.Document{
		"isRead": true,
		"readAt": models.ServerTimestamp,
	}, nil)
	return err
}

// List returns notifications newest first
func (d *Deriver) List(ctx context.Context, unreadOnly bool) ([]models.Notification, error) {
	q := store.Query{OrderBy: "createdAt", Descending: true}
	if unreadOnly {
		q = q.Where("isRead", false)
	}
	docs, err := d.docs.Query(ctx, models.CollectionNotifications, q)
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(docs))
	for _, doc := range docs {
		out = append(out, models.NotificationFromDocument(doc))
	}
	return out, nil
}

// recentlyAlerted returns the products with a low_inventory notification
// inside the suppression window
func (d *Deriver) recentlyAlerted(ctx context.Context) map[string]bool {
	if d.suppress <= 0 {
		return nil
	}
	docs, err := d.docs.Query(ctx, models.CollectionNotifications,
		store.Query{OrderBy: "createdAt", Descending: true}.Where("type", models.NotificationLowInventory))
	if err != nil {
		d.logger.Warn("Could not read recent alerts, not suppressing", zap.Error(err))
		return nil
	}

	cutoff := d.now().Add(-d.suppress)
	recent := make(map[string]bool)
	for _, doc := range docs {
		n := models.NotificationFromDocument(doc)
		ts, err := models.ParseTime(n.CreatedAt)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			break
		}
		if pid := models.ToString(n.Data["productId"]); pid != "" {
			recent[pid] = true
		}
	}
	return recent
}
