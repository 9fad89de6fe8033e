package service

import (
	"context"
	"fmt"

	"inventory-service/internal/documents"
	"inventory-service/internal/inventory"
	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// OrderService handles purchase orders and the stock they bring in
type OrderService struct {
	docs       *documents.Service
	reconciler *inventory.Reconciler
	locker     inventory.Locker
	logger     *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(docs *documents.Service, reconciler *inventory.Reconciler, locker inventory.Locker) *OrderService {
	if locker == nil {
		locker = inventory.NewLocalLocker()
	}
	return &OrderService{
		docs:       docs,
		reconciler: reconciler,
		locker:     locker,
		logger:     util.GetLogger(),
	}
}

// OrderResult is a stored order plus the stock changes it caused, if any
type OrderResult struct {
	Order     models.Document         `json:"order"`
	Inventory []inventory.ItemOutcome `json:"inventory,omitempty"`
}

// AddOrder stores a new order, pending unless a status is given. An order
// created as received is applied to inventory straight away.
func (s *OrderService) AddOrder(ctx context.Context, in models.Document) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AddOrder", models.CollectionOrders)
	defer span.End()

	order := models.OrderFromDocument(in)
	if err := order.Validate(); err != nil {
		return nil, err
	}

	fields := in.Without("id")
	fields["status"] = order.Status
	fields["items"] = order.ItemFields()

	doc, err := s.docs.Create(ctx, models.CollectionOrders, fields, nil)
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	s.logger.Info("Order created", zap.String("order_id", doc.ID()), zap.String("status", order.Status))

	result := &OrderResult{Order: doc}
	if order.Status == models.OrderStatusReceived {
		s.logger.Info("New order is already received, updating inventory", zap.String("order_id", doc.ID()))
		order.ID = doc.ID()
		result.Inventory = s.reconciler.ApplyReceivedOrder(ctx, order)
	}
	return result, nil
}

// UpdateOrder merges in into the order. Inventory is applied only when
// this update moves the order into received, so re-saving a received
// order does not count its stock twice.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, in models.Document) (*OrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrder", models.CollectionOrders)
	defer span.End()

	unlock, err := s.locker.Lock(ctx, "order:"+id)
	if err != nil {
		return nil, fmt.Errorf("lock order %s: %w", id, err)
	}
	defer unlock()

	prevDoc, err := s.docs.Get(ctx, models.CollectionOrders, id)
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}
	if prevDoc == nil {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	prev := models.OrderFromDocument(prevDoc)

	fields := in.Without("id")
	if _, ok := in["items"]; ok {
		fields["items"] = models.OrderFromDocument(in).ItemFields()
	}

	merged := models.OrderFromDocument(prevDoc.Merge(fields))
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	doc, err := s.docs.Update(ctx, models.CollectionOrders, id, fields, map[string]any{
		"previousData": map[string]any(prevDoc.Without("id")),
	})
	if err != nil {
		util.SpanError(span, err)
		return nil, err
	}

	result := &OrderResult{Order: doc}
	if merged.Status == models.OrderStatusReceived && prev.Status != models.OrderStatusReceived {
		s.logger.Info("Order marked as received, updating inventory",
			zap.String("order_id", id),
			zap.String("previous_status", prev.Status),
		)
		result.Inventory = s.reconciler.ApplyReceivedOrder(ctx, merged)
	}
	return result, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id string) error {
	return s.docs.Delete(ctx, models.CollectionOrders, id)
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	doc, err := s.docs.Get(ctx, models.CollectionOrders, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("order %s: %w", id, store.ErrNotFound)
	}
	order := models.OrderFromDocument(doc)
	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	docs, err := s.docs.List(ctx, models.CollectionOrders, true)
	if err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.OrderFromDocument(d))
	}
	return out, nil
}

// PendingOrders returns the orders still in pending status
func (s *OrderService) PendingOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]models.Order, 0)
	for _, o := range orders {
		if o.Status == models.OrderStatusPending {
			pending = append(pending, o)
		}
	}
	return pending, nil
}
