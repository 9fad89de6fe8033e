package service

import (
	"context"

	"inventory-service/internal/inventory"
	"inventory-service/internal/models"
	"inventory-service/internal/notify"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// ServiceInitializer runs the startup checks over fresh data
type ServiceInitializer struct {
	reconciler *inventory.Reconciler
	deriver    *notify.Deriver
	logger     *zap.Logger
}

func NewServiceInitializer(reconciler *inventory.Reconciler, deriver *notify.Deriver) *ServiceInitializer {
	return &ServiceInitializer{
		reconciler: reconciler,
		deriver:    deriver,
		logger:     util.GetLogger(),
	}
}

// CheckLowInventory reads products and inventory past the cache and
// raises a notification for every low product
func (si *ServiceInitializer) CheckLowInventory(ctx context.Context) ([]models.LowStockItem, error) {
	products, records, err := si.reconciler.Snapshot(ctx, false)
	if err != nil {
		si.logger.Error("Error checking low inventory", zap.Error(err))
		return nil, err
	}
	low := si.deriver.CheckLowInventory(ctx, products, records)
	si.logger.Info("Low inventory check complete",
		zap.Int("products", len(products)),
		zap.Int("low_stock", len(low)),
	)
	return low, nil
}
