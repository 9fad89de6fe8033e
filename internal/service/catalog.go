package service

import (
	"context"

	"inventory-service/internal/documents"
	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

type entity interface {
	Validate() error
	Fields() map[string]any
}

// CatalogService manages categories, vendors and products
type CatalogService struct {
	docs   *documents.Service
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(docs *documents.Service) *CatalogService {
	return &CatalogService{
		docs:   docs,
		logger: util.GetLogger(),
	}
}

func (s *CatalogService) AddCategory(ctx context.Context, in models.Document) (models.Document, error) {
	c := models.CategoryFromDocument(in)
	return s.create(ctx, models.CollectionCategories, c)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id string, in models.Document) (models.Document, error) {
	c := models.CategoryFromDocument(in)
	return s.update(ctx, models.CollectionCategories, id, c)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	return s.docs.Delete(ctx, models.CollectionCategories, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	docs, err := s.docs.List(ctx, models.CollectionCategories, true)
	if err != nil {
		return nil, err
	}
	out := make([]models.Category, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.CategoryFromDocument(d))
	}
	return out, nil
}

func (s *CatalogService) AddVendor(ctx context.Context, in models.Document) (models.Document, error) {
	return s.create(ctx, models.CollectionVendors, models.VendorFromDocument(in))
}

func (s *CatalogService) UpdateVendor(ctx context.Context, id string, in models.Document) (models.Document, error) {
	return s.update(ctx, models.CollectionVendors, id, models.VendorFromDocument(in))
}

func (s *CatalogService) DeleteVendor(ctx context.Context, id string) error {
	return s.docs.Delete(ctx, models.CollectionVendors, id)
}

func (s *CatalogService) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	docs, err := s.docs.List(ctx, models.CollectionVendors, true)
	if err != nil {
		return nil, err
	}
	out := make([]models.Vendor, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.VendorFromDocument(d))
	}
	return out, nil
}

// AddProduct stores a normalized product; unknown fields such as the
// legacy units list are dropped
func (s *CatalogService) AddProduct(ctx context.Context, in models.Document) (models.Document, error) {
	return s.create(ctx, models.CollectionProducts, models.ProductFromDocument(in))
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in models.Document) (models.Document, error) {
	return s.update(ctx, models.CollectionProducts, id, models.ProductFromDocument(in))
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	return s.docs.Delete(ctx, models.CollectionProducts, id)
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	docs, err := s.docs.List(ctx, models.CollectionProducts, true)
	if err != nil {
		return nil, err
	}
	out := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.ProductFromDocument(d))
	}
	return out, nil
}

func (s *CatalogService) create(ctx context.Context, collection string, e entity) (models.Document, error) {
	if err := e.Validate(); err != nil {
		s.logger.Warn("Rejected invalid document", zap.String("collection", collection), zap.Error(err))
		return nil, err
	}
	return s.docs.Create(ctx, collection, e.Fields(), nil)
}

func (s *CatalogService) update(ctx context.Context, collection, id string, e entity) (models.Document, error) {
	if err := e.Validate(); err != nil {
		s.logger.Warn("Rejected invalid document",
			zap.String("collection", collection),
			zap.String("document_id", id),
			zap.Error(err),
		)
		return nil, err
	}
	return s.docs.Update(ctx, collection, id, e.Fields(), nil)
}
