package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-service/internal/models"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"
)

// ProductService owns the catalog and manual inventory adjustments.
type ProductService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewProductService(st *store.Store) *ProductService {
	return &ProductService{store: st, logger: util.GetLogger()}
}

type CreateVariantRequest struct {
	VariantSKU       string  `json:"variant_sku" binding:"required"`
	Label            string  `json:"label"`
	PriceOverride    float64 `json:"price_override"`
	WeightOzOverride float64 `json:"weight_oz_override"`
	LengthInOverride float64 `json:"length_in_override"`
	WidthInOverride  float64 `json:"width_in_override"`
	HeightInOverride float64 `json:"height_in_override"`
	Quantity         int     `json:"quantity" binding:"gte=0"`
	Location         string  `json:"location"`
}

type CreateProductRequest struct {
	SKU         string                 `json:"sku" binding:"required"`
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	WeightOz    float64                `json:"weight_oz" binding:"gte=0"`
	LengthIn    float64                `json:"length_in" binding:"gte=0"`
	WidthIn     float64                `json:"width_in" binding:"gte=0"`
	HeightIn    float64                `json:"height_in" binding:"gte=0"`
	Price       float64                `json:"price" binding:"gte=0"`
	Quantity    int                    `json:"quantity" binding:"gte=0"`
	Location    string                 `json:"location"`
	Variants    []CreateVariantRequest `json:"variants,omitempty"`
}

// CreateProduct creates a product and its variants. Initial quantities go
// through the ledger so stock history starts at the first unit.
func (s *ProductService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.CreateProduct")
	defer span.End()

	product := &models.Product{
		ID:          uuid.New().String(),
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		WeightOz:    req.WeightOz,
		LengthIn:    req.LengthIn,
		WidthIn:     req.WidthIn,
		HeightIn:    req.HeightIn,
		Price:       req.Price,
		Quantity:    req.Quantity,
		Location:    req.Location,
	}
	for _, vr := range req.Variants {
		product.Variants = append(product.Variants, models.Variant{
			ID:               uuid.New().String(),
			ProductID:        product.ID,
			VariantSKU:       vr.VariantSKU,
			Label:            vr.Label,
			PriceOverride:    vr.PriceOverride,
			WeightOzOverride: vr.WeightOzOverride,
			LengthInOverride: vr.LengthInOverride,
			WidthInOverride:  vr.WidthInOverride,
			HeightInOverride: vr.HeightInOverride,
			Quantity:         vr.Quantity,
			Location:         vr.Location,
		})
	}

	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("product created", zap.String("sku", product.SKU), zap.Int("variants", len(product.Variants)))
	return s.store.GetProduct(ctx, product.ID)
}

// AddVariant attaches a new variant to an existing product.
func (s *ProductService) AddVariant(ctx context.Context, productRef string, req *CreateVariantRequest) (*models.Variant, error) {
	product, err := s.GetProduct(ctx, productRef)
	if err != nil {
		return nil, err
	}
	variant := &models.Variant{
		ID:               uuid.New().String(),
		ProductID:        product.ID,
		VariantSKU:       req.VariantSKU,
		Label:            req.Label,
		PriceOverride:    req.PriceOverride,
		WeightOzOverride: req.WeightOzOverride,
		LengthInOverride: req.LengthInOverride,
		WidthInOverride:  req.WidthInOverride,
		HeightInOverride: req.HeightInOverride,
		Quantity:         req.Quantity,
		Location:         req.Location,
	}
	if err := s.store.CreateVariant(ctx, variant); err != nil {
		return nil, err
	}
	return s.store.GetVariant(ctx, variant.ID)
}

// GetProduct looks up a product by id, falling back to SKU.
func (s *ProductService) GetProduct(ctx context.Context, ref string) (*models.Product, error) {
	product, err := s.store.GetProduct(ctx, ref)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.store.GetProductBySKU(ctx, ref)
}

func (s *ProductService) ListProducts(ctx context.Context, category string, offset, limit int) ([]models.Product, error) {
	return s.store.ListProducts(ctx, category, offset, limit)
}

type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	WeightOz    *float64 `json:"weight_oz"`
	LengthIn    *float64 `json:"length_in"`
	WidthIn     *float64 `json:"width_in"`
	HeightIn    *float64 `json:"height_in"`
	Price       *float64 `json:"price"`
	Location    *string  `json:"location"`
}

// UpdateProduct patches catalog fields. Quantity is deliberately absent:
// stock changes only move through adjustments so the ledger stays complete.
func (s *ProductService) UpdateProduct(ctx context.Context, ref string, req *UpdateProductRequest) (*models.Product, error) {
	product, err := s.GetProduct(ctx, ref)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.WeightOz != nil {
		product.WeightOz = *req.WeightOz
	}
	if req.LengthIn != nil {
		product.LengthIn = *req.LengthIn
	}
	if req.WidthIn != nil {
		product.WidthIn = *req.WidthIn
	}
	if req.HeightIn != nil {
		product.HeightIn = *req.HeightIn
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Location != nil {
		product.Location = *req.Location
	}
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return s.store.GetProduct(ctx, product.ID)
}

type AdjustStockRequest struct {
	SKU    string `json:"sku" binding:"required"`
	Change int    `json:"change" binding:"required"`
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

// AdjustStock applies a manual stock change to whichever of variant or
// product the SKU names. Zero deltas are rejected rather than logged as
// no-op ledger rows.
func (s *ProductService) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*models.Product, error) {
	if req.Change == 0 {
		return nil, Validationf("change must be non-zero")
	}
	reason := models.LedgerReason(req.Reason)
	if req.Reason == "" {
		reason = models.LedgerReasonAdjustment
	}
	if !reason.Valid() {
		return nil, Validationf("unknown adjustment reason %q", req.Reason)
	}

	variant, err := s.store.GetVariantBySKU(ctx, req.SKU)
	if err == nil {
		if _, err := s.store.AdjustVariant(ctx, variant.ID, req.Change, reason, "", req.Note); err != nil {
			return nil, err
		}
		return s.store.GetProduct(ctx, variant.ProductID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	product, err := s.store.GetProductBySKU(ctx, req.SKU)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Validationf("unknown SKU %q", req.SKU)
		}
		return nil, err
	}
	if _, err := s.store.AdjustProduct(ctx, product.ID, req.Change, reason, "", req.Note); err != nil {
		return nil, err
	}
	return s.store.GetProduct(ctx, product.ID)
}

// GetInventoryLogs returns a product's ledger, newest first.
func (s *ProductService) GetInventoryLogs(ctx context.Context, ref string, limit int) ([]models.InventoryLog, error) {
	product, err := s.GetProduct(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.store.GetInventoryLogs(ctx, product.ID, limit)
}
