package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"warehouse-service/internal/models"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"
)

// StockRequestService owns supplier replenishment requests.
type StockRequestService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewStockRequestService(st *store.Store) *StockRequestService {
	return &StockRequestService{store: st, logger: util.GetLogger()}
}

type StockRequestLineRequest struct {
	SKU               string  `json:"sku" binding:"required"`
	QuantityRequested int     `json:"quantity_requested" binding:"required,gt=0"`
	UnitCost          float64 `json:"unit_cost" binding:"gte=0"`
}

type CreateStockRequestRequest struct {
	Supplier string                    `json:"supplier"`
	Notes    string                    `json:"notes"`
	Items    []StockRequestLineRequest `json:"items" binding:"required,min=1,dive"`
}

// Create resolves each SKU and opens a pending request.
func (s *StockRequestService) Create(ctx context.Context, req *CreateStockRequestRequest) (*models.StockRequest, error) {
	request := &models.StockRequest{
		RequestNumber: newStockRequestNumber(),
		Supplier:      req.Supplier,
		Notes:         req.Notes,
	}

	for _, line := range req.Items {
		item, err := s.resolveLine(ctx, line)
		if err != nil {
			return nil, err
		}
		request.Items = append(request.Items, *item)
	}

	if err := s.store.CreateStockRequest(ctx, request); err != nil {
		return nil, err
	}
	s.logger.Info("stock request created",
		zap.String("request_number", request.RequestNumber),
		zap.Int("lines", len(request.Items)))
	return s.store.GetStockRequest(ctx, request.ID)
}

func (s *StockRequestService) resolveLine(ctx context.Context, line StockRequestLineRequest) (*models.StockRequestItem, error) {
	variant, err := s.store.GetVariantBySKU(ctx, line.SKU)
	if err == nil {
		product, perr := s.store.GetProduct(ctx, variant.ProductID)
		if perr != nil {
			return nil, perr
		}
		return &models.StockRequestItem{
			ProductID:         product.ID,
			VariantID:         variant.ID,
			SKU:               variant.VariantSKU,
			ProductName:       product.Name,
			VariantLabel:      variant.Label,
			QuantityRequested: line.QuantityRequested,
			UnitCost:          line.UnitCost,
		}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	product, err := s.store.GetProductBySKU(ctx, line.SKU)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Validationf("unknown SKU %q", line.SKU)
		}
		return nil, err
	}
	return &models.StockRequestItem{
		ProductID:         product.ID,
		SKU:               product.SKU,
		ProductName:       product.Name,
		QuantityRequested: line.QuantityRequested,
		UnitCost:          line.UnitCost,
	}, nil
}

func (s *StockRequestService) Get(ctx context.Context, id string) (*models.StockRequest, error) {
	return s.store.GetStockRequest(ctx, id)
}

func (s *StockRequestService) List(ctx context.Context, status string, offset, limit int) ([]models.StockRequest, error) {
	if status != "" {
		switch models.StockRequestStatus(status) {
		case models.StockRequestStatusPending, models.StockRequestStatusApproved,
			models.StockRequestStatusReceiving, models.StockRequestStatusCompleted,
			models.StockRequestStatusCancelled:
		default:
			return nil, Validationf("unknown stock request status %q", status)
		}
	}
	return s.store.ListStockRequests(ctx, status, offset, limit)
}

// Transition moves a request along its lifecycle.
func (s *StockRequestService) Transition(ctx context.Context, id string, status models.StockRequestStatus) (*models.StockRequest, error) {
	updated, err := s.store.TransitionStockRequest(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock request transitioned",
		zap.String("request_number", updated.RequestNumber),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

type ReceiveItemsRequest struct {
	Items []ReceiveItemLine `json:"items" binding:"required,min=1,dive"`
}

type ReceiveItemLine struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// Receive books received units against a request in receiving status. Stock
// and the ledger move in the same transaction as the request lines.
func (s *StockRequestService) Receive(ctx context.Context, id string, req *ReceiveItemsRequest) (*models.StockRequest, error) {
	lines := make([]store.ReceivedLine, 0, len(req.Items))
	for _, line := range req.Items {
		lines = append(lines, store.ReceivedLine{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	updated, err := s.store.ReceiveStockRequestItems(ctx, id, lines)
	if err != nil {
		return nil, err
	}
	if updated.Status == models.StockRequestStatusCompleted {
		s.logger.Info("stock request completed", zap.String("request_number", updated.RequestNumber))
	}
	return updated, nil
}
