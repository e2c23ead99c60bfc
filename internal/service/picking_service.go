package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-service/internal/broker"
	"warehouse-service/internal/models"
	"warehouse-service/internal/redisclient"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"
)

// PickingService owns picking lists and the scan workflow.
type PickingService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	redis     *redisclient.Client
	logger    *zap.Logger
}

func NewPickingService(st *store.Store, publisher *broker.EventPublisher, redis *redisclient.Client) *PickingService {
	return &PickingService{
		store:     st,
		publisher: publisher,
		redis:     redis,
		logger:    util.GetLogger(),
	}
}

type CreateBatchRequest struct {
	OrderIDs   []string `json:"order_ids" binding:"required,min=1"`
	AssignedTo string   `json:"assigned_to"`
}

// CreateBatch builds a picking list from pending orders. A short Redis lock
// narrows the race window between overlapping requests; the database
// transaction remains the actual arbiter.
func (s *PickingService) CreateBatch(ctx context.Context, req *CreateBatchRequest) (*models.PickingList, error) {
	ctx, span := util.StartSpan(ctx, "PickingService.CreateBatch")
	defer span.End()

	seen := make(map[string]bool, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		if seen[id] {
			return nil, Validationf("duplicate order id %q", id)
		}
		seen[id] = true
	}

	if s.redis != nil {
		token := uuid.New().String()
		ok, err := s.redis.AcquireLock(ctx, "picking:create", token, 10*time.Second)
		if err != nil {
			s.logger.Warn("picking lock unavailable", zap.Error(err))
		} else if !ok {
			return nil, fmt.Errorf("another picking list is being created: %w", store.ErrInvalidState)
		} else {
			defer func() {
				if err := s.redis.ReleaseLock(context.Background(), "picking:create", token); err != nil {
					s.logger.Warn("failed to release picking lock", zap.Error(err))
				}
			}()
		}
	}

	batch := &models.PickingList{
		PickingNumber: newPickingNumber(),
		AssignedTo:    req.AssignedTo,
	}
	if err := s.store.CreateBatch(ctx, batch, req.OrderIDs, newPickToken); err != nil {
		return nil, err
	}

	util.BatchesCreatedTotal.Inc()
	s.logger.Info("picking list created",
		zap.String("picking_number", batch.PickingNumber),
		zap.Int("orders", len(req.OrderIDs)),
		zap.Int("items", len(batch.Items)))
	return batch, nil
}

func (s *PickingService) GetBatch(ctx context.Context, id string) (*models.PickingList, error) {
	return s.store.GetBatch(ctx, id)
}

func (s *PickingService) ListBatches(ctx context.Context, offset, limit int) ([]models.PickingList, error) {
	return s.store.ListBatches(ctx, offset, limit)
}

// OrderProgress is one order's slice of a picking list: unit counts plus
// the per-unit picked breakdown.
type OrderProgress struct {
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Total       int               `json:"total"`
	Picked      int               `json:"picked"`
	Complete    bool              `json:"complete"`
	Items       []models.PickItem `json:"items"`
}

// BatchProgress summarizes how far along a picking list is, order by order.
type BatchProgress struct {
	PickingListID string             `json:"picking_list_id"`
	PickingNumber string             `json:"picking_number"`
	Status        models.BatchStatus `json:"status"`
	TotalItems    int                `json:"total_items"`
	PickedItems   int                `json:"picked_items"`
	Orders        []OrderProgress    `json:"orders"`
}

func (s *PickingService) GetProgress(ctx context.Context, id string) (*BatchProgress, error) {
	batch, err := s.store.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	orderIDs := make([]string, 0, len(batch.Items))
	index := make(map[string]int)
	orders := make([]OrderProgress, 0)
	for _, item := range batch.Items {
		if _, ok := index[item.OrderID]; !ok {
			index[item.OrderID] = len(orders)
			orders = append(orders, OrderProgress{OrderID: item.OrderID})
			orderIDs = append(orderIDs, item.OrderID)
		}
	}
	numbers, err := s.store.OrderNumbers(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	progress := &BatchProgress{
		PickingListID: batch.ID,
		PickingNumber: batch.PickingNumber,
		Status:        batch.Status,
		TotalItems:    len(batch.Items),
	}
	for _, item := range batch.Items {
		op := &orders[index[item.OrderID]]
		op.Total++
		if item.Picked {
			op.Picked++
			progress.PickedItems++
		}
		op.Items = append(op.Items, item)
	}
	for i := range orders {
		orders[i].OrderNumber = numbers[orders[i].OrderID]
		orders[i].Complete = orders[i].Picked == orders[i].Total
	}
	progress.Orders = orders
	return progress, nil
}

// ScanResult is the response to a pick scan. Success is false for unknown
// tokens and duplicates; the message explains which.
type ScanResult struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	OrderID       string     `json:"order_id,omitempty"`
	OrderNumber   string     `json:"order_number,omitempty"`
	OrderPicked   int        `json:"order_picked,omitempty"`
	OrderTotal    int        `json:"order_total,omitempty"`
	OrderComplete bool       `json:"order_complete"`
	PickedAt      *time.Time `json:"picked_at,omitempty"`
}

// Scan processes one pick token.
func (s *PickingService) Scan(ctx context.Context, qrCode string) (*ScanResult, error) {
	ctx, span := util.StartSpan(ctx, "PickingService.Scan")
	defer span.End()

	if qrCode == "" {
		return nil, Validationf("qr_code is required")
	}

	outcome, err := s.store.ScanPickItem(ctx, qrCode)
	if err != nil {
		util.PickScansTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if !outcome.Found {
		util.PickScansTotal.WithLabelValues("not_found").Inc()
		return &ScanResult{Success: false, Message: "Unknown pick code"}, nil
	}
	if outcome.AlreadyPicked {
		util.PickScansTotal.WithLabelValues("duplicate").Inc()
		msg := "Item already picked"
		if outcome.PickedAt != nil {
			msg = fmt.Sprintf("Item already picked at %s", outcome.PickedAt.UTC().Format(time.RFC3339))
		}
		return &ScanResult{Success: false, Message: msg, PickedAt: outcome.PickedAt}, nil
	}

	util.PickScansTotal.WithLabelValues("ok").Inc()
	message := fmt.Sprintf("Picked %d of %d for order %s", outcome.OrderPicked, outcome.OrderTotal, outcome.OrderNumber)
	if outcome.OrderComplete {
		message = fmt.Sprintf("Order %s fully picked and packed", outcome.OrderNumber)
		if order, err := s.store.GetOrder(ctx, outcome.OrderID); err == nil {
			s.publisher.PublishOrderEvent(ctx, models.EventTypeOrderStatusChanged, order)
		}
	}
	return &ScanResult{
		Success:       true,
		Message:       message,
		OrderID:       outcome.OrderID,
		OrderNumber:   outcome.OrderNumber,
		OrderPicked:   outcome.OrderPicked,
		OrderTotal:    outcome.OrderTotal,
		OrderComplete: outcome.OrderComplete,
		PickedAt:      outcome.PickedAt,
	}, nil
}

// DeleteBatchResult reports what deleting a batch released.
type DeleteBatchResult struct {
	OrdersReleased int `json:"orders_released"`
	ItemsRemoved   int `json:"items_removed"`
}

func (s *PickingService) DeleteBatch(ctx context.Context, id string) (*DeleteBatchResult, error) {
	released, removed, err := s.store.DeleteBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("picking list deleted",
		zap.String("picking_list_id", id),
		zap.Int("orders_released", released))
	return &DeleteBatchResult{OrdersReleased: released, ItemsRemoved: removed}, nil
}

// RemoveOrderResult reports the effect of pulling one order from a batch.
type RemoveOrderResult struct {
	BatchDeleted bool `json:"batch_deleted"`
	ItemsRemoved int  `json:"items_removed"`
}

func (s *PickingService) RemoveOrder(ctx context.Context, batchID, orderID string) (*RemoveOrderResult, error) {
	deleted, removed, err := s.store.RemoveOrderFromBatch(ctx, batchID, orderID)
	if err != nil {
		return nil, err
	}
	return &RemoveOrderResult{BatchDeleted: deleted, ItemsRemoved: removed}, nil
}

func (s *PickingService) ArchiveBatch(ctx context.Context, id string) (*models.PickingList, error) {
	return s.store.ArchiveBatch(ctx, id)
}
