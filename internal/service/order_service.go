package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-service/config"
	"warehouse-service/internal/broker"
	"warehouse-service/internal/models"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"
)

// OrderService owns the order lifecycle: creation with stock reservation,
// manual status moves, cancellation with compensation.
type OrderService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	cfg       *config.Config
	logger    *zap.Logger
}

func NewOrderService(st *store.Store, publisher *broker.EventPublisher, cfg *config.Config) *OrderService {
	return &OrderService{
		store:     st,
		publisher: publisher,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

type CreateOrderItemRequest struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

type CreateOrderRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	ShipToName    string `json:"ship_to_name"`
	ShipToStreet1 string `json:"ship_to_street1" binding:"required"`
	ShipToStreet2 string `json:"ship_to_street2"`
	ShipToCity    string `json:"ship_to_city" binding:"required"`
	ShipToState   string `json:"ship_to_state" binding:"required"`
	ShipToZip     string `json:"ship_to_zip" binding:"required"`
	ShipToCountry string `json:"ship_to_country"`

	// Optional per-order return address. Labels fall back to the
	// configured warehouse address when these are empty.
	ShipFromName    string `json:"ship_from_name"`
	ShipFromStreet1 string `json:"ship_from_street1"`
	ShipFromCity    string `json:"ship_from_city"`
	ShipFromState   string `json:"ship_from_state"`
	ShipFromZip     string `json:"ship_from_zip"`
	ShipFromCountry string `json:"ship_from_country"`

	Carrier    string                   `json:"carrier"`
	Service    string                   `json:"service"`
	WebhookURL string                   `json:"webhook_url"`
	Notes      string                   `json:"notes"`
	Items      []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateOrder resolves each SKU against the catalog, snapshots name and
// price into line items, reserves stock and prices the order. The whole
// reservation is atomic: any unknown SKU or shortage leaves nothing behind.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	order := &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   newOrderNumber(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		ShipToName:    req.ShipToName,
		ShipToStreet1: req.ShipToStreet1,
		ShipToStreet2: req.ShipToStreet2,
		ShipToCity:    req.ShipToCity,
		ShipToState:   req.ShipToState,
		ShipToZip:     req.ShipToZip,
		ShipToCountry: req.ShipToCountry,

		ShipFromName:    req.ShipFromName,
		ShipFromStreet1: req.ShipFromStreet1,
		ShipFromCity:    req.ShipFromCity,
		ShipFromState:   req.ShipFromState,
		ShipFromZip:     req.ShipFromZip,
		ShipFromCountry: req.ShipFromCountry,

		Carrier:       req.Carrier,
		Service:       req.Service,
		WebhookURL:    req.WebhookURL,
		Notes:         req.Notes,
	}
	if order.ShipToName == "" {
		order.ShipToName = req.CustomerName
	}
	if order.ShipToCountry == "" {
		order.ShipToCountry = "US"
	}
	if order.ShipFromStreet1 != "" && order.ShipFromCountry == "" {
		order.ShipFromCountry = "US"
	}

	for _, line := range req.Items {
		item, err := s.resolveLine(ctx, line)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("resolve").Inc()
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}

	order.ProcessingFee = s.cfg.Business.ProcessingFeePerItem * float64(order.TotalUnits())
	order.TotalPrice = order.ItemSubtotal() + order.ProcessingFee

	if err := s.store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
		} else {
			util.OrdersFailedTotal.WithLabelValues("store").Inc()
		}
		return nil, err
	}

	created, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("order created",
		zap.String("order_number", created.OrderNumber),
		zap.Int("units", created.TotalUnits()),
		zap.Float64("total", created.TotalPrice))
	s.publisher.PublishOrderEvent(ctx, models.EventTypeOrderCreated, created)
	return created, nil
}

// resolveLine finds the SKU as a variant first, then as a product, and
// builds the snapshot line item.
func (s *OrderService) resolveLine(ctx context.Context, line CreateOrderItemRequest) (*models.OrderItem, error) {
	variant, err := s.store.GetVariantBySKU(ctx, line.SKU)
	if err == nil {
		product, perr := s.store.GetProduct(ctx, variant.ProductID)
		if perr != nil {
			return nil, perr
		}
		return &models.OrderItem{
			ProductID:    product.ID,
			VariantID:    variant.ID,
			SKU:          product.SKU,
			VariantSKU:   variant.VariantSKU,
			VariantLabel: variant.Label,
			ProductName:  product.Name,
			Quantity:     line.Quantity,
			UnitPrice:    variant.EffectivePrice(product),
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
	return &models.OrderItem{
		ProductID:   product.ID,
		SKU:         product.SKU,
		ProductName: product.Name,
		Quantity:    line.Quantity,
		UnitPrice:   product.Price,
	}, nil
}

// GetOrder looks up an order by id, falling back to order number so callers
// can use either form of reference.
func (s *OrderService) GetOrder(ctx context.Context, ref string) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, ref)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return s.store.GetOrderByNumber(ctx, ref)
}

func (s *OrderService) ListOrders(ctx context.Context, status string, offset, limit int) ([]models.Order, error) {
	if status != "" && !models.OrderStatus(status).Valid() {
		return nil, Validationf("unknown order status %q", status)
	}
	return s.store.ListOrders(ctx, models.OrderStatus(status), offset, limit)
}

// CancelOrder cancels an order and restores its reserved stock. Orders at or
// past carrier drop-off cannot be cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, ref string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	order, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	cancelled, err := s.store.CancelOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("order cancelled", zap.String("order_number", cancelled.OrderNumber))
	s.publisher.PublishOrderEvent(ctx, models.EventTypeOrderCancelled, cancelled)
	return cancelled, nil
}

// UpdateStatus applies a manual status change. Operators can move an order
// to any valid status; the carrier webhook path is the one with regression
// rules, not this one.
func (s *OrderService) UpdateStatus(ctx context.Context, ref string, status models.OrderStatus, note string) (*models.Order, error) {
	if !status.Valid() {
		return nil, Validationf("unknown order status %q", status)
	}
	order, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateOrderStatus(ctx, order.ID, status, note)
	if err != nil {
		return nil, err
	}

	s.publisher.PublishOrderEvent(ctx, models.EventTypeOrderStatusChanged, updated)
	if updated.Status.DroppedOff() {
		s.sweepBatches(ctx, updated.ID)
	}
	return updated, nil
}

// sweepBatches marks picking lists done once every order in them has been
// dropped off with the carrier.
func (s *OrderService) sweepBatches(ctx context.Context, orderID string) {
	done, err := s.store.MarkBatchesDoneForOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("batch done sweep failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	for i := range done {
		util.BatchesCompletedTotal.Inc()
		s.logger.Info("picking list done", zap.String("picking_number", done[i].PickingNumber))
		s.publisher.PublishBatchDone(ctx, &done[i])
	}
}

// PriceBreakdown itemizes how an order total was computed.
type PriceBreakdown struct {
	OrderNumber   string              `json:"order_number"`
	Lines         []PriceBreakdownRow `json:"lines"`
	ItemSubtotal  float64             `json:"item_subtotal"`
	ProcessingFee float64             `json:"processing_fee"`
	ShippingCost  float64             `json:"shipping_cost"`
	TotalPrice    float64             `json:"total_price"`
}

type PriceBreakdownRow struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

func (s *OrderService) GetPriceBreakdown(ctx context.Context, ref string) (*PriceBreakdown, error) {
	order, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	breakdown := &PriceBreakdown{
		OrderNumber:   order.OrderNumber,
		ItemSubtotal:  order.ItemSubtotal(),
		ProcessingFee: order.ProcessingFee,
		ShippingCost:  order.ShippingCost,
		TotalPrice:    order.TotalPrice,
	}
	for _, item := range order.Items {
		breakdown.Lines = append(breakdown.Lines, PriceBreakdownRow{
			SKU:       item.PickSKU(),
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: float64(item.Quantity) * item.UnitPrice,
		})
	}
	return breakdown, nil
}

// GetOrderLedger returns the inventory ledger rows an order produced, oldest
// first, so reservation and restock lines pair up visibly.
func (s *OrderService) GetOrderLedger(ctx context.Context, ref string) ([]models.InventoryLog, error) {
	order, err := s.GetOrder(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.store.GetInventoryLogsByReference(ctx, order.ID)
}
