package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-service/internal/models"
)

func newProduct(sku string, price float64, quantity int) *models.Product {
	return &models.Product{
		ID:       uuid.New().String(),
		SKU:      sku,
		Name:     "Test " + sku,
		Price:    price,
		WeightOz: 4,
		LengthIn: 6,
		WidthIn:  4,
		HeightIn: 2,
		Quantity: quantity,
	}
}

func TestCreateProductWritesInitialStockToLedger(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-1", 9.99, 25)
	require.NoError(t, s.CreateProduct(ctx, p))

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Quantity)

	logs, err := s.GetInventoryLogs(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LedgerReasonInbound, logs[0].Reason)
	assert.Equal(t, 25, logs[0].Change)
	assert.Equal(t, 25, logs[0].BalanceAfter)
}

func TestCreateProductWithVariants(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("SHIRT-1", 20, 0)
	p.Variants = []models.Variant{
		{ID: uuid.New().String(), ProductID: p.ID, VariantSKU: "SHIRT-1-S", Label: "Small", Quantity: 10},
		{ID: uuid.New().String(), ProductID: p.ID, VariantSKU: "SHIRT-1-L", Label: "Large", Quantity: 5, PriceOverride: 22},
	}
	require.NoError(t, s.CreateProduct(ctx, p))

	got, err := s.GetProductBySKU(ctx, "SHIRT-1")
	require.NoError(t, err)
	require.Len(t, got.Variants, 2)

	v, err := s.GetVariantBySKU(ctx, "SHIRT-1-L")
	require.NoError(t, err)
	assert.Equal(t, 5, v.Quantity)
	assert.Equal(t, 22.0, v.EffectivePrice(got))

	small, err := s.GetVariantBySKU(ctx, "SHIRT-1-S")
	require.NoError(t, err)
	assert.Equal(t, 20.0, small.EffectivePrice(got))
}

func TestAdjustProductRejectsNegativeStock(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-2", 5, 3)
	require.NoError(t, s.CreateProduct(ctx, p))

	_, err := s.AdjustProduct(ctx, p.ID, -5, models.LedgerReasonAdjustment, "", "shrinkage")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Failed adjustment leaves quantity and ledger untouched.
	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)

	logs, err := s.GetInventoryLogs(ctx, p.ID, 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestGetProductNotFound(t *testing.T) {
	s := NewTestStore(t)
	_, err := s.GetProduct(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, ErrNotFound)
}

func makeOrder(p *models.Product, qty int) *models.Order {
	return &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   "ORD-TEST-" + uuid.New().String()[:6],
		CustomerName:  "Ada Lovelace",
		ShipToName:    "Ada Lovelace",
		ShipToStreet1: "1 Analytical Way",
		ShipToCity:    "London",
		ShipToState:   "LN",
		ShipToZip:     "12345",
		ShipToCountry: "US",
		ProcessingFee: 0.5 * float64(qty),
		TotalPrice:    p.Price*float64(qty) + 0.5*float64(qty),
		Items: []models.OrderItem{
			{
				ProductID:   p.ID,
				SKU:         p.SKU,
				ProductName: p.Name,
				Quantity:    qty,
				UnitPrice:   p.Price,
			},
		},
	}
}

func TestCreateOrderReservesStock(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-3", 10, 8)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 3)
	require.NoError(t, s.CreateOrder(ctx, order))

	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	require.Len(t, got.Items, 1)
	require.Len(t, got.History, 1)
	assert.Equal(t, models.OrderStatusPending, got.History[0].Status)

	product, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, product.Quantity)
}

func TestCreateOrderInsufficientStockIsAtomic(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p1 := newProduct("WIDGET-4A", 10, 10)
	p2 := newProduct("WIDGET-4B", 10, 1)
	require.NoError(t, s.CreateProduct(ctx, p1))
	require.NoError(t, s.CreateProduct(ctx, p2))

	order := makeOrder(p1, 2)
	order.Items = append(order.Items, models.OrderItem{
		ProductID: p2.ID, SKU: p2.SKU, ProductName: p2.Name, Quantity: 5, UnitPrice: 10,
	})
	err := s.CreateOrder(ctx, order)
	require.ErrorIs(t, err, ErrInsufficientStock)

	// Neither the order nor the first item's reservation survives.
	_, err = s.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetProduct(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)
}

func TestCancelOrderRestoresStockAndLedgerNetsZero(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-5", 10, 6)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 4)
	require.NoError(t, s.CreateOrder(ctx, order))

	cancelled, err := s.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	product, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, product.Quantity)

	logs, err := s.GetInventoryLogsByReference(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LedgerReasonOrder, logs[0].Reason)
	assert.Equal(t, models.LedgerReasonOrderCancelled, logs[1].Reason)
	assert.Equal(t, 0, logs[0].Change+logs[1].Change)
}

func TestCancelShippedOrderRejected(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-6", 10, 5)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 1)
	require.NoError(t, s.CreateOrder(ctx, order))

	_, err := s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusShipped, "")
	require.NoError(t, err)

	_, err = s.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Stock stays reserved.
	product, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, product.Quantity)
}

func TestCancelOrderTwiceRejected(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-7", 10, 5)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 2)
	require.NoError(t, s.CreateOrder(ctx, order))

	_, err := s.CancelOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = s.CancelOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// No double restock.
	product, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, product.Quantity)
}

func TestGetOrderByNumberAndTracking(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-8", 10, 5)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 1)
	require.NoError(t, s.CreateOrder(ctx, order))

	byNumber, err := s.GetOrderByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byNumber.ID)

	_, err = s.ApplyLabelPurchase(ctx, order.ID, LabelPurchase{
		Carrier:        "USPS",
		Service:        "Priority",
		ShipmentID:     "shp_123",
		TrackingNumber: "9400TEST",
		ShippingCost:   7.5,
		TotalPrice:     order.TotalPrice + 7.5,
		Note:           "Label purchased via USPS Priority ($7.50)",
	})
	require.NoError(t, err)

	byTracking, err := s.GetOrderByTrackingNumber(ctx, "9400TEST")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byTracking.ID)
	assert.Equal(t, models.OrderStatusLabelPurchased, byTracking.Status)
	assert.Equal(t, 7.5, byTracking.ShippingCost)
}

func TestClearLabelResetsShipmentFields(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-9", 10, 5)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 2)
	require.NoError(t, s.CreateOrder(ctx, order))

	_, err := s.ApplyLabelPurchase(ctx, order.ID, LabelPurchase{
		Carrier: "USPS", Service: "Priority", ShipmentID: "shp_9",
		TrackingNumber: "9400CLR", LabelURL: "https://labels/9",
		ShippingCost: 6, TotalPrice: order.TotalPrice + 6, Note: "purchase",
	})
	require.NoError(t, err)

	cleared, err := s.ClearLabel(ctx, order.ID, order.TotalPrice, "Shipping label refunded (submitted)")
	require.NoError(t, err)
	assert.Empty(t, cleared.ShipmentID)
	assert.Empty(t, cleared.TrackingNumber)
	assert.Empty(t, cleared.LabelURL)
	assert.Zero(t, cleared.ShippingCost)
	assert.Equal(t, order.TotalPrice, cleared.TotalPrice)
}

func TestApplyTrackingUpdateKeepsJournalOrder(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("WIDGET-10", 10, 5)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 1)
	require.NoError(t, s.CreateOrder(ctx, order))

	updated, err := s.ApplyTrackingUpdate(ctx, order.ID, TrackingUpdate{
		TrackingStatus: "delivered",
		Transitions: []StatusChange{
			{Status: models.OrderStatusShipped, Note: "First carrier scan"},
			{Status: models.OrderStatusDelivered, Note: "Carrier status: delivered"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, updated.Status)

	require.Len(t, updated.History, 3)
	assert.Equal(t, models.OrderStatusPending, updated.History[0].Status)
	assert.Equal(t, models.OrderStatusShipped, updated.History[1].Status)
	assert.Equal(t, models.OrderStatusDelivered, updated.History[2].Status)
}

func TestEventProcessingDedup(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	id := uuid.New().String()
	processed, err := s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, processed)

	require.NoError(t, s.MarkEventProcessed(ctx, id, "ORDER_CREATED"))
	require.NoError(t, s.MarkEventProcessed(ctx, id, "ORDER_CREATED"))

	processed, err = s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, processed)
}
