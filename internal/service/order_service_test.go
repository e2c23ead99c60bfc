package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-service/config"
	"warehouse-service/internal/models"
	"warehouse-service/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			ProcessingFeePerItem: 0.5,
			DefaultItemWeightOz:  8.0,
		},
		Shipping: config.ShippingConfig{
			DefaultCarrier: "USPS",
		},
		Warehouse: config.WarehouseConfig{
			Name:    "Main Warehouse",
			Street1: "100 Fulfillment Way",
			City:    "Reno",
			State:   "NV",
			Zip:     "89502",
			Country: "US",
		},
	}
}

func seedCatalog(t *testing.T, s *store.Store) *models.Product {
	t.Helper()
	svc := NewProductService(s)
	product, err := svc.CreateProduct(context.Background(), &CreateProductRequest{
		SKU:      "MUG-1",
		Name:     "Coffee Mug",
		Price:    12.0,
		WeightOz: 14,
		LengthIn: 5,
		WidthIn:  4,
		HeightIn: 4,
		Quantity: 20,
		Variants: []CreateVariantRequest{
			{VariantSKU: "MUG-1-BLUE", Label: "Blue", Quantity: 10},
			{VariantSKU: "MUG-1-RED", Label: "Red", Quantity: 5, PriceOverride: 14.0},
		},
	})
	require.NoError(t, err)
	return product
}

func orderRequest(items ...CreateOrderItemRequest) *CreateOrderRequest {
	return &CreateOrderRequest{
		CustomerName:  "Grace Hopper",
		ShipToStreet1: "1 Navy Way",
		ShipToCity:    "Arlington",
		ShipToState:   "VA",
		ShipToZip:     "22202",
		Items:         items,
	}
}

func TestCreateOrderPricesAndSnapshots(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewOrderService(s, nil, testConfig())

	order, err := svc.CreateOrder(context.Background(), orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1-RED", Quantity: 2},
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	assert.NotEmpty(t, order.OrderNumber)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 2)

	// Variant line snapshots the override price, product line its own.
	byPickSKU := map[string]models.OrderItem{}
	for _, item := range order.Items {
		byPickSKU[item.PickSKU()] = item
	}
	assert.Equal(t, 14.0, byPickSKU["MUG-1-RED"].UnitPrice)
	assert.Equal(t, 12.0, byPickSKU["MUG-1"].UnitPrice)

	// 3 units at $0.50 each; total includes the item subtotal.
	assert.Equal(t, 1.5, order.ProcessingFee)
	assert.Equal(t, 2*14.0+12.0+1.5, order.TotalPrice)
	assert.Zero(t, order.ShippingCost)

	// Stock moved on the variant and the product separately.
	variant, err := s.GetVariantBySKU(context.Background(), "MUG-1-RED")
	require.NoError(t, err)
	assert.Equal(t, 3, variant.Quantity)

	product, err := s.GetProductBySKU(context.Background(), "MUG-1")
	require.NoError(t, err)
	assert.Equal(t, 19, product.Quantity)
}

func TestCreateOrderUnknownSKU(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewOrderService(s, nil, testConfig())

	_, err := svc.CreateOrder(context.Background(), orderRequest(
		CreateOrderItemRequest{SKU: "NOPE-404", Quantity: 1},
	))
	assert.True(t, IsValidation(err))
}

func TestCreateOrderInsufficientVariantStock(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewOrderService(s, nil, testConfig())

	_, err := svc.CreateOrder(context.Background(), orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1-RED", Quantity: 6},
	))
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestCancelOrderRestoresLedger(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewOrderService(s, nil, testConfig())
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1-BLUE", Quantity: 4},
	))
	require.NoError(t, err)

	cancelled, err := svc.CancelOrder(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	logs, err := svc.GetOrderLedger(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Zero(t, logs[0].Change+logs[1].Change)

	variant, err := s.GetVariantBySKU(ctx, "MUG-1-BLUE")
	require.NoError(t, err)
	assert.Equal(t, 10, variant.Quantity)
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewOrderService(s, nil, testConfig())

	order, err := svc.CreateOrder(context.Background(), orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatus("teleported"), "")
	assert.True(t, IsValidation(err))
}

func TestGetOrderAcceptsIDOrNumber(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewOrderService(s, nil, testConfig())
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	byID, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	byNumber, err := svc.GetOrder(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byNumber.ID)
}

func TestPriceBreakdown(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewOrderService(s, nil, testConfig())

	order, err := svc.CreateOrder(context.Background(), orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1-RED", Quantity: 2},
	))
	require.NoError(t, err)

	breakdown, err := svc.GetPriceBreakdown(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	require.Len(t, breakdown.Lines, 1)
	assert.Equal(t, 28.0, breakdown.Lines[0].LineTotal)
	assert.Equal(t, 28.0, breakdown.ItemSubtotal)
	assert.Equal(t, 1.0, breakdown.ProcessingFee)
	assert.Equal(t, 29.0, breakdown.TotalPrice)
}
