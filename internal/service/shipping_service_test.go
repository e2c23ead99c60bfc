package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-service/config"
	"warehouse-service/internal/models"
	"warehouse-service/internal/shipping"
	"warehouse-service/internal/store"
)

type fakeShippingClient struct {
	rates       []shipping.Rate
	lastParcel  shipping.Parcel
	lastFrom    shipping.Address
	lastTo      shipping.Address
	quoteCalls  int
	buyCalls    int
	refundCalls int
	failBuy     error
}

func (f *fakeShippingClient) CreateShipment(_ context.Context, from, to shipping.Address, parcel shipping.Parcel) (*shipping.Shipment, error) {
	f.quoteCalls++
	f.lastParcel = parcel
	f.lastFrom = from
	f.lastTo = to
	return &shipping.Shipment{ID: "shp_fake", Rates: f.rates}, nil
}

func (f *fakeShippingClient) Buy(_ context.Context, shipmentID, rateID string) (*shipping.PurchaseResult, error) {
	f.buyCalls++
	if f.failBuy != nil {
		return nil, f.failBuy
	}
	for _, r := range f.rates {
		if r.ID == rateID {
			return &shipping.PurchaseResult{
				ShipmentID:     shipmentID,
				Carrier:        r.Carrier,
				Service:        r.Service,
				Rate:           r.Amount,
				TrackingNumber: "9400FAKE",
				TrackingURL:    "https://track/9400FAKE",
				LabelURL:       "https://labels/shp_fake",
			}, nil
		}
	}
	return nil, errors.New("unknown rate")
}

func (f *fakeShippingClient) Refund(_ context.Context, shipmentID string) (*shipping.RefundResult, error) {
	f.refundCalls++
	return &shipping.RefundResult{ShipmentID: shipmentID, Status: "submitted"}, nil
}

func defaultRates() []shipping.Rate {
	return []shipping.Rate{
		{ID: "r1", Carrier: "USPS", Service: "Priority", Amount: 8.50},
		{ID: "r2", Carrier: "USPS", Service: "GroundAdvantage", Amount: 6.10},
		{ID: "r3", Carrier: "UPS", Service: "Ground", Amount: 9.20},
		{ID: "r4", Carrier: "FedEx", Service: "2Day", Amount: 14.75},
	}
}

func TestFindRatePreference(t *testing.T) {
	rates := defaultRates()

	tests := []struct {
		name    string
		carrier string
		service string
		want    string
	}{
		{"exact match wins over cheaper", "USPS", "Priority", "r1"},
		{"case insensitive match", "usps", "priority", "r1"},
		{"service substring on carrier", "USPS", "ground", "r2"},
		{"rate service contained in requested name", "USPS", "PriorityMailInternationalService", "r1"},
		{"cheapest for carrier when service unknown", "USPS", "Overnight", "r2"},
		{"cheapest for carrier with empty service", "UPS", "", "r3"},
		{"cheapest overall for unknown carrier", "DHL", "Express", "r2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findRate(rates, tt.carrier, tt.service)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func newShippingFixture(t *testing.T) (*ShippingService, *OrderService, *fakeShippingClient, *store.Store) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	cfg := testConfig()
	fake := &fakeShippingClient{rates: defaultRates()}
	orders := NewOrderService(s, nil, cfg)
	ship := NewShippingService(s, fake, nil, nil, cfg)
	return ship, orders, fake, s
}

func TestBuyLabelUpdatesOrder(t *testing.T) {
	ship, orders, fake, _ := newShippingFixture(t)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 2},
	))
	require.NoError(t, err)
	subtotalPlusFee := order.TotalPrice

	updated, err := ship.BuyLabel(ctx, order.ID, &BuyLabelRequest{Service: "Priority"})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusLabelPurchased, updated.Status)
	assert.Equal(t, "USPS", updated.Carrier)
	assert.Equal(t, "Priority", updated.Service)
	assert.Equal(t, "9400FAKE", updated.TrackingNumber)
	assert.Equal(t, 8.50, updated.ShippingCost)
	assert.Equal(t, subtotalPlusFee+8.50, updated.TotalPrice)

	// Two mugs at 14oz, footprint 5x4, heights stack.
	assert.Equal(t, 28.0, fake.lastParcel.WeightOz)
	assert.Equal(t, 5.0, fake.lastParcel.Length)
	assert.Equal(t, 4.0, fake.lastParcel.Width)
	assert.Equal(t, 8.0, fake.lastParcel.Height)
	assert.Equal(t, "Arlington", fake.lastTo.City)
	assert.Equal(t, "100 Fulfillment Way", fake.lastFrom.Street1)

	// History records the purchase.
	last := updated.History[len(updated.History)-1]
	assert.Equal(t, models.OrderStatusLabelPurchased, last.Status)
	assert.Contains(t, last.Note, "USPS Priority")
}

func TestBuyLabelTwiceRejected(t *testing.T) {
	ship, orders, fake, _ := newShippingFixture(t)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	_, err = ship.BuyLabel(ctx, order.ID, nil)
	require.NoError(t, err)

	_, err = ship.BuyLabel(ctx, order.ID, nil)
	assert.ErrorIs(t, err, store.ErrInvalidState)
	assert.Equal(t, 1, fake.buyCalls)
}

func TestBuyLabelForCancelledOrderRejected(t *testing.T) {
	ship, orders, _, _ := newShippingFixture(t)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)
	_, err = orders.CancelOrder(ctx, order.ID)
	require.NoError(t, err)

	_, err = ship.BuyLabel(ctx, order.ID, nil)
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestBuyLabelProviderFailure(t *testing.T) {
	ship, orders, fake, _ := newShippingFixture(t)
	fake.failBuy = errors.New("rate expired")
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	_, err = ship.BuyLabel(ctx, order.ID, nil)
	assert.True(t, IsExternal(err))

	// Order untouched by the failed purchase.
	got, err := orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ShipmentID)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestRefundRestoresTotal(t *testing.T) {
	ship, orders, fake, _ := newShippingFixture(t)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 2},
	))
	require.NoError(t, err)
	original := order.TotalPrice

	_, err = ship.BuyLabel(ctx, order.ID, nil)
	require.NoError(t, err)

	refunded, err := ship.RefundShipment(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.refundCalls)
	assert.Empty(t, refunded.TrackingNumber)
	assert.Zero(t, refunded.ShippingCost)
	assert.Equal(t, original, refunded.TotalPrice)

	// After a refund a new label can be bought.
	_, err = ship.BuyLabel(ctx, order.ID, nil)
	require.NoError(t, err)
}

func TestRefundWithoutShipmentRejected(t *testing.T) {
	ship, orders, _, _ := newShippingFixture(t)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	_, err = ship.RefundShipment(ctx, order.ID)
	assert.ErrorIs(t, err, store.ErrInvalidState)
}

func TestGetRatesSortedAscending(t *testing.T) {
	ship, orders, _, _ := newShippingFixture(t)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	rates, err := ship.GetRates(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, rates, 4)
	for i := 1; i < len(rates); i++ {
		assert.LessOrEqual(t, rates[i-1].Amount, rates[i].Amount)
	}
}

func TestBuildParcelUsesDefaultWeight(t *testing.T) {
	s := store.NewTestStore(t)
	cfg := testConfig()
	products := NewProductService(s)
	orders := NewOrderService(s, nil, cfg)
	fake := &fakeShippingClient{rates: defaultRates()}
	ship := NewShippingService(s, fake, nil, nil, cfg)
	ctx := context.Background()

	_, err := products.CreateProduct(ctx, &CreateProductRequest{
		SKU: "STICKER-1", Name: "Sticker", Price: 3, Quantity: 50,
	})
	require.NoError(t, err)

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "STICKER-1", Quantity: 2},
	))
	require.NoError(t, err)

	_, err = ship.GetRates(ctx, order.ID)
	require.NoError(t, err)

	// No product weight: each unit falls back to the configured default.
	assert.Equal(t, 16.0, fake.lastParcel.WeightOz)
	assert.Equal(t, 1.0, fake.lastParcel.Length)
}

func TestShipFromPrefersOrderAddress(t *testing.T) {
	ship, orders, fake, _ := newShippingFixture(t)
	ctx := context.Background()

	req := orderRequest(CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1})
	req.ShipFromName = "Dockside Annex"
	req.ShipFromStreet1 = "9 Dock Rd"
	req.ShipFromCity = "Oakland"
	req.ShipFromState = "CA"
	req.ShipFromZip = "94607"
	order, err := orders.CreateOrder(ctx, req)
	require.NoError(t, err)

	_, err = ship.GetRates(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "9 Dock Rd", fake.lastFrom.Street1)
	assert.Equal(t, "Oakland", fake.lastFrom.City)
	assert.Equal(t, "US", fake.lastFrom.Country)

	_, err = ship.BuyLabel(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "9 Dock Rd", fake.lastFrom.Street1)
}

func TestShipFromMissingEverywhere(t *testing.T) {
	s := store.NewTestStore(t)
	cfg := testConfig()
	cfg.Warehouse = config.WarehouseConfig{}
	seedCatalog(t, s)
	fake := &fakeShippingClient{rates: defaultRates()}
	orders := NewOrderService(s, nil, cfg)
	ship := NewShippingService(s, fake, nil, nil, cfg)
	ctx := context.Background()

	order, err := orders.CreateOrder(ctx, orderRequest(
		CreateOrderItemRequest{SKU: "MUG-1", Quantity: 1},
	))
	require.NoError(t, err)

	_, err = ship.BuyLabel(ctx, order.ID, nil)
	assert.True(t, IsValidation(err))
	_, err = ship.GetRates(ctx, order.ID)
	assert.True(t, IsValidation(err))
	assert.Zero(t, fake.quoteCalls)
}
