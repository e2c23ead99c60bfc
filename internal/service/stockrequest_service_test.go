package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-service/internal/models"
	"warehouse-service/internal/store"
)

func TestStockRequestResolvesSKUs(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewStockRequestService(s)
	ctx := context.Background()

	req, err := svc.Create(ctx, &CreateStockRequestRequest{
		Supplier: "Acme Supply",
		Items: []StockRequestLineRequest{
			{SKU: "MUG-1-BLUE", QuantityRequested: 20, UnitCost: 4},
			{SKU: "MUG-1", QuantityRequested: 30, UnitCost: 3.5},
		},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(req.RequestNumber, "SR-"))
	assert.Equal(t, models.StockRequestStatusPending, req.Status)
	require.Len(t, req.Items, 2)

	bySKU := map[string]models.StockRequestItem{}
	for _, item := range req.Items {
		bySKU[item.SKU] = item
	}
	assert.NotEmpty(t, bySKU["MUG-1-BLUE"].VariantID)
	assert.Empty(t, bySKU["MUG-1"].VariantID)
}

func TestStockRequestUnknownSKU(t *testing.T) {
	s := store.NewTestStore(t)
	svc := NewStockRequestService(s)

	_, err := svc.Create(context.Background(), &CreateStockRequestRequest{
		Items: []StockRequestLineRequest{{SKU: "GHOST-1", QuantityRequested: 1}},
	})
	assert.True(t, IsValidation(err))
}

func TestStockRequestReceiveFlow(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewStockRequestService(s)
	ctx := context.Background()

	req, err := svc.Create(ctx, &CreateStockRequestRequest{
		Items: []StockRequestLineRequest{
			{SKU: "MUG-1-BLUE", QuantityRequested: 6, UnitCost: 4},
		},
	})
	require.NoError(t, err)

	_, err = svc.Transition(ctx, req.ID, models.StockRequestStatusApproved)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, req.ID, models.StockRequestStatusReceiving)
	require.NoError(t, err)

	done, err := svc.Receive(ctx, req.ID, &ReceiveItemsRequest{
		Items: []ReceiveItemLine{{ItemID: req.Items[0].ID, Quantity: 6}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StockRequestStatusCompleted, done.Status)

	// Received units land on the variant with a ledger trail.
	variant, err := s.GetVariantBySKU(ctx, "MUG-1-BLUE")
	require.NoError(t, err)
	assert.Equal(t, 16, variant.Quantity)

	logs, err := s.GetInventoryLogsByReference(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Note, req.RequestNumber)
}

func TestStockRequestListByStatus(t *testing.T) {
	s := store.NewTestStore(t)
	seedCatalog(t, s)
	svc := NewStockRequestService(s)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateStockRequestRequest{
		Items: []StockRequestLineRequest{{SKU: "MUG-1", QuantityRequested: 5}},
	})
	require.NoError(t, err)

	pending, err := svc.List(ctx, "pending", 0, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.List(ctx, "bogus", 0, 10)
	assert.True(t, IsValidation(err))
}
