package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-service/internal/models"
)

var tokenCounter int

func testToken() string {
	tokenCounter++
	return fmt.Sprintf("PICK-%08X", tokenCounter)
}

func newBatch() *models.PickingList {
	return &models.PickingList{
		PickingNumber: "PL-TEST-" + uuid.New().String()[:6],
	}
}

// seedOrder creates a product with plenty of stock and a pending order for
// qty units of it.
func seedOrder(t *testing.T, s *Store, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()

	p := newProduct("PICK-SKU-"+uuid.New().String()[:6], 10, 100)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, qty)
	require.NoError(t, s.CreateOrder(ctx, order))
	return order
}

func TestCreateBatchExpandsUnits(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	p := newProduct("MULTI-1", 10, 50)
	require.NoError(t, s.CreateProduct(ctx, p))

	order := makeOrder(p, 2)
	order.Items = append(order.Items, models.OrderItem{
		ProductID: p.ID, SKU: p.SKU, ProductName: p.Name, Quantity: 1, UnitPrice: 10,
	})
	require.NoError(t, s.CreateOrder(ctx, order))

	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{order.ID}, testToken))

	// Quantity 2 + quantity 1 expands to three pick items.
	require.Len(t, batch.Items, 3)
	sequences := map[string][]int{}
	for _, item := range batch.Items {
		assert.False(t, item.Picked)
		assert.NotEmpty(t, item.QRCode)
		sequences[item.OrderItemID] = append(sequences[item.OrderItemID], item.Sequence)
	}
	require.Len(t, sequences, 2)
	for _, seqs := range sequences {
		assert.Equal(t, 1, seqs[0])
	}

	moved, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusProcessing, moved.Status)
	assert.Equal(t, models.OrderStatusProcessing, moved.History[len(moved.History)-1].Status)
}

func TestCreateBatchRejectsNonPendingOrderAtomically(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	pending := seedOrder(t, s, 1)
	shipped := seedOrder(t, s, 1)
	_, err := s.UpdateOrderStatus(ctx, shipped.ID, models.OrderStatusShipped, "")
	require.NoError(t, err)

	batch := newBatch()
	err = s.CreateBatch(ctx, batch, []string{pending.ID, shipped.ID}, testToken)
	require.ErrorIs(t, err, ErrInvalidState)

	// Nothing was created and the pending order stays pending.
	_, err = s.GetBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetOrder(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestCreateBatchRejectsOrderInAnotherActiveBatch(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, s, 1)
	first := newBatch()
	require.NoError(t, s.CreateBatch(ctx, first, []string{order.ID}, testToken))

	second := newBatch()
	err := s.CreateBatch(ctx, second, []string{order.ID}, testToken)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestScanFlowPackingThenPacked(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, s, 3)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{order.ID}, testToken))
	require.Len(t, batch.Items, 3)

	// First scan: order moves to packing, batch to processing.
	out, err := s.ScanPickItem(ctx, batch.Items[0].QRCode)
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.False(t, out.AlreadyPicked)
	assert.Equal(t, 1, out.OrderPicked)
	assert.Equal(t, 3, out.OrderTotal)
	assert.False(t, out.OrderComplete)

	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacking, got.Status)

	b, err := s.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusProcessing, b.Status)

	// Second scan: still packing.
	out, err = s.ScanPickItem(ctx, batch.Items[1].QRCode)
	require.NoError(t, err)
	assert.Equal(t, 2, out.OrderPicked)
	assert.False(t, out.OrderComplete)

	// Final scan: packed.
	out, err = s.ScanPickItem(ctx, batch.Items[2].QRCode)
	require.NoError(t, err)
	assert.True(t, out.OrderComplete)

	got, err = s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacked, got.Status)
}

func TestScanDuplicateKeepsOriginalTimestamp(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, s, 2)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{order.ID}, testToken))

	first, err := s.ScanPickItem(ctx, batch.Items[0].QRCode)
	require.NoError(t, err)
	require.NotNil(t, first.PickedAt)

	dup, err := s.ScanPickItem(ctx, batch.Items[0].QRCode)
	require.NoError(t, err)
	assert.True(t, dup.Found)
	assert.True(t, dup.AlreadyPicked)
	require.NotNil(t, dup.PickedAt)
	assert.WithinDuration(t, *first.PickedAt, *dup.PickedAt, time.Second)

	// Duplicate scan does not advance progress.
	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPacking, got.Status)
}

func TestScanUnknownToken(t *testing.T) {
	s := NewTestStore(t)
	out, err := s.ScanPickItem(context.Background(), "PICK-DOESNOTEXIST")
	require.NoError(t, err)
	assert.False(t, out.Found)
}

func TestDeleteBatchRevertsOrders(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	a := seedOrder(t, s, 1)
	b := seedOrder(t, s, 2)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{a.ID, b.ID}, testToken))

	released, removed, err := s.DeleteBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.Equal(t, 3, removed)

	for _, id := range []string{a.ID, b.ID} {
		got, err := s.GetOrder(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.OrderStatusPending, got.Status)
	}

	_, err = s.GetBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProcessingBatchRejected(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, s, 1)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{order.ID}, testToken))

	_, err := s.ScanPickItem(ctx, batch.Items[0].QRCode)
	require.NoError(t, err)

	_, _, err = s.DeleteBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRemoveOrderFromBatchDeletesEmptiedBatch(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	a := seedOrder(t, s, 1)
	b := seedOrder(t, s, 1)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{a.ID, b.ID}, testToken))

	deleted, removed, err := s.RemoveOrderFromBatch(ctx, batch.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 1, removed)

	got, err := s.GetOrder(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, got.Status)

	deleted, _, err = s.RemoveOrderFromBatch(ctx, batch.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = s.GetBatch(ctx, batch.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkBatchesDoneForOrder(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	a := seedOrder(t, s, 1)
	b := seedOrder(t, s, 1)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{a.ID, b.ID}, testToken))

	for _, item := range batch.Items {
		_, err := s.ScanPickItem(ctx, item.QRCode)
		require.NoError(t, err)
	}

	// One order shipped is not enough.
	_, err := s.UpdateOrderStatus(ctx, a.ID, models.OrderStatusShipped, "")
	require.NoError(t, err)
	done, err := s.MarkBatchesDoneForOrder(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, done)

	_, err = s.UpdateOrderStatus(ctx, b.ID, models.OrderStatusDelivered, "")
	require.NoError(t, err)
	done, err = s.MarkBatchesDoneForOrder(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, models.BatchStatusDone, done[0].Status)

	got, err := s.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusDone, got.Status)
}

func TestMarkBatchesDoneSkipsCancelledOrders(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	a := seedOrder(t, s, 1)
	b := seedOrder(t, s, 1)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{a.ID, b.ID}, testToken))

	for _, item := range batch.Items {
		_, err := s.ScanPickItem(ctx, item.QRCode)
		require.NoError(t, err)
	}

	_, err := s.CancelOrder(ctx, b.ID)
	require.NoError(t, err)

	// The cancelled order no longer holds the batch open.
	_, err = s.UpdateOrderStatus(ctx, a.ID, models.OrderStatusDelivered, "")
	require.NoError(t, err)
	done, err := s.MarkBatchesDoneForOrder(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, models.BatchStatusDone, done[0].Status)
}

func TestArchiveBatch(t *testing.T) {
	s := NewTestStore(t)
	ctx := context.Background()

	order := seedOrder(t, s, 1)
	batch := newBatch()
	require.NoError(t, s.CreateBatch(ctx, batch, []string{order.ID}, testToken))

	// A batch holding an unfinished order cannot be archived.
	_, err := s.ArchiveBatch(ctx, batch.ID)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = s.ScanPickItem(ctx, batch.Items[0].QRCode)
	require.NoError(t, err)
	_, err = s.UpdateOrderStatus(ctx, order.ID, models.OrderStatusShipped, "")
	require.NoError(t, err)
	_, err = s.MarkBatchesDoneForOrder(ctx, order.ID)
	require.NoError(t, err)

	archived, err := s.ArchiveBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchStatusArchived, archived.Status)
}
