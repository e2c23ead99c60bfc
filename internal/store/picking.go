package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"warehouse-service/internal/models"
)

// CreateBatch creates a picking list from the given orders. Eligibility
// (every order pending, no order in another active/processing batch), the
// one-PickItem-per-unit expansion and the orders' move to processing are all
// covered by a single transaction, so two overlapping batch requests cannot
// both capture the same order and a failed request leaves no partial batch.
func (s *Store) CreateBatch(ctx context.Context, batch *models.PickingList, orderIDs []string, tokenFn func() string) error {
	ts := now()
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	batch.Status = models.BatchStatusActive
	batch.CreatedAt = ts
	batch.UpdatedAt = ts

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		s.rebind("INSERT INTO picking_lists (id, picking_number, status, assigned_to, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"),
		batch.ID, batch.PickingNumber, string(batch.Status), batch.AssignedTo, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert picking list: %w", err)
	}

	batch.Items = batch.Items[:0]
	for _, orderID := range orderIDs {
		order, err := s.getOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}

		var active int
		err = tx.GetContext(ctx, &active,
			s.rebind(`SELECT COUNT(*) FROM pick_items pi
				JOIN picking_lists pl ON pl.id = pi.picking_list_id
				WHERE pi.order_id = ? AND pl.id <> ? AND pl.status IN (?, ?)`),
			orderID, batch.ID, string(models.BatchStatusActive), string(models.BatchStatusProcessing))
		if err != nil {
			return fmt.Errorf("failed to check batch membership: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("order %s is already in an active picking list: %w", order.OrderNumber, ErrInvalidState)
		}

		// The conditional UPDATE doubles as the pending-only gate under
		// concurrent batch creation.
		res, err := tx.ExecContext(ctx,
			s.rebind("UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?"),
			string(models.OrderStatusProcessing), ts, orderID, string(models.OrderStatusPending))
		if err != nil {
			return fmt.Errorf("failed to move order to processing: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("order %s is not pending (status %s): %w", order.OrderNumber, order.Status, ErrInvalidState)
		}
		if err := s.appendHistoryTx(ctx, tx, orderID, models.OrderStatusProcessing,
			fmt.Sprintf("Added to picking list %s", batch.PickingNumber), ts); err != nil {
			return err
		}

		items, err := s.getOrderItemsTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			for seq := 1; seq <= item.Quantity; seq++ {
				pick := models.PickItem{
					ID:            uuid.New().String(),
					PickingListID: batch.ID,
					OrderID:       orderID,
					OrderItemID:   item.ID,
					ProductID:     item.ProductID,
					SKU:           item.PickSKU(),
					ProductName:   item.ProductName,
					VariantLabel:  item.VariantLabel,
					Sequence:      seq,
					QRCode:        tokenFn(),
				}
				_, err = tx.ExecContext(ctx,
					s.rebind(`INSERT INTO pick_items (id, picking_list_id, order_id, order_item_id, product_id, sku, product_name, variant_label, sequence, qr_code, picked, picked_at)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, FALSE, NULL)`),
					pick.ID, pick.PickingListID, pick.OrderID, pick.OrderItemID, pick.ProductID,
					pick.SKU, pick.ProductName, pick.VariantLabel, pick.Sequence, pick.QRCode)
				if err != nil {
					return fmt.Errorf("failed to insert pick item: %w", err)
				}
				batch.Items = append(batch.Items, pick)
			}
		}
	}

	return tx.Commit()
}

// ScanOutcome reports what a single scan did.
type ScanOutcome struct {
	Found         bool
	AlreadyPicked bool
	PickedAt      *time.Time
	Item          *models.PickItem
	OrderID       string
	OrderNumber   string
	OrderPicked   int
	OrderTotal    int
	OrderComplete bool
}

// ScanPickItem marks the unit behind a scan token as picked. The picked flag
// flips at most once: the conditional UPDATE makes a concurrent duplicate
// scan lose and report the original pick time. Order progress is re-derived
// by counting rows, never carried across the decision point, so concurrent
// scans of different units aggregate correctly.
func (s *Store) ScanPickItem(ctx context.Context, qrCode string) (*ScanOutcome, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var item models.PickItem
	err = tx.GetContext(ctx, &item, s.rebind("SELECT * FROM pick_items WHERE qr_code = ?"), qrCode)
	if err == sql.ErrNoRows {
		return &ScanOutcome{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		s.rebind("UPDATE pick_items SET picked = TRUE, picked_at = ? WHERE id = ? AND picked = FALSE"),
		ts, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark pick item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost to an earlier scan; report its timestamp.
		var prior models.PickItem
		if err := tx.GetContext(ctx, &prior, s.rebind("SELECT * FROM pick_items WHERE id = ?"), item.ID); err != nil {
			return nil, err
		}
		return &ScanOutcome{Found: true, AlreadyPicked: true, PickedAt: prior.PickedAt, Item: &prior}, nil
	}
	item.Picked = true
	item.PickedAt = &ts

	// First scan promotes the batch from active to processing.
	_, err = tx.ExecContext(ctx,
		s.rebind("UPDATE picking_lists SET status = ?, updated_at = ? WHERE id = ? AND status = ?"),
		string(models.BatchStatusProcessing), ts, item.PickingListID, string(models.BatchStatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to promote picking list: %w", err)
	}

	var progress struct {
		Total  int `db:"total"`
		Picked int `db:"picked"`
	}
	err = tx.GetContext(ctx, &progress,
		s.rebind(`SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN picked THEN 1 ELSE 0 END), 0) AS picked
			FROM pick_items WHERE picking_list_id = ? AND order_id = ?`),
		item.PickingListID, item.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to count order progress: %w", err)
	}

	order, err := s.getOrderTx(ctx, tx, item.OrderID)
	if err != nil {
		return nil, err
	}

	complete := progress.Picked >= progress.Total
	if complete {
		if order.Status != models.OrderStatusPacked {
			if err := s.setStatusTx(ctx, tx, item.OrderID, models.OrderStatusPacked, "All units picked", ts); err != nil {
				return nil, err
			}
		}
	} else if progress.Picked == 1 && order.Status == models.OrderStatusProcessing {
		if err := s.setStatusTx(ctx, tx, item.OrderID, models.OrderStatusPacking, "Picking started", ts); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &ScanOutcome{
		Found:         true,
		PickedAt:      &ts,
		Item:          &item,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		OrderPicked:   progress.Picked,
		OrderTotal:    progress.Total,
		OrderComplete: complete,
	}, nil
}

// GetBatch retrieves a picking list with its items.
func (s *Store) GetBatch(ctx context.Context, batchID string) (*models.PickingList, error) {
	var batch models.PickingList
	err := s.db.GetContext(ctx, &batch, s.rebind("SELECT * FROM picking_lists WHERE id = ?"), batchID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("picking list %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	err = s.db.SelectContext(ctx, &batch.Items,
		s.rebind("SELECT * FROM pick_items WHERE picking_list_id = ? ORDER BY order_id, order_item_id, sequence"), batchID)
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// ListBatches retrieves picking lists newest first.
func (s *Store) ListBatches(ctx context.Context, offset, limit int) ([]models.PickingList, error) {
	if limit <= 0 {
		limit = 100
	}
	var batches []models.PickingList
	err := s.db.SelectContext(ctx, &batches,
		s.rebind("SELECT * FROM picking_lists ORDER BY created_at DESC LIMIT ? OFFSET ?"), limit, offset)
	return batches, err
}

// DeleteBatch removes an active picking list and its items and reverts every
// batch-induced order status back to pending. Returns orders released and
// items removed.
func (s *Store) DeleteBatch(ctx context.Context, batchID string) (int, int, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	batch, err := s.getBatchTx(ctx, tx, batchID)
	if err != nil {
		return 0, 0, err
	}
	if batch.Status != models.BatchStatusActive {
		return 0, 0, fmt.Errorf("cannot delete picking list in %s status: %w", batch.Status, ErrInvalidState)
	}

	released, removed, err := s.releaseOrdersTx(ctx, tx, batchID, "", batch.PickingNumber, ts)
	if err != nil {
		return 0, 0, err
	}

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM picking_lists WHERE id = ?"), batchID); err != nil {
		return 0, 0, fmt.Errorf("failed to delete picking list: %w", err)
	}
	return released, removed, tx.Commit()
}

// RemoveOrderFromBatch deletes one order's pick items from an active batch
// and reverts that order. Deletes the batch itself when it ends up empty.
func (s *Store) RemoveOrderFromBatch(ctx context.Context, batchID, orderID string) (batchDeleted bool, itemsRemoved int, err error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback()

	batch, err := s.getBatchTx(ctx, tx, batchID)
	if err != nil {
		return false, 0, err
	}
	if batch.Status != models.BatchStatusActive {
		return false, 0, fmt.Errorf("cannot modify picking list in %s status: %w", batch.Status, ErrInvalidState)
	}

	_, removed, err := s.releaseOrdersTx(ctx, tx, batchID, orderID, batch.PickingNumber, ts)
	if err != nil {
		return false, 0, err
	}
	if removed == 0 {
		return false, 0, fmt.Errorf("order %s is not in picking list %s: %w", orderID, batch.PickingNumber, ErrNotFound)
	}

	var remaining int
	if err := tx.GetContext(ctx, &remaining,
		s.rebind("SELECT COUNT(*) FROM pick_items WHERE picking_list_id = ?"), batchID); err != nil {
		return false, 0, err
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM picking_lists WHERE id = ?"), batchID); err != nil {
			return false, 0, fmt.Errorf("failed to delete emptied picking list: %w", err)
		}
		batchDeleted = true
	}
	return batchDeleted, removed, tx.Commit()
}

// releaseOrdersTx deletes pick items (optionally scoped to one order) and
// reverts affected orders still in a batch-induced status to pending.
func (s *Store) releaseOrdersTx(ctx context.Context, tx *sqlx.Tx, batchID, orderID, pickingNumber string, ts time.Time) (int, int, error) {
	query := "SELECT DISTINCT order_id FROM pick_items WHERE picking_list_id = ?"
	args := []interface{}{batchID}
	if orderID != "" {
		query += " AND order_id = ?"
		args = append(args, orderID)
	}
	var orderIDs []string
	if err := tx.SelectContext(ctx, &orderIDs, s.rebind(query), args...); err != nil {
		return 0, 0, err
	}

	delQuery := "DELETE FROM pick_items WHERE picking_list_id = ?"
	res, err := tx.ExecContext(ctx, s.rebind(delQuery+func() string {
		if orderID != "" {
			return " AND order_id = ?"
		}
		return ""
	}()), args...)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to delete pick items: %w", err)
	}
	removed64, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	released := 0
	for _, id := range orderIDs {
		order, err := s.getOrderTx(ctx, tx, id)
		if err != nil {
			return 0, 0, err
		}
		switch order.Status {
		case models.OrderStatusProcessing, models.OrderStatusPacking, models.OrderStatusPacked:
			if err := s.setStatusTx(ctx, tx, id, models.OrderStatusPending,
				fmt.Sprintf("Released from picking list %s", pickingNumber), ts); err != nil {
				return 0, 0, err
			}
			released++
		}
	}
	return released, int(removed64), nil
}

// ArchiveBatch archives a picking list. Allowed only when the batch has no
// orders left or is done.
func (s *Store) ArchiveBatch(ctx context.Context, batchID string) (*models.PickingList, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	batch, err := s.getBatchTx(ctx, tx, batchID)
	if err != nil {
		return nil, err
	}

	var orderCount int
	if err := tx.GetContext(ctx, &orderCount,
		s.rebind("SELECT COUNT(DISTINCT order_id) FROM pick_items WHERE picking_list_id = ?"), batchID); err != nil {
		return nil, err
	}
	if orderCount > 0 && batch.Status != models.BatchStatusDone {
		return nil, fmt.Errorf("cannot archive picking list %s in %s status with %d orders: %w",
			batch.PickingNumber, batch.Status, orderCount, ErrInvalidState)
	}

	_, err = tx.ExecContext(ctx,
		s.rebind("UPDATE picking_lists SET status = ?, updated_at = ? WHERE id = ?"),
		string(models.BatchStatusArchived), ts, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to archive picking list: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetBatch(ctx, batchID)
}

func (s *Store) getBatchTx(ctx context.Context, tx *sqlx.Tx, batchID string) (*models.PickingList, error) {
	var batch models.PickingList
	err := tx.GetContext(ctx, &batch, s.rebind("SELECT * FROM picking_lists WHERE id = ?"), batchID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("picking list %s: %w", batchID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// MarkBatchesDoneForOrder is the batch-done sweep: when an order reaches the
// carrier drop-off milestone, any still-processing batch it belongs to is
// marked done if every order in that batch has also reached drop-off.
// Returns the picking lists that completed.
func (s *Store) MarkBatchesDoneForOrder(ctx context.Context, orderID string) ([]models.PickingList, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var batches []models.PickingList
	err = tx.SelectContext(ctx, &batches,
		s.rebind(`SELECT pl.* FROM picking_lists pl
			WHERE pl.status = ? AND pl.id IN (SELECT picking_list_id FROM pick_items WHERE order_id = ?)`),
		string(models.BatchStatusProcessing), orderID)
	if err != nil {
		return nil, err
	}

	var done []models.PickingList
	for i := range batches {
		batch := batches[i]
		var pending int
		// Cancelled orders no longer need picking, so they do not hold
		// the batch open.
		err = tx.GetContext(ctx, &pending,
			s.rebind(`SELECT COUNT(DISTINCT pi.order_id) FROM pick_items pi
				JOIN orders o ON o.id = pi.order_id
				WHERE pi.picking_list_id = ? AND o.status NOT IN (?, ?, ?, ?)`),
			batch.ID,
			string(models.OrderStatusShipped), string(models.OrderStatusInTransit),
			string(models.OrderStatusDelivered), string(models.OrderStatusCancelled))
		if err != nil {
			return nil, err
		}
		if pending > 0 {
			continue
		}
		_, err = tx.ExecContext(ctx,
			s.rebind("UPDATE picking_lists SET status = ?, updated_at = ? WHERE id = ?"),
			string(models.BatchStatusDone), ts, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to mark picking list done: %w", err)
		}
		batch.Status = models.BatchStatusDone
		batch.UpdatedAt = ts
		done = append(done, batch)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return done, nil
}
