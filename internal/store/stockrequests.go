package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"warehouse-service/internal/models"
)

// CreateStockRequest inserts a replenishment request with its lines.
func (s *Store) CreateStockRequest(ctx context.Context, req *models.StockRequest) error {
	ts := now()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.Status = models.StockRequestStatusPending
	req.CreatedAt = ts
	req.UpdatedAt = ts

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		s.rebind("INSERT INTO stock_requests (id, request_number, supplier, status, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"),
		req.ID, req.RequestNumber, req.Supplier, string(req.Status), req.Notes, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert stock request: %w", err)
	}

	for i := range req.Items {
		item := &req.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.StockRequestID = req.ID
		_, err = tx.ExecContext(ctx,
			s.rebind(`INSERT INTO stock_request_items (id, stock_request_id, product_id, variant_id, sku, product_name, variant_label, quantity_requested, quantity_received, unit_cost)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`),
			item.ID, req.ID, item.ProductID, item.VariantID, item.SKU,
			item.ProductName, item.VariantLabel, item.QuantityRequested, item.UnitCost)
		if err != nil {
			return fmt.Errorf("failed to insert stock request item: %w", err)
		}
	}
	return tx.Commit()
}

// GetStockRequest retrieves a request with its lines.
func (s *Store) GetStockRequest(ctx context.Context, id string) (*models.StockRequest, error) {
	var req models.StockRequest
	err := s.db.GetContext(ctx, &req, s.rebind("SELECT * FROM stock_requests WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	err = s.db.SelectContext(ctx, &req.Items,
		s.rebind("SELECT * FROM stock_request_items WHERE stock_request_id = ? ORDER BY product_name, variant_label"), id)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListStockRequests retrieves requests newest first, optionally by status.
func (s *Store) ListStockRequests(ctx context.Context, status string, offset, limit int) ([]models.StockRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	var reqs []models.StockRequest
	var err error
	if status != "" {
		err = s.db.SelectContext(ctx, &reqs,
			s.rebind("SELECT * FROM stock_requests WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?"),
			status, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &reqs,
			s.rebind("SELECT * FROM stock_requests ORDER BY created_at DESC LIMIT ? OFFSET ?"),
			limit, offset)
	}
	return reqs, err
}

// TransitionStockRequest moves a request to the next status, enforcing the
// pending -> approved -> receiving -> completed chain with cancellation from
// any non-terminal state. The conditional UPDATE makes concurrent
// transitions race-safe.
func (s *Store) TransitionStockRequest(ctx context.Context, id string, next models.StockRequestStatus) (*models.StockRequest, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var current models.StockRequest
	err = tx.GetContext(ctx, &current, s.rebind("SELECT * FROM stock_requests WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("stock request %s cannot move from %s to %s: %w",
			current.RequestNumber, current.Status, next, ErrInvalidState)
	}

	res, err := tx.ExecContext(ctx,
		s.rebind("UPDATE stock_requests SET status = ?, updated_at = ? WHERE id = ? AND status = ?"),
		string(next), ts, id, string(current.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to update stock request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("stock request %s changed concurrently: %w", current.RequestNumber, ErrInvalidState)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetStockRequest(ctx, id)
}

// ReceivedLine reports one received quantity against a request line.
type ReceivedLine struct {
	ItemID   string
	Quantity int
}

// ReceiveStockRequestItems records received units against a request in
// receiving status. Each received quantity increments the line and posts an
// inbound adjustment to the product or variant with a stock_request ledger
// entry, all in one transaction. When every line is fully received the
// request completes.
func (s *Store) ReceiveStockRequestItems(ctx context.Context, id string, lines []ReceivedLine) (*models.StockRequest, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var req models.StockRequest
	err = tx.GetContext(ctx, &req, s.rebind("SELECT * FROM stock_requests WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if req.Status != models.StockRequestStatusReceiving {
		return nil, fmt.Errorf("stock request %s is not receiving (status %s): %w",
			req.RequestNumber, req.Status, ErrInvalidState)
	}

	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		var item models.StockRequestItem
		err = tx.GetContext(ctx, &item,
			s.rebind("SELECT * FROM stock_request_items WHERE id = ? AND stock_request_id = ?"),
			line.ItemID, id)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("stock request item %s: %w", line.ItemID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}

		_, err = tx.ExecContext(ctx,
			s.rebind("UPDATE stock_request_items SET quantity_received = quantity_received + ? WHERE id = ?"),
			line.Quantity, item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to update received quantity: %w", err)
		}

		note := fmt.Sprintf("[%s] Received %d x %s", req.RequestNumber, line.Quantity, item.SKU)
		if item.VariantID != "" {
			_, err = s.adjustVariantTx(ctx, tx, item.VariantID, line.Quantity, models.LedgerReasonStockRequest, id, note, ts)
		} else {
			_, err = s.adjustProductTx(ctx, tx, item.ProductID, line.Quantity, models.LedgerReasonStockRequest, id, note, ts)
		}
		if err != nil {
			return nil, err
		}
	}

	complete, err := s.stockRequestFullyReceivedTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if complete {
		_, err = tx.ExecContext(ctx,
			s.rebind("UPDATE stock_requests SET status = ?, updated_at = ? WHERE id = ?"),
			string(models.StockRequestStatusCompleted), ts, id)
		if err != nil {
			return nil, fmt.Errorf("failed to complete stock request: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx,
			s.rebind("UPDATE stock_requests SET updated_at = ? WHERE id = ?"), ts, id)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetStockRequest(ctx, id)
}

func (s *Store) stockRequestFullyReceivedTx(ctx context.Context, tx *sqlx.Tx, id string) (bool, error) {
	var short int
	err := tx.GetContext(ctx, &short,
		s.rebind("SELECT COUNT(*) FROM stock_request_items WHERE stock_request_id = ? AND quantity_received < quantity_requested"),
		id)
	if err != nil {
		return false, err
	}
	return short == 0, nil
}
