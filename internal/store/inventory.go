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

// adjustProductTx applies a signed stock delta to a product and appends the
// matching ledger row, all on the caller's transaction. The conditional
// UPDATE is the negative-stock guard: it only matches when the resulting
// quantity stays >= 0, so concurrent adjustments cannot race past zero.
func (s *Store) adjustProductTx(ctx context.Context, tx *sqlx.Tx, productID string, delta int, reason models.LedgerReason, referenceID, note string, ts time.Time) (int, error) {
	res, err := tx.ExecContext(ctx,
		s.rebind("UPDATE products SET quantity = quantity + ?, updated_at = ? WHERE id = ? AND quantity + ? >= 0"),
		delta, ts, productID, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust product stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		var current int
		err := tx.GetContext(ctx, &current, s.rebind("SELECT quantity FROM products WHERE id = ?"), productID)
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		if err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("product %s has %d on hand, requested change %d: %w",
			productID, current, delta, ErrInsufficientStock)
	}

	var balance int
	if err := tx.GetContext(ctx, &balance, s.rebind("SELECT quantity FROM products WHERE id = ?"), productID); err != nil {
		return 0, fmt.Errorf("failed to read product balance: %w", err)
	}

	if err := s.insertLedgerTx(ctx, tx, productID, "", delta, reason, referenceID, balance, note, ts); err != nil {
		return 0, err
	}
	return balance, nil
}

// adjustVariantTx is the variant counterpart of adjustProductTx. The ledger
// row references both the parent product and the variant.
func (s *Store) adjustVariantTx(ctx context.Context, tx *sqlx.Tx, variantID string, delta int, reason models.LedgerReason, referenceID, note string, ts time.Time) (int, error) {
	res, err := tx.ExecContext(ctx,
		s.rebind("UPDATE variants SET quantity = quantity + ?, updated_at = ? WHERE id = ? AND quantity + ? >= 0"),
		delta, ts, variantID, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust variant stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		var current int
		err := tx.GetContext(ctx, &current, s.rebind("SELECT quantity FROM variants WHERE id = ?"), variantID)
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("variant %s: %w", variantID, ErrNotFound)
		}
		if err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("variant %s has %d on hand, requested change %d: %w",
			variantID, current, delta, ErrInsufficientStock)
	}

	var row struct {
		ProductID string `db:"product_id"`
		Quantity  int    `db:"quantity"`
	}
	if err := tx.GetContext(ctx, &row, s.rebind("SELECT product_id, quantity FROM variants WHERE id = ?"), variantID); err != nil {
		return 0, fmt.Errorf("failed to read variant balance: %w", err)
	}

	if err := s.insertLedgerTx(ctx, tx, row.ProductID, variantID, delta, reason, referenceID, row.Quantity, note, ts); err != nil {
		return 0, err
	}
	return row.Quantity, nil
}

func (s *Store) insertLedgerTx(ctx context.Context, tx *sqlx.Tx, productID, variantID string, delta int, reason models.LedgerReason, referenceID string, balance int, note string, ts time.Time) error {
	_, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO inventory_logs (id, product_id, variant_id, change, reason, reference_id, balance_after, note, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.New().String(), productID, variantID, delta, string(reason), referenceID, balance, note, ts)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// AdjustProduct atomically applies a stock delta to a product with its ledger
// entry. This is the only sanctioned path for mutating product quantity.
func (s *Store) AdjustProduct(ctx context.Context, productID string, delta int, reason models.LedgerReason, referenceID, note string) (*models.Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.adjustProductTx(ctx, tx, productID, delta, reason, referenceID, note, now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, productID)
}

// AdjustVariant atomically applies a stock delta to a variant with its ledger
// entry.
func (s *Store) AdjustVariant(ctx context.Context, variantID string, delta int, reason models.LedgerReason, referenceID, note string) (*models.Variant, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := s.adjustVariantTx(ctx, tx, variantID, delta, reason, referenceID, note, now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, variantID)
}

// GetInventoryLogs returns the ledger for a product, newest first.
func (s *Store) GetInventoryLogs(ctx context.Context, productID string, limit int) ([]models.InventoryLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var logs []models.InventoryLog
	err := s.db.SelectContext(ctx, &logs,
		s.rebind("SELECT * FROM inventory_logs WHERE product_id = ? ORDER BY created_at DESC LIMIT ?"),
		productID, limit)
	return logs, err
}

// GetInventoryLogsByReference returns all ledger entries citing a reference
// id (an order or stock request), oldest first.
func (s *Store) GetInventoryLogsByReference(ctx context.Context, referenceID string) ([]models.InventoryLog, error) {
	var logs []models.InventoryLog
	err := s.db.SelectContext(ctx, &logs,
		s.rebind("SELECT * FROM inventory_logs WHERE reference_id = ? ORDER BY created_at"),
		referenceID)
	return logs, err
}
