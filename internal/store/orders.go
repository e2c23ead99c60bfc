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

// CreateOrder inserts an order, its line items and the opening history entry,
// and reserves stock for every line through the ledger. The whole operation
// is one transaction: if any line lacks stock, nothing is committed.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	ts := now()
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	order.Status = models.OrderStatusPending
	order.CreatedAt = ts
	order.UpdatedAt = ts

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO orders (id, order_number, customer_name, customer_email, customer_phone,
			ship_to_name, ship_to_street1, ship_to_street2, ship_to_city, ship_to_state, ship_to_zip, ship_to_country,
			ship_from_name, ship_from_street1, ship_from_city, ship_from_state, ship_from_zip, ship_from_country,
			carrier, service, status, shipping_cost, processing_fee, total_price,
			shipment_id, tracking_number, tracking_status, tracking_url, label_url,
			webhook_url, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		order.ID, order.OrderNumber, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
		order.ShipToName, order.ShipToStreet1, order.ShipToStreet2, order.ShipToCity, order.ShipToState, order.ShipToZip, order.ShipToCountry,
		order.ShipFromName, order.ShipFromStreet1, order.ShipFromCity, order.ShipFromState, order.ShipFromZip, order.ShipFromCountry,
		order.Carrier, order.Service, string(order.Status), order.ShippingCost, order.ProcessingFee, order.TotalPrice,
		"", "", "", "", "",
		order.WebhookURL, order.Notes, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.OrderID = order.ID

		_, err = tx.ExecContext(ctx,
			s.rebind(`INSERT INTO order_items (id, order_id, product_id, variant_id, sku, variant_sku, variant_label, product_name, quantity, unit_price)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			item.ID, item.OrderID, item.ProductID, item.VariantID, item.SKU, item.VariantSKU,
			item.VariantLabel, item.ProductName, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}

		note := fmt.Sprintf("Reserved for order %s", order.OrderNumber)
		if item.VariantID != "" {
			_, err = s.adjustVariantTx(ctx, tx, item.VariantID, -item.Quantity, models.LedgerReasonOrder, order.ID, note, ts)
		} else {
			_, err = s.adjustProductTx(ctx, tx, item.ProductID, -item.Quantity, models.LedgerReasonOrder, order.ID, note, ts)
		}
		if err != nil {
			return err
		}
	}

	if err := s.appendHistoryTx(ctx, tx, order.ID, models.OrderStatusPending, "Order created", ts); err != nil {
		return err
	}

	return tx.Commit()
}

// CancelOrder restores every line's reserved stock through compensating
// ledger entries and moves the order to cancelled, atomically. Orders at or
// past the shipped milestone cannot be cancelled.
func (s *Store) CancelOrder(ctx context.Context, orderID string) (*models.Order, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := s.getOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("cannot cancel order in %s status: %w", order.Status, ErrInvalidState)
	}

	items, err := s.getOrderItemsTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		note := fmt.Sprintf("Restored from cancelled order %s", order.OrderNumber)
		if item.VariantID != "" {
			_, err = s.adjustVariantTx(ctx, tx, item.VariantID, item.Quantity, models.LedgerReasonOrderCancelled, order.ID, note, ts)
		} else {
			_, err = s.adjustProductTx(ctx, tx, item.ProductID, item.Quantity, models.LedgerReasonOrderCancelled, order.ID, note, ts)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.setStatusTx(ctx, tx, orderID, models.OrderStatusCancelled, "Order cancelled", ts); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetOrder(ctx, orderID)
}

// UpdateOrderStatus sets the status and appends a history entry in one
// transaction. No transition validation: operator override is deliberately
// unconstrained, unlike webhook-driven transitions.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, note string) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.setStatusTx(ctx, tx, orderID, status, note, now()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// setStatusTx updates the status column and appends the journal row.
func (s *Store) setStatusTx(ctx context.Context, tx *sqlx.Tx, orderID string, status models.OrderStatus, note string, ts time.Time) error {
	res, err := tx.ExecContext(ctx,
		s.rebind("UPDATE orders SET status = ?, updated_at = ? WHERE id = ?"),
		string(status), ts, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return s.appendHistoryTx(ctx, tx, orderID, status, note, ts)
}

// appendHistoryTx inserts one journal row. History is append-only; there is
// no update or delete path for this table.
func (s *Store) appendHistoryTx(ctx context.Context, tx *sqlx.Tx, orderID string, status models.OrderStatus, note string, ts time.Time) error {
	_, err := tx.ExecContext(ctx,
		s.rebind("INSERT INTO order_status_history (id, order_id, status, note, created_at) VALUES (?, ?, ?, ?, ?)"),
		uuid.New().String(), orderID, string(status), note, ts)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (s *Store) getOrderTx(ctx context.Context, tx *sqlx.Tx, orderID string) (*models.Order, error) {
	var order models.Order
	err := tx.GetContext(ctx, &order, s.rebind("SELECT * FROM orders WHERE id = ?"), orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) getOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := tx.SelectContext(ctx, &items, s.rebind("SELECT * FROM order_items WHERE order_id = ?"), orderID)
	return items, err
}

// GetOrder retrieves an order with items and status history.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, s.rebind("SELECT * FROM orders WHERE id = ?"), orderID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadOrderChildren(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// OrderNumbers maps the given order ids to their order numbers.
func (s *Store) OrderNumbers(ctx context.Context, orderIDs []string) (map[string]string, error) {
	numbers := make(map[string]string, len(orderIDs))
	if len(orderIDs) == 0 {
		return numbers, nil
	}
	query, args, err := sqlx.In("SELECT id, order_number FROM orders WHERE id IN (?)", orderIDs)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID          string `db:"id"`
		OrderNumber string `db:"order_number"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		numbers[r.ID] = r.OrderNumber
	}
	return numbers, nil
}

// GetOrderByNumber retrieves an order by its human-readable number.
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, s.rebind("SELECT * FROM orders WHERE order_number = ?"), orderNumber)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderNumber, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadOrderChildren(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByTrackingNumber resolves a carrier tracking number to an order.
func (s *Store) GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		s.rebind("SELECT * FROM orders WHERE tracking_number = ? AND tracking_number <> ''"), trackingNumber)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tracking number %s: %w", trackingNumber, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadOrderChildren(ctx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) loadOrderChildren(ctx context.Context, order *models.Order) error {
	if err := s.db.SelectContext(ctx, &order.Items,
		s.rebind("SELECT * FROM order_items WHERE order_id = ?"), order.ID); err != nil {
		return err
	}
	return s.db.SelectContext(ctx, &order.History,
		s.rebind("SELECT * FROM order_status_history WHERE order_id = ? ORDER BY created_at, id"), order.ID)
}

// ListOrders retrieves orders newest first, optionally filtered by status.
func (s *Store) ListOrders(ctx context.Context, status models.OrderStatus, offset, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	var err error
	if status != "" {
		err = s.db.SelectContext(ctx, &orders,
			s.rebind("SELECT * FROM orders WHERE status = ? ORDER BY created_at DESC LIMIT ? OFFSET ?"),
			string(status), limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &orders,
			s.rebind("SELECT * FROM orders ORDER BY created_at DESC LIMIT ? OFFSET ?"),
			limit, offset)
	}
	return orders, err
}

// LabelPurchase carries the carrier response applied to an order when a
// label is bought.
type LabelPurchase struct {
	Carrier        string
	Service        string
	ShipmentID     string
	TrackingNumber string
	TrackingURL    string
	LabelURL       string
	ShippingCost   float64
	TotalPrice     float64
	Note           string
}

// ApplyLabelPurchase records a purchased label and moves the order to
// label_purchased with a history note, in one transaction.
func (s *Store) ApplyLabelPurchase(ctx context.Context, orderID string, p LabelPurchase) (*models.Order, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		s.rebind(`UPDATE orders SET carrier = ?, service = ?, shipment_id = ?, tracking_number = ?, tracking_url = ?, label_url = ?,
			shipping_cost = ?, total_price = ?, status = ?, updated_at = ?
			WHERE id = ?`),
		p.Carrier, p.Service, p.ShipmentID, p.TrackingNumber, p.TrackingURL, p.LabelURL,
		p.ShippingCost, p.TotalPrice, string(models.OrderStatusLabelPurchased), ts, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to record label purchase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	if err := s.appendHistoryTx(ctx, tx, orderID, models.OrderStatusLabelPurchased, p.Note, ts); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// ClearLabel wipes label and tracking fields after a carrier refund and
// recomputes the total without shipping cost.
func (s *Store) ClearLabel(ctx context.Context, orderID string, totalPrice float64, note string) (*models.Order, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := s.getOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		s.rebind(`UPDATE orders SET shipment_id = '', tracking_number = '', tracking_status = '', tracking_url = '', label_url = '',
			shipping_cost = 0, total_price = ?, updated_at = ?
			WHERE id = ?`),
		totalPrice, ts, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear label: %w", err)
	}

	if err := s.appendHistoryTx(ctx, tx, orderID, order.Status, note, ts); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

// StatusChange is one lifecycle transition inside a tracking update.
type StatusChange struct {
	Status models.OrderStatus
	Note   string
}

// TrackingUpdate is the effect of one reconciled carrier event.
type TrackingUpdate struct {
	TrackingStatus string
	TrackingURL    string
	Transitions    []StatusChange
}

// ApplyTrackingUpdate persists the tracking fields and any lifecycle
// transitions computed by the webhook reconciler, in one transaction.
func (s *Store) ApplyTrackingUpdate(ctx context.Context, orderID string, u TrackingUpdate) (*models.Order, error) {
	ts := now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		s.rebind("UPDATE orders SET tracking_status = ?, tracking_url = ?, updated_at = ? WHERE id = ?"),
		u.TrackingStatus, u.TrackingURL, ts, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update tracking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}

	// Successive transitions get distinct timestamps so the journal keeps
	// its recorded order (shipped before delivered).
	for i, change := range u.Transitions {
		if err := s.setStatusTx(ctx, tx, orderID, change.Status, change.Note, ts.Add(time.Duration(i)*time.Millisecond)); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}
