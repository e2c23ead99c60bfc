package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"warehouse-service/internal/models"
)

// CreateProduct inserts a product plus its variants. Initial stock (on the
// product or any variant) is recorded through the ledger in the same
// transaction, reason "inbound".
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	ts := now()
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	product.CreatedAt = ts
	product.UpdatedAt = ts

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	initialQty := product.Quantity
	product.Quantity = 0
	_, err = tx.ExecContext(ctx,
		s.rebind(`INSERT INTO products (id, sku, name, description, category, weight_oz, length_in, width_in, height_in, price, quantity, location, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		product.ID, product.SKU, product.Name, product.Description, product.Category,
		product.WeightOz, product.LengthIn, product.WidthIn, product.HeightIn,
		product.Price, 0, product.Location, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	if initialQty > 0 {
		if _, err := s.adjustProductTx(ctx, tx, product.ID, initialQty, models.LedgerReasonInbound, "", "Initial stock on product creation", ts); err != nil {
			return err
		}
		product.Quantity = initialQty
	}

	for i := range product.Variants {
		v := &product.Variants[i]
		v.ProductID = product.ID
		if err := s.createVariantTx(ctx, tx, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) createVariantTx(ctx context.Context, tx *sqlx.Tx, v *models.Variant) error {
	ts := now()
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = ts
	v.UpdatedAt = ts

	initialQty := v.Quantity
	_, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO variants (id, product_id, variant_sku, label, price_override, weight_oz_override, length_in_override, width_in_override, height_in_override, quantity, location, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.ProductID, v.VariantSKU, v.Label,
		v.PriceOverride, v.WeightOzOverride, v.LengthInOverride, v.WidthInOverride, v.HeightInOverride,
		0, v.Location, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert variant: %w", err)
	}

	if initialQty > 0 {
		if _, err := s.adjustVariantTx(ctx, tx, v.ID, initialQty, models.LedgerReasonInbound, "", "Initial stock on variant creation", ts); err != nil {
			return err
		}
		v.Quantity = initialQty
	}
	return nil
}

// CreateVariant adds a variant to an existing product.
func (s *Store) CreateVariant(ctx context.Context, v *models.Variant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, s.rebind("SELECT COUNT(*) FROM products WHERE id = ?"), v.ProductID); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("product %s: %w", v.ProductID, ErrNotFound)
	}

	if err := s.createVariantTx(ctx, tx, v); err != nil {
		return err
	}
	return tx.Commit()
}

// GetProduct retrieves a product with its variants.
func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, s.rebind("SELECT * FROM products WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadVariants(ctx, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySKU retrieves a product by SKU.
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, s.rebind("SELECT * FROM products WHERE sku = ?"), sku)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product sku %s: %w", sku, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadVariants(ctx, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) loadVariants(ctx context.Context, product *models.Product) error {
	return s.db.SelectContext(ctx, &product.Variants,
		s.rebind("SELECT * FROM variants WHERE product_id = ? ORDER BY variant_sku"), product.ID)
}

// GetVariant retrieves a variant by id.
func (s *Store) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	var v models.Variant
	err := s.db.GetContext(ctx, &v, s.rebind("SELECT * FROM variants WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("variant %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVariantBySKU retrieves a variant by its SKU.
func (s *Store) GetVariantBySKU(ctx context.Context, sku string) (*models.Variant, error) {
	var v models.Variant
	err := s.db.GetContext(ctx, &v, s.rebind("SELECT * FROM variants WHERE variant_sku = ?"), sku)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("variant sku %s: %w", sku, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListProducts retrieves products, optionally filtered by category.
func (s *Store) ListProducts(ctx context.Context, category string, offset, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 100
	}
	var products []models.Product
	var err error
	if category != "" {
		err = s.db.SelectContext(ctx, &products,
			s.rebind("SELECT * FROM products WHERE category = ? ORDER BY sku LIMIT ? OFFSET ?"),
			category, limit, offset)
	} else {
		err = s.db.SelectContext(ctx, &products,
			s.rebind("SELECT * FROM products ORDER BY sku LIMIT ? OFFSET ?"),
			limit, offset)
	}
	return products, err
}

// UpdateProduct updates catalog attributes. Quantity is deliberately not
// touched here; stock changes go through AdjustProduct.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind(`UPDATE products SET name = ?, description = ?, category = ?, weight_oz = ?, length_in = ?, width_in = ?, height_in = ?, price = ?, location = ?, updated_at = ?
			WHERE id = ?`),
		p.Name, p.Description, p.Category, p.WeightOz, p.LengthIn, p.WidthIn, p.HeightIn,
		p.Price, p.Location, now(), p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
	}
	return nil
}
