package models

import "time"

// Product represents a catalog product. Quantity is only ever mutated through
// the inventory ledger; every change leaves an InventoryLog row behind.
type Product struct {
	ID          string    `db:"id" json:"id"`
	SKU         string    `db:"sku" json:"sku"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Category    string    `db:"category" json:"category,omitempty"`
	WeightOz    float64   `db:"weight_oz" json:"weight_oz"`
	LengthIn    float64   `db:"length_in" json:"length_in"`
	WidthIn     float64   `db:"width_in" json:"width_in"`
	HeightIn    float64   `db:"height_in" json:"height_in"`
	Price       float64   `db:"price" json:"price"`
	Quantity    int       `db:"quantity" json:"quantity"`
	Location    string    `db:"location" json:"location,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	Variants []Variant `db:"-" json:"variants,omitempty"`
}

// Variant is a sellable variation of a product with its own SKU and stock.
// Zero-valued overrides fall back to the parent product.
type Variant struct {
	ID               string    `db:"id" json:"id"`
	ProductID        string    `db:"product_id" json:"product_id"`
	VariantSKU       string    `db:"variant_sku" json:"variant_sku"`
	Label            string    `db:"label" json:"label,omitempty"`
	PriceOverride    float64   `db:"price_override" json:"price_override"`
	WeightOzOverride float64   `db:"weight_oz_override" json:"weight_oz_override"`
	LengthInOverride float64   `db:"length_in_override" json:"length_in_override"`
	WidthInOverride  float64   `db:"width_in_override" json:"width_in_override"`
	HeightInOverride float64   `db:"height_in_override" json:"height_in_override"`
	Quantity         int       `db:"quantity" json:"quantity"`
	Location         string    `db:"location" json:"location,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// EffectivePrice returns the variant price, falling back to the product's.
func (v *Variant) EffectivePrice(p *Product) float64 {
	if v.PriceOverride > 0 {
		return v.PriceOverride
	}
	return p.Price
}

// EffectiveWeightOz returns the variant weight, falling back to the product's.
func (v *Variant) EffectiveWeightOz(p *Product) float64 {
	if v.WeightOzOverride > 0 {
		return v.WeightOzOverride
	}
	return p.WeightOz
}

// EffectiveDims returns length, width and height with product fallback.
func (v *Variant) EffectiveDims(p *Product) (length, width, height float64) {
	length, width, height = p.LengthIn, p.WidthIn, p.HeightIn
	if v.LengthInOverride > 0 {
		length = v.LengthInOverride
	}
	if v.WidthInOverride > 0 {
		width = v.WidthInOverride
	}
	if v.HeightInOverride > 0 {
		height = v.HeightInOverride
	}
	return length, width, height
}

// Order is the order aggregate root. Customer and address fields are copied at
// creation time and never re-resolved from a customer record.
type Order struct {
	ID            string `db:"id" json:"id"`
	OrderNumber   string `db:"order_number" json:"order_number"`
	CustomerName  string `db:"customer_name" json:"customer_name"`
	CustomerEmail string `db:"customer_email" json:"customer_email,omitempty"`
	CustomerPhone string `db:"customer_phone" json:"customer_phone,omitempty"`

	ShipToName    string `db:"ship_to_name" json:"ship_to_name"`
	ShipToStreet1 string `db:"ship_to_street1" json:"ship_to_street1"`
	ShipToStreet2 string `db:"ship_to_street2" json:"ship_to_street2,omitempty"`
	ShipToCity    string `db:"ship_to_city" json:"ship_to_city"`
	ShipToState   string `db:"ship_to_state" json:"ship_to_state"`
	ShipToZip     string `db:"ship_to_zip" json:"ship_to_zip"`
	ShipToCountry string `db:"ship_to_country" json:"ship_to_country"`

	ShipFromName    string `db:"ship_from_name" json:"ship_from_name,omitempty"`
	ShipFromStreet1 string `db:"ship_from_street1" json:"ship_from_street1,omitempty"`
	ShipFromCity    string `db:"ship_from_city" json:"ship_from_city,omitempty"`
	ShipFromState   string `db:"ship_from_state" json:"ship_from_state,omitempty"`
	ShipFromZip     string `db:"ship_from_zip" json:"ship_from_zip,omitempty"`
	ShipFromCountry string `db:"ship_from_country" json:"ship_from_country,omitempty"`

	Carrier string      `db:"carrier" json:"carrier,omitempty"`
	Service string      `db:"service" json:"service,omitempty"`
	Status  OrderStatus `db:"status" json:"status"`

	ShippingCost  float64 `db:"shipping_cost" json:"shipping_cost"`
	ProcessingFee float64 `db:"processing_fee" json:"processing_fee"`
	TotalPrice    float64 `db:"total_price" json:"total_price"`

	ShipmentID     string `db:"shipment_id" json:"shipment_id,omitempty"`
	TrackingNumber string `db:"tracking_number" json:"tracking_number,omitempty"`
	TrackingStatus string `db:"tracking_status" json:"tracking_status,omitempty"`
	TrackingURL    string `db:"tracking_url" json:"tracking_url,omitempty"`
	LabelURL       string `db:"label_url" json:"label_url,omitempty"`

	WebhookURL string    `db:"webhook_url" json:"webhook_url,omitempty"`
	Notes      string    `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Items   []OrderItem          `db:"-" json:"items,omitempty"`
	History []StatusHistoryEntry `db:"-" json:"status_history,omitempty"`
}

// ItemSubtotal sums quantity x unit price over the order's line items.
func (o *Order) ItemSubtotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += float64(item.Quantity) * item.UnitPrice
	}
	return total
}

// TotalUnits sums line-item quantities.
func (o *Order) TotalUnits() int {
	var n int
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// OrderItem is a line item. SKU, name, label and price are snapshots taken at
// order creation time; later catalog changes do not affect them.
type OrderItem struct {
	ID           string  `db:"id" json:"id"`
	OrderID      string  `db:"order_id" json:"order_id"`
	ProductID    string  `db:"product_id" json:"product_id"`
	VariantID    string  `db:"variant_id" json:"variant_id,omitempty"`
	SKU          string  `db:"sku" json:"sku"`
	VariantSKU   string  `db:"variant_sku" json:"variant_sku,omitempty"`
	VariantLabel string  `db:"variant_label" json:"variant_label,omitempty"`
	ProductName  string  `db:"product_name" json:"product_name"`
	Quantity     int     `db:"quantity" json:"quantity"`
	UnitPrice    float64 `db:"unit_price" json:"unit_price"`
}

// PickSKU is the SKU a picker scans for this line: the variant SKU when the
// line is a variant, the product SKU otherwise.
func (i *OrderItem) PickSKU() string {
	if i.VariantSKU != "" {
		return i.VariantSKU
	}
	return i.SKU
}

// StatusHistoryEntry is one row of an order's append-only status journal.
type StatusHistoryEntry struct {
	ID        string      `db:"id" json:"-"`
	OrderID   string      `db:"order_id" json:"-"`
	Status    OrderStatus `db:"status" json:"status"`
	Note      string      `db:"note" json:"note,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"timestamp"`
}

// InventoryLog is one immutable ledger entry. Created exactly once per stock
// mutation, never updated or deleted.
type InventoryLog struct {
	ID           string       `db:"id" json:"id"`
	ProductID    string       `db:"product_id" json:"product_id"`
	VariantID    string       `db:"variant_id" json:"variant_id,omitempty"`
	Change       int          `db:"change" json:"change"`
	Reason       LedgerReason `db:"reason" json:"reason"`
	ReferenceID  string       `db:"reference_id" json:"reference_id,omitempty"`
	BalanceAfter int          `db:"balance_after" json:"balance_after"`
	Note         string       `db:"note" json:"note,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// PickingList groups orders released together for physical picking.
type PickingList struct {
	ID            string      `db:"id" json:"id"`
	PickingNumber string      `db:"picking_number" json:"picking_number"`
	Status        BatchStatus `db:"status" json:"status"`
	AssignedTo    string      `db:"assigned_to" json:"assigned_to,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`

	Items []PickItem `db:"-" json:"items,omitempty"`
}

// PickItem is exactly one physical unit to retrieve. A line item of quantity N
// expands into N pick items with sequence 1..N, each carrying its own scan
// token. The picked flag flips false->true at most once.
type PickItem struct {
	ID            string     `db:"id" json:"id"`
	PickingListID string     `db:"picking_list_id" json:"picking_list_id"`
	OrderID       string     `db:"order_id" json:"order_id"`
	OrderItemID   string     `db:"order_item_id" json:"order_item_id"`
	ProductID     string     `db:"product_id" json:"product_id"`
	SKU           string     `db:"sku" json:"sku"`
	ProductName   string     `db:"product_name" json:"product_name"`
	VariantLabel  string     `db:"variant_label" json:"variant_label,omitempty"`
	Sequence      int        `db:"sequence" json:"sequence"`
	QRCode        string     `db:"qr_code" json:"qr_code"`
	Picked        bool       `db:"picked" json:"picked"`
	PickedAt      *time.Time `db:"picked_at" json:"picked_at,omitempty"`
}

// StockRequest is a replenishment request to a supplier.
type StockRequest struct {
	ID            string             `db:"id" json:"id"`
	RequestNumber string             `db:"request_number" json:"request_number"`
	Supplier      string             `db:"supplier" json:"supplier,omitempty"`
	Status        StockRequestStatus `db:"status" json:"status"`
	Notes         string             `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`

	Items []StockRequestItem `db:"-" json:"items,omitempty"`
}

// StockRequestItem is one requested product/variant line.
type StockRequestItem struct {
	ID                string  `db:"id" json:"id"`
	StockRequestID    string  `db:"stock_request_id" json:"stock_request_id"`
	ProductID         string  `db:"product_id" json:"product_id"`
	VariantID         string  `db:"variant_id" json:"variant_id,omitempty"`
	SKU               string  `db:"sku" json:"sku"`
	ProductName       string  `db:"product_name" json:"product_name"`
	VariantLabel      string  `db:"variant_label" json:"variant_label,omitempty"`
	QuantityRequested int     `db:"quantity_requested" json:"quantity_requested"`
	QuantityReceived  int     `db:"quantity_received" json:"quantity_received"`
	UnitCost          float64 `db:"unit_cost" json:"unit_cost"`
}

// ProcessedEvent marks a consumed broker event for idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
