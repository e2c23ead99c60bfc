package store

// schema is valid for both postgres and sqlite: TEXT ids, plain column types,
// timestamps set from Go rather than database functions.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	sku TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	weight_oz DOUBLE PRECISION NOT NULL DEFAULT 0,
	length_in DOUBLE PRECISION NOT NULL DEFAULT 0,
	width_in DOUBLE PRECISION NOT NULL DEFAULT 0,
	height_in DOUBLE PRECISION NOT NULL DEFAULT 0,
	price DOUBLE PRECISION NOT NULL DEFAULT 0,
	quantity INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS variants (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL REFERENCES products(id),
	variant_sku TEXT NOT NULL UNIQUE,
	label TEXT NOT NULL DEFAULT '',
	price_override DOUBLE PRECISION NOT NULL DEFAULT 0,
	weight_oz_override DOUBLE PRECISION NOT NULL DEFAULT 0,
	length_in_override DOUBLE PRECISION NOT NULL DEFAULT 0,
	width_in_override DOUBLE PRECISION NOT NULL DEFAULT 0,
	height_in_override DOUBLE PRECISION NOT NULL DEFAULT 0,
	quantity INTEGER NOT NULL DEFAULT 0,
	location TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_logs (
	id TEXT PRIMARY KEY,
	product_id TEXT NOT NULL,
	variant_id TEXT NOT NULL DEFAULT '',
	change INTEGER NOT NULL,
	reason TEXT NOT NULL,
	reference_id TEXT NOT NULL DEFAULT '',
	balance_after INTEGER NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inventory_logs_product ON inventory_logs (product_id);
CREATE INDEX IF NOT EXISTS idx_inventory_logs_reference ON inventory_logs (reference_id);

CREATE TABLE IF NOT EXISTS orders (
	id TEXT PRIMARY KEY,
	order_number TEXT NOT NULL UNIQUE,
	customer_name TEXT NOT NULL,
	customer_email TEXT NOT NULL DEFAULT '',
	customer_phone TEXT NOT NULL DEFAULT '',
	ship_to_name TEXT NOT NULL DEFAULT '',
	ship_to_street1 TEXT NOT NULL DEFAULT '',
	ship_to_street2 TEXT NOT NULL DEFAULT '',
	ship_to_city TEXT NOT NULL DEFAULT '',
	ship_to_state TEXT NOT NULL DEFAULT '',
	ship_to_zip TEXT NOT NULL DEFAULT '',
	ship_to_country TEXT NOT NULL DEFAULT 'US',
	ship_from_name TEXT NOT NULL DEFAULT '',
	ship_from_street1 TEXT NOT NULL DEFAULT '',
	ship_from_city TEXT NOT NULL DEFAULT '',
	ship_from_state TEXT NOT NULL DEFAULT '',
	ship_from_zip TEXT NOT NULL DEFAULT '',
	ship_from_country TEXT NOT NULL DEFAULT 'US',
	carrier TEXT NOT NULL DEFAULT '',
	service TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	shipping_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_price DOUBLE PRECISION NOT NULL DEFAULT 0,
	shipment_id TEXT NOT NULL DEFAULT '',
	tracking_number TEXT NOT NULL DEFAULT '',
	tracking_status TEXT NOT NULL DEFAULT '',
	tracking_url TEXT NOT NULL DEFAULT '',
	label_url TEXT NOT NULL DEFAULT '',
	webhook_url TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
CREATE INDEX IF NOT EXISTS idx_orders_tracking ON orders (tracking_number);

CREATE TABLE IF NOT EXISTS order_items (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	product_id TEXT NOT NULL,
	variant_id TEXT NOT NULL DEFAULT '',
	sku TEXT NOT NULL,
	variant_sku TEXT NOT NULL DEFAULT '',
	variant_label TEXT NOT NULL DEFAULT '',
	product_name TEXT NOT NULL DEFAULT '',
	quantity INTEGER NOT NULL DEFAULT 1,
	unit_price DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items (order_id);

CREATE TABLE IF NOT EXISTS order_status_history (
	id TEXT PRIMARY KEY,
	order_id TEXT NOT NULL REFERENCES orders(id),
	status TEXT NOT NULL,
	note TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history (order_id);

CREATE TABLE IF NOT EXISTS picking_lists (
	id TEXT PRIMARY KEY,
	picking_number TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	assigned_to TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS pick_items (
	id TEXT PRIMARY KEY,
	picking_list_id TEXT NOT NULL REFERENCES picking_lists(id),
	order_id TEXT NOT NULL,
	order_item_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	sku TEXT NOT NULL,
	product_name TEXT NOT NULL DEFAULT '',
	variant_label TEXT NOT NULL DEFAULT '',
	sequence INTEGER NOT NULL DEFAULT 1,
	qr_code TEXT NOT NULL UNIQUE,
	picked BOOLEAN NOT NULL DEFAULT FALSE,
	picked_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_pick_items_list ON pick_items (picking_list_id);
CREATE INDEX IF NOT EXISTS idx_pick_items_order ON pick_items (order_id);

CREATE TABLE IF NOT EXISTS stock_requests (
	id TEXT PRIMARY KEY,
	request_number TEXT NOT NULL UNIQUE,
	supplier TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS stock_request_items (
	id TEXT PRIMARY KEY,
	stock_request_id TEXT NOT NULL REFERENCES stock_requests(id),
	product_id TEXT NOT NULL,
	variant_id TEXT NOT NULL DEFAULT '',
	sku TEXT NOT NULL,
	product_name TEXT NOT NULL DEFAULT '',
	variant_label TEXT NOT NULL DEFAULT '',
	quantity_requested INTEGER NOT NULL DEFAULT 0,
	quantity_received INTEGER NOT NULL DEFAULT 0,
	unit_cost DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS processed_events (
	event_id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	processed_at TIMESTAMP NOT NULL
);
`
