package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeBatchDone          = "BATCH_DONE"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPricing is the pricing block of an order snapshot.
type OrderPricing struct {
	ShippingCost  float64 `json:"shipping_cost"`
	ProcessingFee float64 `json:"processing_fee"`
	TotalPrice    float64 `json:"total_price"`
}

// OrderTracking is the carrier tracking block of an order snapshot.
type OrderTracking struct {
	TrackingNumber  string `json:"tracking_number"`
	TrackingStatus  string `json:"tracking_status"`
	TrackingURL     string `json:"tracking_url"`
	CarrierLabelURL string `json:"carrier_label_url"`
}

// HistoryEntry mirrors one status-history row inside a snapshot.
type HistoryEntry struct {
	Status    OrderStatus `json:"status"`
	Note      string      `json:"note,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// OrderSnapshot is the outbound notification payload: everything a caller's
// webhook endpoint needs without a follow-up read.
type OrderSnapshot struct {
	Event         string         `json:"event"`
	OrderNumber   string         `json:"order_number"`
	Status        OrderStatus    `json:"status"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	Pricing       OrderPricing   `json:"pricing"`
	Tracking      OrderTracking  `json:"tracking"`
	StatusHistory []HistoryEntry `json:"status_history"`
	WebhookURL    string         `json:"-"`
}

// NewOrderSnapshot builds the notification payload for an order.
func NewOrderSnapshot(o *Order) OrderSnapshot {
	history := make([]HistoryEntry, 0, len(o.History))
	for _, h := range o.History {
		history = append(history, HistoryEntry{Status: h.Status, Note: h.Note, Timestamp: h.CreatedAt})
	}
	return OrderSnapshot{
		Event:         "order_update",
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		Pricing: OrderPricing{
			ShippingCost:  o.ShippingCost,
			ProcessingFee: o.ProcessingFee,
			TotalPrice:    o.TotalPrice,
		},
		Tracking: OrderTracking{
			TrackingNumber:  o.TrackingNumber,
			TrackingStatus:  o.TrackingStatus,
			TrackingURL:     o.TrackingURL,
			CarrierLabelURL: o.LabelURL,
		},
		StatusHistory: history,
		WebhookURL:    o.WebhookURL,
	}
}

// OrderEvent is published to the order-events topic whenever an order changes
// in a way its caller should hear about. The notification worker consumes it.
type OrderEvent struct {
	BaseEvent
	OrderID    string        `json:"order_id"`
	WebhookURL string        `json:"webhook_url,omitempty"`
	Order      OrderSnapshot `json:"order"`
}

// BatchDoneEvent is published when a picking list completes.
type BatchDoneEvent struct {
	BaseEvent
	PickingListID string `json:"picking_list_id"`
	PickingNumber string `json:"picking_number"`
}
