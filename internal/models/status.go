package models

// OrderStatus enumerates the order lifecycle. The zero value is invalid.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusPacking        OrderStatus = "packing"
	OrderStatusPacked         OrderStatus = "packed"
	OrderStatusLabelPurchased OrderStatus = "label_purchased"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusInTransit      OrderStatus = "in_transit"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// orderStatusRank orders the lifecycle for regression checks. Cancelled sits
// outside the progression and has no rank.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:        0,
	OrderStatusProcessing:     1,
	OrderStatusPacking:        2,
	OrderStatusPacked:         3,
	OrderStatusLabelPurchased: 4,
	OrderStatusShipped:        5,
	OrderStatusInTransit:      6,
	OrderStatusDelivered:      7,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// Rank returns the lifecycle position of s, or -1 for cancelled/unknown.
func (s OrderStatus) Rank() int {
	r, ok := orderStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// AtLeast reports whether s has reached milestone m in the lifecycle.
// Cancelled orders have reached nothing.
func (s OrderStatus) AtLeast(m OrderStatus) bool {
	sr, mr := s.Rank(), m.Rank()
	return sr >= 0 && mr >= 0 && sr >= mr
}

// PreShipment reports whether s comes before the shipped milestone.
func (s OrderStatus) PreShipment() bool {
	r := s.Rank()
	return r >= 0 && r < orderStatusRank[OrderStatusShipped]
}

// Cancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusShipped, OrderStatusInTransit, OrderStatusDelivered, OrderStatusCancelled:
		return false
	case OrderStatusPending, OrderStatusProcessing, OrderStatusPacking,
		OrderStatusPacked, OrderStatusLabelPurchased:
		return true
	}
	return false
}

// DroppedOff reports whether the order has been handed to the carrier.
func (s OrderStatus) DroppedOff() bool {
	return s.AtLeast(OrderStatusShipped)
}

// BatchStatus enumerates picking-list states.
type BatchStatus string

const (
	BatchStatusActive     BatchStatus = "active"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusDone       BatchStatus = "done"
	BatchStatusArchived   BatchStatus = "archived"
)

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusActive, BatchStatusProcessing, BatchStatusDone, BatchStatusArchived:
		return true
	}
	return false
}

// LedgerReason names why a ledger entry exists.
type LedgerReason string

const (
	LedgerReasonInbound        LedgerReason = "inbound"
	LedgerReasonOrder          LedgerReason = "order"
	LedgerReasonOrderCancelled LedgerReason = "order_cancelled"
	LedgerReasonAdjustment     LedgerReason = "adjustment"
	LedgerReasonStockRequest   LedgerReason = "stock_request"
)

// Valid reports whether r is a known ledger reason.
func (r LedgerReason) Valid() bool {
	switch r {
	case LedgerReasonInbound, LedgerReasonOrder, LedgerReasonOrderCancelled,
		LedgerReasonAdjustment, LedgerReasonStockRequest:
		return true
	}
	return false
}

// StockRequestStatus enumerates replenishment request states.
type StockRequestStatus string

const (
	StockRequestStatusPending   StockRequestStatus = "pending"
	StockRequestStatusApproved  StockRequestStatus = "approved"
	StockRequestStatusReceiving StockRequestStatus = "receiving"
	StockRequestStatusCompleted StockRequestStatus = "completed"
	StockRequestStatusCancelled StockRequestStatus = "cancelled"
)

var stockRequestTransitions = map[StockRequestStatus][]StockRequestStatus{
	StockRequestStatusPending:   {StockRequestStatusApproved, StockRequestStatusCancelled},
	StockRequestStatusApproved:  {StockRequestStatusReceiving, StockRequestStatusCancelled},
	StockRequestStatusReceiving: {StockRequestStatusCompleted, StockRequestStatusCancelled},
}

// CanTransitionTo reports whether next is a legal move from s. Completed and
// cancelled requests are terminal.
func (s StockRequestStatus) CanTransitionTo(next StockRequestStatus) bool {
	for _, allowed := range stockRequestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
