package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"warehouse-service/internal/broker"
	"warehouse-service/internal/models"
	"warehouse-service/internal/notify"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"
)

// WebhookService reconciles carrier tracking events into order state and
// handles manually triggered notifications.
type WebhookService struct {
	store     *store.Store
	publisher *broker.EventPublisher
	notifier  *notify.Notifier
	logger    *zap.Logger
}

func NewWebhookService(st *store.Store, publisher *broker.EventPublisher, notifier *notify.Notifier) *WebhookService {
	return &WebhookService{
		store:     st,
		publisher: publisher,
		notifier:  notifier,
		logger:    util.GetLogger(),
	}
}

// TrackingEvent is the inbound carrier webhook payload: an event
// description plus a result block describing the tracked parcel. Nothing
// is required; a payload we cannot use is acknowledged, not rejected.
type TrackingEvent struct {
	Description string         `json:"description"`
	Result      TrackingDetail `json:"result"`
}

type TrackingDetail struct {
	TrackingCode string `json:"tracking_code"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
	PublicURL    string `json:"public_url"`
}

// TrackingResult is always acknowledged with 200; the action field tells the
// carrier (and our logs) what the event did.
type TrackingResult struct {
	Action      string `json:"action"`
	OrderNumber string `json:"order_number,omitempty"`
	Status      string `json:"status,omitempty"`
}

const (
	actionStatusUpdated   = "status_updated"
	actionTrackingUpdated = "tracking_updated"
	actionNoChange        = "no_change"
	actionOrderNotFound   = "order_not_found"
	actionIgnored         = "ignored"

	// ActionInvalidPayload is the ack action for payloads that cannot be
	// parsed or carry no tracking code.
	ActionInvalidPayload = "invalid_payload"
)

// carrierStatusTargets maps carrier scan statuses to order statuses. Scans
// we do not model (pre_transit, available_for_pickup, failure codes) only
// refresh the raw tracking status.
var carrierStatusTargets = map[string]models.OrderStatus{
	"in_transit":       models.OrderStatusInTransit,
	"out_for_delivery": models.OrderStatusInTransit,
	"delivered":        models.OrderStatusDelivered,
}

// planReconciliation decides which status transitions a carrier scan causes.
// Pure so the rules are testable without a database. Tracking can only move
// an order forward; manual corrections go through the status endpoint.
func planReconciliation(current models.OrderStatus, carrierStatus, statusDetail string) ([]store.StatusChange, string) {
	if current == models.OrderStatusCancelled {
		return nil, actionIgnored
	}
	target, ok := carrierStatusTargets[carrierStatus]
	if !ok {
		return nil, actionTrackingUpdated
	}
	if current.AtLeast(target) {
		return nil, actionNoChange
	}

	note := "Carrier status: " + carrierStatus
	if statusDetail != "" {
		note += " (" + statusDetail + ")"
	}

	var transitions []store.StatusChange
	if current.PreShipment() {
		// A pre-ship order seen by the carrier must have left the dock.
		transitions = append(transitions, store.StatusChange{
			Status: models.OrderStatusShipped,
			Note:   "First carrier scan",
		})
	}
	if target != models.OrderStatusShipped {
		transitions = append(transitions, store.StatusChange{
			Status: target,
			Note:   note,
		})
	}
	if len(transitions) == 0 {
		return nil, actionNoChange
	}
	return transitions, actionStatusUpdated
}

// notifyNeeded reports whether an applied tracking event warrants an
// outbound notification: either the order status moved or the raw carrier
// status string is new.
func notifyNeeded(action string, previousTracking, carrierStatus string) bool {
	return action == actionStatusUpdated || previousTracking != carrierStatus
}

// HandleTrackingEvent applies a carrier scan. Unknown tracking numbers are
// acknowledged rather than erred so the carrier does not retry forever.
func (s *WebhookService) HandleTrackingEvent(ctx context.Context, event *TrackingEvent) (*TrackingResult, error) {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleTrackingEvent")
	defer span.End()

	scan := event.Result
	if scan.TrackingCode == "" || scan.Status == "" {
		util.WebhookEventsTotal.WithLabelValues(ActionInvalidPayload).Inc()
		s.logger.Warn("tracking event missing tracking code or status",
			zap.String("description", event.Description))
		return &TrackingResult{Action: ActionInvalidPayload}, nil
	}

	order, err := s.store.GetOrderByTrackingNumber(ctx, scan.TrackingCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WebhookEventsTotal.WithLabelValues(actionOrderNotFound).Inc()
			s.logger.Warn("tracking event for unknown tracking number",
				zap.String("tracking_code", scan.TrackingCode))
			return &TrackingResult{Action: actionOrderNotFound}, nil
		}
		return nil, err
	}

	transitions, action := planReconciliation(order.Status, scan.Status, scan.StatusDetail)
	util.WebhookEventsTotal.WithLabelValues(action).Inc()

	if action == actionIgnored {
		return &TrackingResult{Action: action, OrderNumber: order.OrderNumber, Status: string(order.Status)}, nil
	}

	trackingURL := scan.PublicURL
	if trackingURL == "" {
		trackingURL = order.TrackingURL
	}
	updated, err := s.store.ApplyTrackingUpdate(ctx, order.ID, store.TrackingUpdate{
		TrackingStatus: scan.Status,
		TrackingURL:    trackingURL,
		Transitions:    transitions,
	})
	if err != nil {
		return nil, err
	}

	if notifyNeeded(action, order.TrackingStatus, scan.Status) {
		s.logger.Info("tracking event applied",
			zap.String("order_number", updated.OrderNumber),
			zap.String("carrier_status", scan.Status),
			zap.String("order_status", string(updated.Status)))
		s.publisher.PublishOrderEvent(ctx, models.EventTypeOrderStatusChanged, updated)
	}
	if action == actionStatusUpdated && updated.Status.DroppedOff() {
		s.sweepBatches(ctx, updated.ID)
	}
	return &TrackingResult{Action: action, OrderNumber: updated.OrderNumber, Status: string(updated.Status)}, nil
}

func (s *WebhookService) sweepBatches(ctx context.Context, orderID string) {
	done, err := s.store.MarkBatchesDoneForOrder(ctx, orderID)
	if err != nil {
		s.logger.Warn("batch done sweep failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	for i := range done {
		util.BatchesCompletedTotal.Inc()
		s.logger.Info("picking list done", zap.String("picking_number", done[i].PickingNumber))
		s.publisher.PublishBatchDone(ctx, &done[i])
	}
}

// NotifyOrder delivers the order's current snapshot to all configured
// webhook endpoints immediately, bypassing the event pipeline.
func (s *WebhookService) NotifyOrder(ctx context.Context, ref string) ([]notify.Result, error) {
	order, err := s.store.GetOrder(ctx, ref)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		order, err = s.store.GetOrderByNumber(ctx, ref)
		if err != nil {
			return nil, err
		}
	}
	return s.notifier.Send(ctx, models.NewOrderSnapshot(order)), nil
}
