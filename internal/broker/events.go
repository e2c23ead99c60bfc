package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"warehouse-service/internal/models"
	"warehouse-service/internal/util"
)

// EventPublisher wraps the producer with warehouse event construction. A nil
// publisher is valid and drops events, so callers never branch on whether
// Kafka is configured.
type EventPublisher struct {
	producer *Producer
}

func NewEventPublisher(producer *Producer) *EventPublisher {
	if producer == nil {
		return nil
	}
	return &EventPublisher{producer: producer}
}

// PublishOrderEvent emits an order lifecycle event keyed by order id.
func (p *EventPublisher) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) {
	if p == nil {
		return
	}
	event := models.OrderEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now().UTC(),
		},
		OrderID:    order.ID,
		WebhookURL: order.WebhookURL,
		Order:      models.NewOrderSnapshot(order),
	}
	if err := p.producer.PublishEvent(ctx, order.ID, event); err != nil {
		util.GetLogger().Warn("failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

// PublishBatchDone emits a completion event for a picking list.
func (p *EventPublisher) PublishBatchDone(ctx context.Context, batch *models.PickingList) {
	if p == nil {
		return
	}
	event := models.BatchDoneEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeBatchDone,
			Timestamp: time.Now().UTC(),
		},
		PickingListID: batch.ID,
		PickingNumber: batch.PickingNumber,
	}
	if err := p.producer.PublishEvent(ctx, batch.ID, event); err != nil {
		util.GetLogger().Warn("failed to publish batch done event",
			zap.String("picking_list_id", batch.ID),
			zap.Error(err))
	}
}
