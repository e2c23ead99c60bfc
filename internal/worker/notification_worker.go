package worker

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"warehouse-service/internal/broker"
	"warehouse-service/internal/models"
	"warehouse-service/internal/notify"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"
)

// NotificationWorker consumes order events and delivers webhook
// notifications. Processed event ids are recorded in the database so a
// redelivered Kafka message never notifies twice.
type NotificationWorker struct {
	consumer *broker.Consumer
	store    *store.Store
	notifier *notify.Notifier
	logger   *zap.Logger
}

func NewNotificationWorker(consumer *broker.Consumer, st *store.Store, notifier *notify.Notifier) *NotificationWorker {
	return &NotificationWorker{
		consumer: consumer,
		store:    st,
		notifier: notifier,
		logger:   util.GetLogger(),
	}
}

// Start blocks consuming events until the context is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

func (w *NotificationWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var base models.BaseEvent
	if err := json.Unmarshal(msg.Value, &base); err != nil {
		w.logger.Warn("skipping malformed event", zap.Error(err))
		return nil
	}

	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Debug("event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	switch base.EventType {
	case models.EventTypeOrderCreated, models.EventTypeOrderStatusChanged, models.EventTypeOrderCancelled:
		var event models.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Warn("skipping malformed order event", zap.Error(err))
			return nil
		}
		results := w.notifier.Send(ctx, event.Order)
		for _, r := range results {
			if !r.Success {
				w.logger.Warn("notification not delivered",
					zap.String("url", r.URL),
					zap.String("order_number", event.Order.OrderNumber),
					zap.String("error", r.Error))
			}
		}
	case models.EventTypeBatchDone:
		var event models.BatchDoneEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			w.logger.Warn("skipping malformed batch event", zap.Error(err))
			return nil
		}
		w.logger.Info("picking list completed",
			zap.String("picking_number", event.PickingNumber))
	default:
		w.logger.Debug("ignoring event type", zap.String("event_type", base.EventType))
	}

	return w.store.MarkEventProcessed(ctx, base.EventID, base.EventType)
}
