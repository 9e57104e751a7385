package worker

import (
	"context"
	"fmt"

	"order-management/internal/broker"
	"order-management/internal/models"
	"order-management/internal/util"

	"go.uber.org/zap"
)

// TimelineStore persists timeline entries with processed-event
// idempotency
type TimelineStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	AppendTimeline(ctx context.Context, entry *models.TimelineEntry) error
}

// TimelineWorker consumes order lifecycle events and records them as
// the order's timeline. Consumption is idempotent: redelivered events
// are skipped via the processed_events table.
type TimelineWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        TimelineStore
	logger       *zap.Logger
}

// NewTimelineWorker creates a new timeline worker
func NewTimelineWorker(consumer *broker.Consumer, store TimelineStore) *TimelineWorker {
	w := &TimelineWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderCreated(w.handleOrderCreated)
	eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	eventHandler.OnOrderDeleted(w.handleOrderDeleted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *TimelineWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting timeline worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *TimelineWorker) Stop() error {
	w.logger.Info("Stopping timeline worker")
	return w.consumer.Close()
}

func (w *TimelineWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return w.record(ctx, event.BaseEvent, &models.TimelineEntry{
		OrderID:   event.OrderID,
		EventID:   event.EventID,
		EventType: event.EventType,
		ToStatus:  string(models.OrderStatusPending),
	})
}

func (w *TimelineWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return w.record(ctx, event.BaseEvent, &models.TimelineEntry{
		OrderID:    event.OrderID,
		EventID:    event.EventID,
		EventType:  event.EventType,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
	})
}

func (w *TimelineWorker) handleOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error {
	return w.record(ctx, event.BaseEvent, &models.TimelineEntry{
		OrderID:   event.OrderID,
		EventID:   event.EventID,
		EventType: event.EventType,
	})
}

func (w *TimelineWorker) record(ctx context.Context, base models.BaseEvent, entry *models.TimelineEntry) error {
	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	if err := w.store.AppendTimeline(ctx, entry); err != nil {
		return fmt.Errorf("failed to append timeline: %w", err)
	}

	if err := w.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	util.TimelineEventsTotal.WithLabelValues(base.EventType).Inc()
	w.logger.Info("Timeline entry recorded",
		zap.Int64("order_id", entry.OrderID),
		zap.String("type", base.EventType))
	return nil
}
