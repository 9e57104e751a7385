package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"order-management/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTimelineStore struct {
	entries   []models.TimelineEntry
	processed map[string]string
}

func newMemTimelineStore() *memTimelineStore {
	return &memTimelineStore{processed: make(map[string]string)}
}

func (s *memTimelineStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := s.processed[eventID]
	return ok, nil
}

func (s *memTimelineStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	s.processed[eventID] = eventType
	return nil
}

func (s *memTimelineStore) AppendTimeline(_ context.Context, entry *models.TimelineEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func baseEvent(eventID, eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   eventID,
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func TestTimelineRecordsLifecycle(t *testing.T) {
	store := newMemTimelineStore()
	w := NewTimelineWorker(nil, store)
	ctx := context.Background()

	err := w.eventHandler.HandleMessage(ctx, message(t, &models.OrderCreatedEvent{
		BaseEvent: baseEvent("evt-1", models.EventTypeOrderCreated),
		OrderID:   42,
		ClientID:  7,
		Total:     3000,
	}))
	require.NoError(t, err)

	err = w.eventHandler.HandleMessage(ctx, message(t, &models.OrderStatusChangedEvent{
		BaseEvent:  baseEvent("evt-2", models.EventTypeOrderStatusChanged),
		OrderID:    42,
		FromStatus: string(models.OrderStatusPending),
		ToStatus:   string(models.OrderStatusConfirmed),
	}))
	require.NoError(t, err)

	err = w.eventHandler.HandleMessage(ctx, message(t, &models.OrderDeletedEvent{
		BaseEvent: baseEvent("evt-3", models.EventTypeOrderDeleted),
		OrderID:   42,
	}))
	require.NoError(t, err)

	require.Len(t, store.entries, 3)

	assert.Equal(t, models.EventTypeOrderCreated, store.entries[0].EventType)
	assert.Equal(t, string(models.OrderStatusPending), store.entries[0].ToStatus)

	assert.Equal(t, string(models.OrderStatusPending), store.entries[1].FromStatus)
	assert.Equal(t, string(models.OrderStatusConfirmed), store.entries[1].ToStatus)

	assert.Equal(t, models.EventTypeOrderDeleted, store.entries[2].EventType)

	for _, e := range store.entries {
		assert.Equal(t, int64(42), e.OrderID)
	}
}

func TestTimelineSkipsRedeliveredEvents(t *testing.T) {
	store := newMemTimelineStore()
	w := NewTimelineWorker(nil, store)
	ctx := context.Background()

	msg := message(t, &models.OrderCreatedEvent{
		BaseEvent: baseEvent("evt-dup", models.EventTypeOrderCreated),
		OrderID:   42,
	})

	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	require.NoError(t, w.eventHandler.HandleMessage(ctx, msg))

	assert.Len(t, store.entries, 1)
}

func TestTimelineIgnoresUnknownEventTypes(t *testing.T) {
	store := newMemTimelineStore()
	w := NewTimelineWorker(nil, store)
	ctx := context.Background()

	msg := message(t, map[string]string{
		"event_id":   "evt-x",
		"event_type": "SOMETHING_ELSE",
	})

	assert.NoError(t, w.eventHandler.HandleMessage(ctx, msg))
	assert.Empty(t, store.entries)
}
