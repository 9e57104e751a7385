package store

import (
	"context"

	"order-management/internal/models"
)

// AppendTimeline records one order lifecycle event
func (s *Store) AppendTimeline(ctx context.Context, entry *models.TimelineEntry) error {
	query := `
		INSERT INTO order_timeline (order_id, event_id, event_type, from_status, to_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, recorded_at`

	return s.db.GetContext(ctx, entry, query,
		entry.OrderID, entry.EventID, entry.EventType, entry.FromStatus, entry.ToStatus)
}

// GetTimeline retrieves the recorded lifecycle of an order, oldest first
func (s *Store) GetTimeline(ctx context.Context, orderID int64) ([]models.TimelineEntry, error) {
	var entries []models.TimelineEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM order_timeline WHERE order_id = $1 ORDER BY recorded_at, id", orderID)
	return entries, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
