package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storeengine/internal/db"
)

// PGStore persists events in the domain_events table.
type PGStore struct {
	pool db.DBTX
}

// NewPGStore constructs a PostgreSQL backed event store.
func NewPGStore(pool db.DBTX) *PGStore {
	return &PGStore{pool: pool}
}

// InsertEvent implements EventStore.
func (s *PGStore) InsertEvent(ctx context.Context, ev Event) (Event, error) {
	err := s.pool.QueryRow(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5) RETURNING occurred_at`,
		ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt).Scan(&ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert domain event: %w", err)
	}
	return ev, nil
}

// LogNotifier writes every event to the logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, ev Event) error {
	n.Logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID.String()).
		RawJSON("payload", ev.Payload).
		Msg("domain_event")
	return nil
}
