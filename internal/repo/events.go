package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/print24/pricing/internal/events"
)

// EventStore implements events.EventStore against Postgres.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore constructs an EventStore backed by a pgx connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// InsertEvent persists one change event and returns the stored row.
func (s *EventStore) InsertEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	if s == nil || s.pool == nil {
		return events.Event{}, ErrStoreUnavailable
	}
	ev := events.Event{Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.pool.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3) RETURNING id, occurred_at`, topic, aggregateID, payload).Scan(&ev.ID, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("repo: insert event: %w", err)
	}
	return ev, nil
}
