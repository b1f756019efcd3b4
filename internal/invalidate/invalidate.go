// Package invalidate propagates reference data changes to the quote cache.
// In-process changes invalidate synchronously through the event bus; changes
// from other processes (admin tooling, seeders) arrive as asynq tasks.
package invalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/print24/pricing/internal/events"
	"github.com/print24/pricing/internal/lock"
	"github.com/print24/pricing/internal/obs"
	"github.com/print24/pricing/internal/pricing"
)

// TaskType is the asynq task name for cache invalidation.
const TaskType = "pricing:invalidate"

// Invalidation scopes.
const (
	ScopeAll         = "all"
	ScopeProduct     = "product"
	ScopeSegmentZone = "segment-zone"
)

// Payload describes one invalidation request.
type Payload struct {
	Scope     string     `json:"scope"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
	SegmentID *uuid.UUID `json:"segmentId,omitempty"`
	ZoneID    *uuid.UUID `json:"zoneId,omitempty"`
}

// NewTask builds an asynq task carrying the payload.
func NewTask(p Payload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("invalidate: marshal payload: %w", err)
	}
	return asynq.NewTask(TaskType, data, asynq.MaxRetry(5)), nil
}

// Enqueuer hands invalidation work to the task queue.
type Enqueuer struct {
	Client *asynq.Client
}

// Enqueue schedules one invalidation.
func (e Enqueuer) Enqueue(ctx context.Context, p Payload) error {
	if e.Client == nil {
		return nil
	}
	task, err := NewTask(p)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("invalidate: enqueue: %w", err)
	}
	return nil
}

// Handler processes invalidation tasks against the quote cache.
type Handler struct {
	Cache  *pricing.QuoteCache
	Logger zerolog.Logger
	// Locker single-flights full flushes across worker replicas. A full
	// flush walks the keyspace with SCAN, so concurrent flushes only add
	// Redis load without removing anything extra.
	Locker  lock.Locker
	LockTTL time.Duration
}

// ProcessTask implements asynq.Handler.
func (h Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p Payload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		// Malformed payloads never become processable; skip the retries.
		return fmt.Errorf("invalidate: unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.dispatch(ctx, p); err != nil {
		h.Logger.Error().Err(err).Str("scope", p.Scope).Msg("cache invalidation failed")
		return err
	}
	if obs.CacheInvalidationsTotal != nil {
		obs.CacheInvalidationsTotal.WithLabelValues(p.Scope).Inc()
	}
	h.Logger.Info().Str("scope", p.Scope).Msg("cache invalidated")
	return nil
}

func (h Handler) dispatch(ctx context.Context, p Payload) error {
	if p.Scope == ScopeAll && h.Locker.R != nil {
		return h.Locker.WithLock(ctx, "price:flush:all", h.LockTTL, func(ctx context.Context) error {
			return apply(ctx, h.Cache, p)
		})
	}
	return apply(ctx, h.Cache, p)
}

func apply(ctx context.Context, cache *pricing.QuoteCache, p Payload) error {
	switch p.Scope {
	case ScopeAll:
		return cache.InvalidateAll(ctx)
	case ScopeProduct:
		if p.ProductID == nil {
			return fmt.Errorf("invalidate: product scope without productId: %w", asynq.SkipRetry)
		}
		return cache.InvalidateProduct(ctx, *p.ProductID)
	case ScopeSegmentZone:
		if p.SegmentID == nil || p.ZoneID == nil {
			return fmt.Errorf("invalidate: segment-zone scope without ids: %w", asynq.SkipRetry)
		}
		return cache.InvalidateSegmentZone(ctx, *p.SegmentID, *p.ZoneID)
	}
	return fmt.Errorf("invalidate: unknown scope %q: %w", p.Scope, asynq.SkipRetry)
}

// CacheNotifier invalidates the quote cache synchronously when a change
// event is emitted in-process.
type CacheNotifier struct {
	Cache  *pricing.QuoteCache
	Logger zerolog.Logger
}

// Notify implements events.Notifier.
func (n CacheNotifier) Notify(ctx context.Context, event events.Event) error {
	p, ok := payloadForTopic(event)
	if !ok {
		return nil
	}
	return apply(ctx, n.Cache, p)
}

// QueueNotifier forwards change events to the invalidation task queue so
// other replicas drop their cached quotes too.
type QueueNotifier struct {
	Enqueuer Enqueuer
}

// Notify implements events.Notifier.
func (n QueueNotifier) Notify(ctx context.Context, event events.Event) error {
	p, ok := payloadForTopic(event)
	if !ok {
		return nil
	}
	return n.Enqueuer.Enqueue(ctx, p)
}

// payloadForTopic maps a change topic to the narrowest safe invalidation.
// Zone and segment edits can shift zone resolution itself, so they flush
// everything.
func payloadForTopic(event events.Event) (Payload, bool) {
	switch event.Topic {
	case events.TopicProductRepriced:
		id := event.AggregateID
		return Payload{Scope: ScopeProduct, ProductID: &id}, true
	case events.TopicModifierChanged, events.TopicModifierDeleted:
		var body struct {
			ProductID *uuid.UUID `json:"productId"`
			SegmentID *uuid.UUID `json:"segmentId"`
			ZoneID    *uuid.UUID `json:"zoneId"`
		}
		if err := json.Unmarshal(event.Payload, &body); err == nil {
			if body.ProductID != nil {
				return Payload{Scope: ScopeProduct, ProductID: body.ProductID}, true
			}
			if body.SegmentID != nil && body.ZoneID != nil {
				return Payload{Scope: ScopeSegmentZone, SegmentID: body.SegmentID, ZoneID: body.ZoneID}, true
			}
		}
		return Payload{Scope: ScopeAll}, true
	case events.TopicZoneChanged, events.TopicSegmentChanged:
		return Payload{Scope: ScopeAll}, true
	}
	return Payload{}, false
}
