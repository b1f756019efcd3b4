package invalidate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/print24/pricing/internal/events"
	"github.com/print24/pricing/internal/pricing"
)

func testCache(t *testing.T) *pricing.QuoteCache {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return pricing.NewQuoteCache(client, 0, zerolog.Nop(), nil)
}

func cachedQuote(t *testing.T, cache *pricing.QuoteCache, fp string, productID, segmentID, zoneID uuid.UUID) {
	t.Helper()
	cache.Set(context.Background(), fp, pricing.Result{
		ProductID: productID,
		Quote:     pricing.Quote{Subtotal: decimal.RequireFromString("100"), Currency: "INR"},
	}, segmentID, &zoneID)
	if _, ok := cache.Get(context.Background(), fp); !ok {
		t.Fatal("seed quote did not stick")
	}
}

func TestProcessTaskProductScope(t *testing.T) {
	cache := testCache(t)
	productID := uuid.New()
	cachedQuote(t, cache, "fp", productID, uuid.New(), uuid.New())

	task, err := NewTask(Payload{Scope: ScopeProduct, ProductID: &productID})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	h := Handler{Cache: cache, Logger: zerolog.Nop()}
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, ok := cache.Get(context.Background(), "fp"); ok {
		t.Fatal("quote survived product invalidation")
	}
}

func TestProcessTaskRejectsMalformedPayload(t *testing.T) {
	h := Handler{Cache: testCache(t), Logger: zerolog.Nop()}
	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskType, []byte("not json")))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestProcessTaskUnknownScopeSkipsRetry(t *testing.T) {
	data, _ := json.Marshal(Payload{Scope: "galaxy"})
	h := Handler{Cache: testCache(t), Logger: zerolog.Nop()}
	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskType, data))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestCacheNotifierModifierChangeNarrowsToProduct(t *testing.T) {
	cache := testCache(t)
	productID := uuid.New()
	otherID := uuid.New()
	cachedQuote(t, cache, "fp-target", productID, uuid.New(), uuid.New())
	cachedQuote(t, cache, "fp-other", otherID, uuid.New(), uuid.New())

	payload, _ := json.Marshal(map[string]any{"productId": productID})
	n := CacheNotifier{Cache: cache, Logger: zerolog.Nop()}
	err := n.Notify(context.Background(), events.Event{
		Topic:       events.TopicModifierChanged,
		AggregateID: uuid.New(),
		Payload:     payload,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if _, ok := cache.Get(context.Background(), "fp-target"); ok {
		t.Fatal("target product quote survived")
	}
	if _, ok := cache.Get(context.Background(), "fp-other"); !ok {
		t.Fatal("unrelated product quote was dropped")
	}
}

func TestCacheNotifierZoneChangeFlushesAll(t *testing.T) {
	cache := testCache(t)
	cachedQuote(t, cache, "fp-a", uuid.New(), uuid.New(), uuid.New())
	cachedQuote(t, cache, "fp-b", uuid.New(), uuid.New(), uuid.New())

	n := CacheNotifier{Cache: cache, Logger: zerolog.Nop()}
	err := n.Notify(context.Background(), events.Event{
		Topic:       events.TopicZoneChanged,
		AggregateID: uuid.New(),
		Payload:     []byte("{}"),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	for _, fp := range []string{"fp-a", "fp-b"} {
		if _, ok := cache.Get(context.Background(), fp); ok {
			t.Fatalf("%s survived zone change", fp)
		}
	}
}

func TestCacheNotifierIgnoresUnknownTopic(t *testing.T) {
	cache := testCache(t)
	cachedQuote(t, cache, "fp", uuid.New(), uuid.New(), uuid.New())

	n := CacheNotifier{Cache: cache, Logger: zerolog.Nop()}
	if err := n.Notify(context.Background(), events.Event{Topic: "order.created"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if _, ok := cache.Get(context.Background(), "fp"); !ok {
		t.Fatal("unrelated topic dropped the cache")
	}
}
