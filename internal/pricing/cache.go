package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/print24/pricing/internal/resilience"
)

const (
	quoteKeyPrefix   = "price:q:"
	productIdxPrefix = "price:idx:product:"
	segZoneIdxPrefix = "price:idx:segzone:"
)

// Fingerprint derives the cache key for a fully determined pricing input.
// Every price-affecting context field participates.
func Fingerprint(pctx Context, req ResolveRequest, currency string) string {
	h := sha256.New()
	write := func(parts ...string) {
		for _, p := range parts {
			h.Write([]byte(p))
			h.Write([]byte{0})
		}
	}
	write("v1", req.ProductID.String(), fmt.Sprintf("%d", req.Quantity), currency)
	// Pincode participates even though the zone usually subsumes it:
	// COMBINATION condition trees can match on the raw pincode.
	write(pctx.Segment.ID.String(), pctx.Segment.Code, pctx.Country, pctx.Pincode)
	if pctx.Zone != nil {
		write(pctx.Zone.ID.String())
	} else {
		write("no-zone")
	}
	if pctx.AccountID != nil {
		// USER-scope modifiers make the account itself price-affecting.
		write(pctx.AccountID.String())
	} else {
		write("guest")
	}
	attrs := make([]string, 0, len(req.Attributes))
	for _, a := range req.Attributes {
		attrs = append(attrs, strings.ToLower(strings.TrimSpace(a.AttributeType))+"="+strings.ToLower(strings.TrimSpace(a.Value))+"#"+a.PricingKey)
	}
	sort.Strings(attrs)
	write(attrs...)
	return hex.EncodeToString(h.Sum(nil))
}

// QuoteCache memoizes resolver output per context fingerprint. It is purely
// an optimization: any fault degrades to a miss and the caller recomputes.
type QuoteCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
	// onOp observes cache operations for metrics: op is get/set/invalidate,
	// result is hit/miss/ok/error.
	onOp    func(op, result string)
	breaker *resilience.Breaker
}

// NewQuoteCache constructs the cache helper.
func NewQuoteCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger, onOp func(op, result string)) *QuoteCache {
	if onOp == nil {
		onOp = func(string, string) {}
	}
	return &QuoteCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "quote_cache").Logger(),
		onOp:   onOp,
	}
}

// WithBreaker shields the quote hot path behind a circuit breaker. While the
// breaker is open, Get and Set short-circuit to a miss instead of waiting on
// a struggling Redis. Invalidation paths stay direct: skipping them would
// serve stale prices.
func (c *QuoteCache) WithBreaker(b *resilience.Breaker) *QuoteCache {
	c.breaker = b
	return c
}

// Get returns the cached result for the fingerprint, if present.
func (c *QuoteCache) Get(ctx context.Context, fingerprint string) (Result, bool) {
	if c == nil || c.client == nil || fingerprint == "" {
		return Result{}, false
	}
	if c.breaker != nil && !c.breaker.Allow(ctx) {
		c.onOp("get", "bypass")
		return Result{}, false
	}
	data, err := c.client.Get(ctx, quoteKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.reportBreaker(ctx, false)
			c.logger.Warn().Err(err).Msg("cache get failed, recomputing")
			c.onOp("get", "error")
			return Result{}, false
		}
		c.reportBreaker(ctx, true)
		c.onOp("get", "miss")
		return Result{}, false
	}
	c.reportBreaker(ctx, true)
	var cached cachedResult
	if err := json.Unmarshal(data, &cached); err != nil {
		c.onOp("get", "error")
		return Result{}, false
	}
	c.onOp("get", "hit")
	return cached.Result, true
}

// Set stores the result and registers it in the product and segment+zone
// index sets used for targeted invalidation.
func (c *QuoteCache) Set(ctx context.Context, fingerprint string, result Result, segmentID uuid.UUID, zoneID *uuid.UUID) {
	if c == nil || c.client == nil || fingerprint == "" {
		return
	}
	if c.breaker != nil && !c.breaker.Allow(ctx) {
		c.onOp("set", "bypass")
		return
	}
	data, err := json.Marshal(cachedResult{Result: result})
	if err != nil {
		c.onOp("set", "error")
		return
	}
	key := quoteKeyPrefix + fingerprint
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	productIdx := productIdxPrefix + result.ProductID.String()
	pipe.SAdd(ctx, productIdx, key)
	if c.ttl > 0 {
		pipe.Expire(ctx, productIdx, c.ttl)
	}
	if zoneID != nil {
		segZoneIdx := segZoneIdxKey(segmentID, *zoneID)
		pipe.SAdd(ctx, segZoneIdx, key)
		if c.ttl > 0 {
			pipe.Expire(ctx, segZoneIdx, c.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.reportBreaker(ctx, false)
		c.logger.Warn().Err(err).Msg("cache set failed")
		c.onOp("set", "error")
		return
	}
	c.reportBreaker(ctx, true)
	c.onOp("set", "ok")
}

func (c *QuoteCache) reportBreaker(ctx context.Context, success bool) {
	if c.breaker != nil {
		c.breaker.Report(ctx, success)
	}
}

// InvalidateAll removes every cached quote. It is the safe default when the
// blast radius of a reference data change is unclear.
func (c *QuoteCache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	for _, prefix := range []string{quoteKeyPrefix, productIdxPrefix, segZoneIdxPrefix} {
		if err := c.deleteByPrefix(ctx, prefix); err != nil {
			c.onOp("invalidate", "error")
			return fmt.Errorf("pricing: invalidate all: %w", err)
		}
	}
	c.onOp("invalidate", "ok")
	return nil
}

// InvalidateProduct removes every cached quote for the product.
func (c *QuoteCache) InvalidateProduct(ctx context.Context, productID uuid.UUID) error {
	return c.invalidateIndex(ctx, productIdxPrefix+productID.String())
}

// InvalidateSegmentZone removes every cached quote priced for the
// segment+zone pair.
func (c *QuoteCache) InvalidateSegmentZone(ctx context.Context, segmentID, zoneID uuid.UUID) error {
	return c.invalidateIndex(ctx, segZoneIdxKey(segmentID, zoneID))
}

func (c *QuoteCache) invalidateIndex(ctx context.Context, indexKey string) error {
	if c == nil || c.client == nil {
		return nil
	}
	members, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil && err != redis.Nil {
		c.onOp("invalidate", "error")
		return fmt.Errorf("pricing: read index %s: %w", indexKey, err)
	}
	if len(members) > 0 {
		if err := c.client.Del(ctx, members...).Err(); err != nil {
			c.onOp("invalidate", "error")
			return fmt.Errorf("pricing: delete quotes: %w", err)
		}
	}
	if err := c.client.Del(ctx, indexKey).Err(); err != nil {
		c.onOp("invalidate", "error")
		return fmt.Errorf("pricing: delete index: %w", err)
	}
	c.onOp("invalidate", "ok")
	return nil
}

func (c *QuoteCache) deleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

func segZoneIdxKey(segmentID, zoneID uuid.UUID) string {
	return segZoneIdxPrefix + segmentID.String() + ":" + zoneID.String()
}

// cachedResult wraps the stored payload so the schema can grow.
type cachedResult struct {
	Result Result `json:"result"`
}
