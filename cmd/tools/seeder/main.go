package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/print24/pricing/internal/events"
	"github.com/print24/pricing/internal/invalidate"
	"github.com/print24/pricing/internal/pricing"
	"github.com/print24/pricing/internal/repo"
)

// Fixed IDs keep reseeding idempotent and make the demo data easy to
// reference from smoke tests and curl sessions.
var (
	zoneDelhi   = uuid.MustParse("6f3a2b10-0001-4000-8000-000000000001")
	zoneMumbai  = uuid.MustParse("6f3a2b10-0001-4000-8000-000000000002")
	zoneSouth   = uuid.MustParse("6f3a2b10-0001-4000-8000-000000000003")
	segRetail   = uuid.MustParse("6f3a2b10-0002-4000-8000-000000000001")
	segReseller = uuid.MustParse("6f3a2b10-0002-4000-8000-000000000002")
	segCorp     = uuid.MustParse("6f3a2b10-0002-4000-8000-000000000003")
	prodCards   = uuid.MustParse("6f3a2b10-0003-4000-8000-000000000001")
	prodFlyers  = uuid.MustParse("6f3a2b10-0003-4000-8000-000000000002")
	prodMugs    = uuid.MustParse("6f3a2b10-0003-4000-8000-000000000003")
	prodTees    = uuid.MustParse("6f3a2b10-0003-4000-8000-000000000004")
	acctStudio  = uuid.MustParse("6f3a2b10-0004-4000-8000-000000000001")
	acctAgency  = uuid.MustParse("6f3a2b10-0004-4000-8000-000000000002")
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedZones(ctx, pool)
	seedSegments(ctx, pool)
	seedProducts(ctx, pool)
	seedAccounts(ctx, pool)
	modifierIDs := seedModifiers(ctx, pool)

	announceChanges(ctx, pool, modifierIDs)

	log.Println("Seeding completed successfully!")
}

func seedZones(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding zones...")
	zones := []struct {
		ID       uuid.UUID
		Name     string
		Level    string
		Priority int
		Code     string
	}{
		{zoneDelhi, "Delhi NCR", "CITY", 30, "delhi-ncr"},
		{zoneMumbai, "Mumbai Metro", "CITY", 30, "mumbai-metro"},
		{zoneSouth, "South India", "REGION", 10, "south-india"},
	}
	for _, z := range zones {
		_, err := pool.Exec(ctx, `
			INSERT INTO zones (id, name, level, priority, code, active)
			VALUES ($1, $2, $3, $4, $5, true)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, level = EXCLUDED.level,
				priority = EXCLUDED.priority, code = EXCLUDED.code,
				active = true, updated_at = now()
		`, z.ID, z.Name, z.Level, z.Priority, z.Code)
		if err != nil {
			log.Fatalf("Failed to seed zone %s: %v", z.Code, err)
		}
	}

	mappings := []struct {
		ZoneID        uuid.UUID
		Country       string
		Pincode       string
		Start         string
		End           string
	}{
		{zoneDelhi, "IN", "", "110001", "110096"},
		{zoneDelhi, "IN", "201301", "", ""},
		{zoneMumbai, "IN", "", "400001", "400104"},
		{zoneSouth, "IN", "", "500001", "691599"},
	}
	if _, err := pool.Exec(ctx, `DELETE FROM zone_mappings WHERE zone_id = ANY($1)`,
		[]uuid.UUID{zoneDelhi, zoneMumbai, zoneSouth}); err != nil {
		log.Fatalf("Failed to reset zone mappings: %v", err)
	}
	for _, m := range mappings {
		_, err := pool.Exec(ctx, `
			INSERT INTO zone_mappings (zone_id, country_code, pincode, start_pincode, end_pincode)
			VALUES ($1, $2, $3, $4, $5)
		`, m.ZoneID, m.Country, m.Pincode, m.Start, m.End)
		if err != nil {
			log.Fatalf("Failed to seed zone mapping: %v", err)
		}
	}
}

func seedSegments(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding segments...")
	segments := []struct {
		ID           uuid.UUID
		Code         string
		Name         string
		Tier         int
		Default      bool
		CreditDays   int
		PaymentTerms string
	}{
		{segRetail, "RETAIL", "Retail", 1, true, 0, "PREPAID"},
		{segReseller, "RESELLER", "Reseller", 2, false, 15, "NET_15"},
		{segCorp, "CORPORATE", "Corporate", 3, false, 30, "NET_30"},
	}
	for _, s := range segments {
		_, err := pool.Exec(ctx, `
			INSERT INTO segments (id, code, name, tier, is_default, credit_days, payment_terms)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				code = EXCLUDED.code, name = EXCLUDED.name, tier = EXCLUDED.tier,
				is_default = EXCLUDED.is_default, credit_days = EXCLUDED.credit_days,
				payment_terms = EXCLUDED.payment_terms
		`, s.ID, s.Code, s.Name, s.Tier, s.Default, s.CreditDays, s.PaymentTerms)
		if err != nil {
			log.Fatalf("Failed to seed segment %s: %v", s.Code, err)
		}
	}
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding products...")
	products := []struct {
		ID        uuid.UUID
		Title     string
		BasePrice string
		MinQty    int
		Countries []string
		Excluded  []uuid.UUID
	}{
		{prodCards, "Business Cards (100 pack)", "299.00", 1, []string{"IN"}, nil},
		{prodFlyers, "A5 Flyers", "4.50", 100, []string{"IN"}, nil},
		{prodMugs, "Ceramic Mug 325ml", "249.00", 1, []string{"IN", "AE"}, nil},
		{prodTees, "Round Neck T-Shirt", "399.00", 1, []string{"IN"}, []uuid.UUID{zoneSouth}},
	}
	for _, p := range products {
		excluded := p.Excluded
		if excluded == nil {
			excluded = []uuid.UUID{}
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, title, base_price, active, min_quantity, allowed_countries, excluded_zone_ids)
			VALUES ($1, $2, $3, true, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title, base_price = EXCLUDED.base_price, active = true,
				min_quantity = EXCLUDED.min_quantity,
				allowed_countries = EXCLUDED.allowed_countries,
				excluded_zone_ids = EXCLUDED.excluded_zone_ids,
				updated_at = now()
		`, p.ID, p.Title, mustDecimal(p.BasePrice), p.MinQty, p.Countries, excluded)
		if err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Title, err)
		}
	}

	attributes := []struct {
		ProductID uuid.UUID
		Type      string
		Value     string
		Behavior  string
		Amount    string
	}{
		{prodCards, "paper", "matte-300gsm", "FLAT", "0"},
		{prodCards, "paper", "textured-ivory", "FLAT", "80.00"},
		{prodCards, "finish", "spot-uv", "FLAT", "120.00"},
		{prodFlyers, "paper", "art-130gsm", "FLAT", "0"},
		{prodFlyers, "paper", "art-170gsm", "FLAT", "1.25"},
		{prodTees, "size", "xxl", "FLAT", "50.00"},
		{prodTees, "print", "both-sides", "PERCENT", "20"},
	}
	for _, a := range attributes {
		_, err := pool.Exec(ctx, `
			INSERT INTO attribute_prices (product_id, attribute_type, value, behavior, amount)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (product_id, attribute_type, value) DO UPDATE SET
				behavior = EXCLUDED.behavior, amount = EXCLUDED.amount
		`, a.ProductID, a.Type, a.Value, a.Behavior, mustDecimal(a.Amount))
		if err != nil {
			log.Fatalf("Failed to seed attribute price %s/%s: %v", a.Type, a.Value, err)
		}
	}
}

func seedAccounts(ctx context.Context, pool *pgxpool.Pool) {
	log.Println("Seeding accounts...")
	accounts := []struct {
		ID           uuid.UUID
		Type         string
		SegmentID    uuid.UUID
		Tier         int
		Pincode      string
		Country      string
		CreditDays   int
		PaymentTerms string
	}{
		{acctStudio, "business", segReseller, 2, "110002", "IN", 15, "NET_15"},
		{acctAgency, "business", segCorp, 3, "400050", "IN", 30, "NET_30"},
	}
	for _, a := range accounts {
		_, err := pool.Exec(ctx, `
			INSERT INTO accounts (id, type, segment_id, tier, pincode, country, credit_days, payment_terms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				type = EXCLUDED.type, segment_id = EXCLUDED.segment_id, tier = EXCLUDED.tier,
				pincode = EXCLUDED.pincode, country = EXCLUDED.country,
				credit_days = EXCLUDED.credit_days, payment_terms = EXCLUDED.payment_terms
		`, a.ID, a.Type, a.SegmentID, a.Tier, a.Pincode, a.Country, a.CreditDays, a.PaymentTerms)
		if err != nil {
			log.Fatalf("Failed to seed account %s: %v", a.ID, err)
		}
	}
}

type seedModifier struct {
	ID        uuid.UUID
	Name      string
	Scope     string
	ZoneID    *uuid.UUID
	SegmentID *uuid.UUID
	ProductID *uuid.UUID
	Kind      string
	Value     string
	AppliesOn string
	MinQty    int
	Stackable bool
	Exclusive bool
	Priority  int
	MaxCap    string
}

func seedModifiers(ctx context.Context, pool *pgxpool.Pool) []seedModifier {
	log.Println("Seeding price modifiers...")
	modifiers := []seedModifier{
		{
			ID:        uuid.MustParse("6f3a2b10-0005-4000-8000-000000000001"),
			Name:      "Festive season 5% off",
			Scope:     "GLOBAL",
			Kind:      "PERCENT_DEC",
			Value:     "5",
			AppliesOn: "SUBTOTAL",
			Stackable: true,
			Priority:  10,
		},
		{
			ID:        uuid.MustParse("6f3a2b10-0005-4000-8000-000000000002"),
			Name:      "Reseller trade discount",
			Scope:     "SEGMENT",
			SegmentID: &segReseller,
			Kind:      "PERCENT_DEC",
			Value:     "10",
			AppliesOn: "SUBTOTAL",
			Stackable: true,
			Priority:  50,
			MaxCap:    "2000.00",
		},
		{
			ID:        uuid.MustParse("6f3a2b10-0005-4000-8000-000000000003"),
			Name:      "Flyer bulk run discount",
			Scope:     "PRODUCT",
			ProductID: &prodFlyers,
			Kind:      "PERCENT_DEC",
			Value:     "15",
			AppliesOn: "SUBTOTAL",
			MinQty:    500,
			Stackable: true,
			Priority:  40,
		},
		{
			ID:        uuid.MustParse("6f3a2b10-0005-4000-8000-000000000004"),
			Name:      "Delhi NCR same-city handling",
			Scope:     "ZONE",
			ZoneID:    &zoneDelhi,
			Kind:      "FLAT_DEC",
			Value:     "25.00",
			AppliesOn: "SUBTOTAL",
			Stackable: true,
			Priority:  20,
		},
		{
			ID:        uuid.MustParse("6f3a2b10-0005-4000-8000-000000000005"),
			Name:      "Corporate contract pricing",
			Scope:     "SEGMENT",
			SegmentID: &segCorp,
			Kind:      "PERCENT_DEC",
			Value:     "18",
			AppliesOn: "SUBTOTAL",
			Stackable: false,
			Exclusive: true,
			Priority:  90,
		},
	}
	for _, m := range modifiers {
		maxCap := m.MaxCap
		if maxCap == "" {
			maxCap = "0"
		}
		_, err := pool.Exec(ctx, `
			INSERT INTO price_modifiers
				(id, name, scope, zone_id, segment_id, product_id, kind, value, applies_on,
				 min_quantity, active, stackable, exclusive, priority, max_discount_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, scope = EXCLUDED.scope, zone_id = EXCLUDED.zone_id,
				segment_id = EXCLUDED.segment_id, product_id = EXCLUDED.product_id,
				kind = EXCLUDED.kind, value = EXCLUDED.value, applies_on = EXCLUDED.applies_on,
				min_quantity = EXCLUDED.min_quantity, active = true,
				stackable = EXCLUDED.stackable, exclusive = EXCLUDED.exclusive,
				priority = EXCLUDED.priority, max_discount_amount = EXCLUDED.max_discount_amount
		`, m.ID, m.Name, m.Scope, m.ZoneID, m.SegmentID, m.ProductID, m.Kind,
			mustDecimal(m.Value), m.AppliesOn, m.MinQty, m.Stackable, m.Exclusive,
			m.Priority, mustDecimal(maxCap))
		if err != nil {
			log.Fatalf("Failed to seed modifier %s: %v", m.Name, err)
		}
	}
	return modifiers
}

// announceChanges pushes change events through the bus so running API
// replicas drop any quotes cached against the previous seed.
func announceChanges(ctx context.Context, pool *pgxpool.Pool, modifiers []seedModifier) {
	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL == "" {
		log.Println("REDIS_URL not set, skipping cache invalidation events")
		return
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	taskClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB,
	})
	defer taskClient.Close()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("component", "seeder").Logger()
	quoteCache := pricing.NewQuoteCache(redisClient, 0, logger, nil)

	bus := &events.Bus{
		Store: repo.NewEventStore(pool),
		Notifiers: []events.Notifier{
			invalidate.CacheNotifier{Cache: quoteCache, Logger: logger},
			invalidate.QueueNotifier{Enqueuer: invalidate.Enqueuer{Client: taskClient}},
		},
	}

	for _, productID := range []uuid.UUID{prodCards, prodFlyers, prodMugs, prodTees} {
		if _, err := bus.Emit(ctx, events.TopicProductRepriced, productID, map[string]any{"source": "seeder"}); err != nil {
			log.Printf("Failed to emit reprice event for %s: %v", productID, err)
		}
	}
	for _, m := range modifiers {
		payload := map[string]any{"source": "seeder"}
		if m.ProductID != nil {
			payload["productId"] = m.ProductID
		}
		if _, err := bus.Emit(ctx, events.TopicModifierChanged, m.ID, payload); err != nil {
			log.Printf("Failed to emit modifier event for %s: %v", m.Name, err)
		}
	}
}

func mustDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Fatalf("Invalid decimal %q: %v", raw, err)
	}
	return d
}
