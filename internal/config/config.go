package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// JWT parsing for account extraction. Empty secret disables token parsing
	// and every request prices as a guest.
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Pricing defaults used when a request carries no usable location.
	DefaultPincode string
	DefaultCountry string
	Currency       string
	TaxPercent     string

	QuoteCacheTTL time.Duration

	// Quote endpoint rate limiting (sliding window per client IP).
	QuoteRateMax    int
	QuoteRateWindow time.Duration

	// Admin surface protection.
	AdminToken string
	// AdminRate uses the limiter "<count>-<period>" notation, e.g. "60-M".
	AdminRate string

	// Circuit breaker guarding the quote cache's Redis round trips.
	CircuitCacheMinReq      int
	CircuitCacheFailureRate float64
	CircuitCacheOpenFor     time.Duration

	// Distributed lock used to single-flight full cache flushes.
	LockTTL          time.Duration
	LockRetryBackoff time.Duration

	// Geo-IP anchor tables, "name=pincode" pairs. Configuration data, not code.
	GeoIPCityPincodes   map[string]string
	GeoIPRegionPincodes map[string]string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                  valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                    valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:             k.String("DATABASE_URL"),
		RedisURL:                k.String("REDIS_URL"),
		CORSAllowedOrigins:      splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		JWTSecret:               k.String("JWT_SECRET"),
		JWTIssuer:               strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:             strings.TrimSpace(k.String("JWT_AUDIENCE")),
		DefaultPincode:          valueOrDefault(strings.TrimSpace(k.String("PRICING_DEFAULT_PINCODE")), "110001"),
		DefaultCountry:          valueOrDefault(strings.TrimSpace(k.String("PRICING_DEFAULT_COUNTRY")), "IN"),
		Currency:                valueOrDefault(strings.TrimSpace(k.String("PRICING_CURRENCY")), "INR"),
		TaxPercent:              valueOrDefault(strings.TrimSpace(k.String("PRICING_TAX_PERCENT")), "18"),
		QuoteCacheTTL:           parseDuration(k.String("PRICING_QUOTE_CACHE_TTL"), "15m"),
		QuoteRateMax:            intOrDefault(k.Int("PRICING_QUOTE_RATE_MAX"), 120),
		QuoteRateWindow:         parseDuration(k.String("PRICING_QUOTE_RATE_WINDOW"), "1m"),
		AdminToken:              strings.TrimSpace(k.String("ADMIN_API_TOKEN")),
		AdminRate:               valueOrDefault(strings.TrimSpace(k.String("ADMIN_RATE_LIMIT")), "60-M"),
		CircuitCacheMinReq:      intOrDefault(k.Int("CIRCUIT_CACHE_MIN_REQUESTS"), 20),
		CircuitCacheFailureRate: floatOrDefault(k.Float64("CIRCUIT_CACHE_FAILURE_RATE"), 0.5),
		CircuitCacheOpenFor:     parseDuration(k.String("CIRCUIT_CACHE_OPEN_FOR"), "30s"),
		LockTTL:                 parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff:        parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		GeoIPCityPincodes:       parsePairs(k.String("GEOIP_CITY_PINCODES")),
		GeoIPRegionPincodes:     parsePairs(k.String("GEOIP_REGION_PINCODES")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parsePairs decodes "key=value,key=value" lists. Keys are lowercased so
// lookups are case-insensitive.
func parsePairs(value string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		key, val, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		if key != "" && val != "" {
			out[key] = val
		}
	}
	return out
}

func intOrDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}

func floatOrDefault(value, fallback float64) float64 {
	if value > 0 {
		return value
	}
	return fallback
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
