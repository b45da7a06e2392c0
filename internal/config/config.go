package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
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
	LogFormat          string
	LogLevel           string
	// JWTSecret signs admin tokens. Admin routes answer 503 without it.
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	ShippingTTL    time.Duration
	OrderLockTTL   time.Duration
	IdempotencyTTL time.Duration
	// RateLimit uses the limiter format, e.g. "120-M".
	RateLimit    string
	EventsQueue  string
	WorkerConcur int
	Store        Store
	Obs          Obs
}

// Obs controls logging sinks, metrics and tracing.
type Obs struct {
	MetricsNamespace string
	Prometheus       bool
	MetricsBuckets   string
	Tracing          bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Store holds the store settings consumed by tax, totals and shipping.
type Store struct {
	PriceDecimals               int32
	TaxEnabled                  bool
	PricesIncludeTax            bool
	DisplayPricesIncTax         bool
	TaxRoundAtSubtotal          bool
	TaxRoundingMode             string
	TaxBasedOn                  string
	ShippingTaxClass            string
	TaxClasses                  []string
	BaseCountry                 string
	BaseState                   string
	BasePostcode                string
	BaseCity                    string
	AdjustNonBaseLocationPrices bool
	CalcDiscountsSequentially   bool
	ShippingEnabled             bool
	ShippingCountries           []string
	ShippingDebug               bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		LogFormat:          valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:           valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          valueOrDefault(k.String("JWT_ISSUER"), "storeengine"),
		JWTAudience:        valueOrDefault(k.String("JWT_AUDIENCE"), "storeengine-admin"),
		ShippingTTL:        parseDuration(k.String("SHIPPING_CACHE_TTL"), "2h"),
		OrderLockTTL:       parseDuration(k.String("ORDER_LOCK_TTL"), "10s"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
		EventsQueue:        valueOrDefault(k.String("EVENTS_QUEUE"), "events"),
		WorkerConcur:       parseInt(k.String("WORKER_CONCURRENCY"), 5),
		Store: Store{
			PriceDecimals:               int32(parseInt(k.String("STORE_PRICE_DECIMALS"), 2)),
			TaxEnabled:                  parseBoolDefault(k.String("STORE_TAX_ENABLED"), true),
			PricesIncludeTax:            parseBool(k.String("STORE_PRICES_INCLUDE_TAX")),
			DisplayPricesIncTax:         parseBool(k.String("STORE_DISPLAY_PRICES_INC_TAX")),
			TaxRoundAtSubtotal:          parseBool(k.String("STORE_TAX_ROUND_AT_SUBTOTAL")),
			TaxRoundingMode:             valueOrDefault(k.String("STORE_TAX_ROUNDING_MODE"), "half_up"),
			TaxBasedOn:                  valueOrDefault(k.String("STORE_TAX_BASED_ON"), "shipping"),
			ShippingTaxClass:            valueOrDefault(k.String("STORE_SHIPPING_TAX_CLASS"), "inherit"),
			TaxClasses:                  splitAndTrim(k.String("STORE_TAX_CLASSES")),
			BaseCountry:                 strings.ToUpper(strings.TrimSpace(k.String("STORE_BASE_COUNTRY"))),
			BaseState:                   strings.ToUpper(strings.TrimSpace(k.String("STORE_BASE_STATE"))),
			BasePostcode:                strings.TrimSpace(k.String("STORE_BASE_POSTCODE")),
			BaseCity:                    strings.TrimSpace(k.String("STORE_BASE_CITY")),
			AdjustNonBaseLocationPrices: parseBoolDefault(k.String("STORE_ADJUST_NON_BASE_LOCATION_PRICES"), true),
			CalcDiscountsSequentially:   parseBoolDefault(k.String("STORE_CALC_DISCOUNTS_SEQUENTIALLY"), true),
			ShippingEnabled:             parseBoolDefault(k.String("STORE_SHIPPING_ENABLED"), true),
			ShippingCountries:           upperAll(splitAndTrim(k.String("STORE_SHIPPING_COUNTRIES"))),
			ShippingDebug:               parseBool(k.String("STORE_SHIPPING_DEBUG")),
		},
		Obs: Obs{
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "storeengine"),
			Prometheus:       parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			Tracing:          parseBoolDefault(k.String("OBS_ENABLE_TRACING"), true),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.Store.PriceDecimals < 0 || cfg.Store.PriceDecimals > 8 {
		return nil, fmt.Errorf("STORE_PRICE_DECIMALS out of range: %d", cfg.Store.PriceDecimals)
	}
	switch cfg.Store.TaxBasedOn {
	case "shipping", "billing", "base":
	default:
		return nil, fmt.Errorf("STORE_TAX_BASED_ON must be shipping, billing or base, got %q", cfg.Store.TaxBasedOn)
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
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

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseBoolDefault(value string, fallback bool) bool {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return parseBool(value)
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func upperAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToUpper(v)
	}
	return values
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
