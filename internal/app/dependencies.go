package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storeengine/internal/auth"
	"github.com/noah-isme/storeengine/internal/cart"
	"github.com/noah-isme/storeengine/internal/config"
	"github.com/noah-isme/storeengine/internal/db"
	"github.com/noah-isme/storeengine/internal/events"
	"github.com/noah-isme/storeengine/internal/lock"
	"github.com/noah-isme/storeengine/internal/money"
	"github.com/noah-isme/storeengine/internal/obs"
	"github.com/noah-isme/storeengine/internal/order"
	"github.com/noah-isme/storeengine/internal/ratelimit"
	"github.com/noah-isme/storeengine/internal/shipping"
	"github.com/noah-isme/storeengine/internal/tax"
	"github.com/noah-isme/storeengine/internal/totals"
)

// AdminScope is the token scope required by the administration API.
const AdminScope = "store:admin"

// Services is the wired domain layer shared by the api and worker binaries.
type Services struct {
	Bus          *events.Bus
	Tax          *tax.Calculator
	TaxRates     *tax.PGStore
	ShippingRepo *shipping.PGStore
	RateCache    shipping.RedisSessionCache
	Shipping     *shipping.Shipping
	Cart         *cart.Service
	OrderStore   *order.PGStore
	Orders       *order.Service
	Limiter      ratelimit.Limiter
	Verifier     *auth.Verifier
}

// Wire builds the domain services over already opened connections. tasks
// may be nil, in which case events are persisted but not queued.
func Wire(cfg *config.Config, pool db.DBTX, rdb redis.UniversalClient, tasks events.Enqueuer, logger zerolog.Logger) (*Services, error) {
	notifiers := []events.Notifier{}
	if tasks != nil {
		notifiers = append(notifiers, events.QueueNotifier{
			Client: tasks,
			Queue:  cfg.EventsQueue,
			Logger: logger.With().Str("component", "events").Logger(),
		})
	}
	bus := &events.Bus{Store: events.NewPGStore(pool), Notifiers: notifiers}

	taxRates := tax.NewPGStore(pool)
	calc := tax.NewCalculator(TaxSettings(cfg.Store), taxRates, logger.With().Str("component", "tax").Logger())

	shippingRepo := shipping.NewPGStore(pool)
	rateCache := shipping.RedisSessionCache{R: rdb, TTL: cfg.ShippingTTL}
	ship := shipping.New(ShippingSettings(cfg.Store), shippingRepo, shipping.NewRegistry(), rateCache, calc, bus,
		logger.With().Str("component", "shipping").Logger())

	orderStore := order.NewPGStore(pool)
	orders := &order.Service{
		Store:   orderStore,
		Locker:  lock.Locker{R: rdb, RetryBackoff: 50 * time.Millisecond, MaxWait: cfg.OrderLockTTL},
		Events:  bus,
		LockTTL: cfg.OrderLockTTL,
		Logger:  logger.With().Str("component", "order").Logger(),
	}

	rate, err := ratelimit.ParseRate(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("parse RATE_LIMIT: %w", err)
	}
	limiter, err := ratelimit.NewRedis(rdb, "storeengine:ratelimit", rate)
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, 30*time.Second)
	} else {
		logger.Warn().Msg("JWT_SECRET not set, admin routes disabled")
	}

	return &Services{
		Bus:          bus,
		Tax:          calc,
		TaxRates:     taxRates,
		ShippingRepo: shippingRepo,
		RateCache:    rateCache,
		Shipping:     ship,
		Cart:         cart.NewService(calc, ship, TotalsOptions(cfg.Store, logger), logger.With().Str("component", "cart").Logger()),
		OrderStore:   orderStore,
		Orders:       orders,
		Limiter:      limiter,
		Verifier:     verifier,
	}, nil
}

// TaxSettings maps the store configuration onto calculator settings.
func TaxSettings(s config.Store) tax.Settings {
	return tax.Settings{
		Enabled:          s.TaxEnabled,
		PricesIncludeTax: s.PricesIncludeTax,
		BasedOn:          s.TaxBasedOn,
		ShippingTaxClass: s.ShippingTaxClass,
		Classes:          s.TaxClasses,
		Base: tax.Location{
			Country:  s.BaseCountry,
			State:    s.BaseState,
			Postcode: s.BasePostcode,
			City:     s.BaseCity,
		},
		Rounding: money.ParseRoundingMode(s.TaxRoundingMode),
	}
}

// TotalsOptions maps the store configuration onto totals options.
func TotalsOptions(s config.Store, logger zerolog.Logger) totals.Options {
	opts := totals.DefaultOptions()
	opts.Precision = money.Precision{Decimals: s.PriceDecimals}
	opts.Rounding = totals.ItemTotals{
		RoundAtSubtotal: s.TaxRoundAtSubtotal,
		TaxRounding:     money.ParseRoundingMode(s.TaxRoundingMode),
	}
	opts.AdjustNonBaseLocationPrices = s.AdjustNonBaseLocationPrices
	opts.SequentialDiscounts = s.CalcDiscountsSequentially
	opts.Logger = logger.With().Str("component", "totals").Logger()
	return opts
}

// ShippingSettings maps the store configuration onto shipping settings.
func ShippingSettings(s config.Store) shipping.Settings {
	return shipping.Settings{
		Enabled:          s.ShippingEnabled,
		AllowedCountries: s.ShippingCountries,
		Debug:            s.ShippingDebug,
		PriceDecimals:    s.PriceDecimals,
	}
}

// OpenPostgres connects a traced pool and verifies it answers.
func OpenPostgres(ctx context.Context, databaseURL, appName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis connects an instrumented redis client and verifies it answers.
func OpenRedis(ctx context.Context, redisURL string, withMetrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if withMetrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// TaskRedis returns the asynq connection options for redisURL.
func TaskRedis(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for tasks: %w", err)
	}
	return opt, nil
}
