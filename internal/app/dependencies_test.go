package app_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/app"
	"github.com/noah-isme/storeengine/internal/config"
	"github.com/noah-isme/storeengine/internal/money"
)

func testConfig(t *testing.T, extra map[string]string) *config.Config {
	t.Helper()
	env := map[string]string{
		"DATABASE_URL": "postgres://localhost/store",
		"REDIS_URL":    "redis://localhost:6379/0",
	}
	for k, v := range extra {
		env[k] = v
	}
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	return cfg
}

func TestSettingsMapping(t *testing.T) {
	cfg := testConfig(t, map[string]string{
		"STORE_PRICE_DECIMALS":        "3",
		"STORE_TAX_ROUNDING_MODE":     "half_down",
		"STORE_TAX_ROUND_AT_SUBTOTAL": "true",
		"STORE_BASE_COUNTRY":          "gb",
		"STORE_SHIPPING_COUNTRIES":    "gb,ie",
		"STORE_SHIPPING_DEBUG":        "1",
	})

	ts := app.TaxSettings(cfg.Store)
	require.Equal(t, "GB", ts.Base.Country)
	require.Equal(t, money.HalfDown, ts.Rounding)
	require.True(t, ts.Enabled)

	opts := app.TotalsOptions(cfg.Store, zerolog.Nop())
	require.EqualValues(t, 3, opts.Precision.Decimals)
	require.True(t, opts.Rounding.RoundAtSubtotal)
	require.Equal(t, money.HalfDown, opts.Rounding.TaxRounding)
	require.True(t, opts.SequentialDiscounts)

	ss := app.ShippingSettings(cfg.Store)
	require.True(t, ss.Debug)
	require.Equal(t, []string{"GB", "IE"}, ss.AllowedCountries)
	require.EqualValues(t, 3, ss.PriceDecimals)
}

func TestWire(t *testing.T) {
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer pool.Close()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc, err := app.Wire(testConfig(t, nil), pool, rdb, nil, zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, svc.Verifier)
	require.Empty(t, svc.Bus.Notifiers)
	require.Same(t, svc.Tax, svc.Cart.Tax)
	require.NotNil(t, svc.Shipping.Zones)

	svc, err = app.Wire(testConfig(t, map[string]string{"JWT_SECRET": "s3cret"}), pool, rdb, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, svc.Verifier)

	_, err = app.Wire(testConfig(t, map[string]string{"RATE_LIMIT": "lots"}), pool, rdb, nil, zerolog.Nop())
	require.ErrorContains(t, err, "RATE_LIMIT")
}
