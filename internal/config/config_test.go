package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/store",
		"REDIS_URL":    "redis://localhost:6379/0",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 2*time.Hour, cfg.ShippingTTL)
	require.Equal(t, "120-M", cfg.RateLimit)

	s := cfg.Store
	require.EqualValues(t, 2, s.PriceDecimals)
	require.True(t, s.TaxEnabled)
	require.True(t, s.AdjustNonBaseLocationPrices)
	require.True(t, s.CalcDiscountsSequentially)
	require.True(t, s.ShippingEnabled)
	require.Equal(t, "inherit", s.ShippingTaxClass)
	require.Equal(t, "shipping", s.TaxBasedOn)
	require.Empty(t, s.ShippingCountries)

	require.Equal(t, "storeengine", cfg.Obs.MetricsNamespace)
	require.Equal(t, "otlp", cfg.Obs.TracingExporter)
	require.InDelta(t, 1.0, cfg.Obs.SamplingRatio, 1e-9)
}

func TestLoadStoreOverrides(t *testing.T) {
	env := baseEnv()
	env["STORE_PRICE_DECIMALS"] = "3"
	env["STORE_TAX_ENABLED"] = "false"
	env["STORE_TAX_CLASSES"] = "reduced-rate, zero-rate"
	env["STORE_SHIPPING_COUNTRIES"] = "us,ca"
	env["STORE_BASE_COUNTRY"] = "gb"
	env["STORE_CALC_DISCOUNTS_SEQUENTIALLY"] = "no"
	env["SHIPPING_CACHE_TTL"] = "not-a-duration"

	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	s := cfg.Store
	require.EqualValues(t, 3, s.PriceDecimals)
	require.False(t, s.TaxEnabled)
	require.False(t, s.CalcDiscountsSequentially)
	require.Equal(t, []string{"reduced-rate", "zero-rate"}, s.TaxClasses)
	require.Equal(t, []string{"US", "CA"}, s.ShippingCountries)
	require.Equal(t, "GB", s.BaseCountry)
	require.Equal(t, 2*time.Hour, cfg.ShippingTTL)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"DATABASE_URL": "", "REDIS_URL": "redis://x"})
	require.ErrorContains(t, err, "DATABASE_URL")

	env := baseEnv()
	env["STORE_TAX_BASED_ON"] = "planet"
	_, err = config.LoadForTests(env)
	require.ErrorContains(t, err, "STORE_TAX_BASED_ON")
}
