package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/app"
	"github.com/noah-isme/storeengine/internal/config"
	"github.com/noah-isme/storeengine/internal/db"
	"github.com/noah-isme/storeengine/internal/obs"
	"github.com/noah-isme/storeengine/internal/shipping"
	"github.com/noah-isme/storeengine/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := app.OpenPostgres(ctx, cfg.DatabaseURL, "storeengine-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	zones := &shipping.Zones{Store: shipping.NewPGStore(pool), Registry: shipping.NewRegistry(), Logger: logger}
	if err := seedZones(ctx, zones, logger); err != nil {
		logger.Error().Err(err).Msg("seed shipping zones")
		os.Exit(1)
	}
	if err := seedTaxRates(ctx, tax.NewPGStore(pool), logger); err != nil {
		logger.Error().Err(err).Msg("seed tax rates")
		os.Exit(1)
	}
	logger.Info().Msg("seeding completed")
}

type zoneSeed struct {
	name      string
	locations []shipping.ZoneLocation
	methods   []methodSeed
}

type methodSeed struct {
	id       string
	settings map[string]string
}

var demoZones = []zoneSeed{
	{
		name: "Domestic",
		locations: []shipping.ZoneLocation{
			{Code: "US", Type: shipping.LocationCountry},
		},
		methods: []methodSeed{
			{id: shipping.MethodFlatRate, settings: map[string]string{"title": "Standard", "cost": "5", "per_item_cost": "0.5", "tax_status": "taxable"}},
			{id: shipping.MethodFreeShipping, settings: map[string]string{"title": "Free over 50", "requires": shipping.RequiresMinAmount, "min_amount": "50"}},
		},
	},
	{
		name: "California pickup",
		locations: []shipping.ZoneLocation{
			{Code: "US:CA", Type: shipping.LocationState},
			{Code: "90001...96162", Type: shipping.LocationPostcode},
		},
		methods: []methodSeed{
			{id: shipping.MethodLocalPickup, settings: map[string]string{"title": "Pickup in store", "cost": "0"}},
			{id: shipping.MethodFlatRate, settings: map[string]string{"title": "Courier", "cost": "7.5", "tax_status": "taxable"}},
		},
	},
	{
		name: "Europe",
		locations: []shipping.ZoneLocation{
			{Code: "EU", Type: shipping.LocationContinent},
		},
		methods: []methodSeed{
			{id: shipping.MethodFlatRate, settings: map[string]string{"title": "International", "cost": "15", "tax_status": "none"}},
		},
	},
}

func seedZones(ctx context.Context, zones *shipping.Zones, logger zerolog.Logger) error {
	existing, err := zones.GetZones(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]bool, len(existing))
	for _, z := range existing {
		names[z.Name] = true
	}
	for i, seed := range demoZones {
		if names[seed.name] {
			logger.Info().Str("zone", seed.name).Msg("zone exists, skipping")
			continue
		}
		zone := shipping.NewZone(seed.name, i)
		if err := zone.SetLocations(seed.locations); err != nil {
			return err
		}
		if err := zones.SaveZone(ctx, zone); err != nil {
			return err
		}
		for _, ms := range seed.methods {
			m, err := zones.AddMethod(ctx, zone.ID, ms.id)
			if err != nil {
				return err
			}
			m.Settings = ms.settings
			if err := zones.UpdateMethod(ctx, m); err != nil {
				return err
			}
		}
		logger.Info().Str("zone", seed.name).Int64("id", zone.ID).Int("methods", len(seed.methods)).Msg("zone seeded")
	}
	return nil
}

var demoRates = []tax.Rate{
	{Country: "US", State: "CA", Rate: decimal.RequireFromString("7.25"), Name: "CA State Tax", Priority: 1, Shipping: true},
	{Country: "US", State: "CA", Postcodes: []string{"90001...90899"}, Rate: decimal.RequireFromString("2.25"), Name: "LA County", Priority: 2, Shipping: true, Order: 1},
	{Country: "GB", Rate: decimal.NewFromInt(20), Name: "VAT", Priority: 1, Shipping: true},
	{Country: "GB", Rate: decimal.NewFromInt(5), Name: "Reduced VAT", Priority: 1, Shipping: true, Class: "reduced-rate"},
	{Country: "GB", Rate: decimal.Zero, Name: "Zero VAT", Priority: 1, Class: "zero-rate"},
}

func seedTaxRates(ctx context.Context, store *tax.PGStore, logger zerolog.Logger) error {
	for _, class := range []string{"", "reduced-rate", "zero-rate"} {
		current, err := store.RatesForClass(ctx, class)
		if err != nil {
			return err
		}
		if len(current) > 0 {
			logger.Info().Str("class", class).Msg("tax rates exist, skipping")
			return nil
		}
	}
	for _, r := range demoRates {
		id, err := store.Insert(ctx, r)
		if err != nil {
			return err
		}
		logger.Info().Int64("id", id).Str("name", r.Name).Msg("tax rate seeded")
	}
	return nil
}
