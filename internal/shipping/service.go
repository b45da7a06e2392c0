package shipping

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storeengine/internal/common"
	"github.com/noah-isme/storeengine/internal/obs"
)

const tracerName = "github.com/noah-isme/storeengine/internal/shipping"

// Settings are the store wide shipping options.
type Settings struct {
	Enabled bool
	// AllowedCountries limits shipping destinations. Empty allows all.
	AllowedCountries []string
	// Debug disables the session rate cache.
	Debug         bool
	PriceDecimals int32
}

// Shipping computes the rates offered for cart packages.
type Shipping struct {
	Settings Settings
	Zones    *Zones
	Registry *Registry
	Store    ZoneStore
	Cache    SessionCache
	Tax      TaxResolver
	Logger   zerolog.Logger
}

// New wires a Shipping over store. Cache may be nil.
func New(settings Settings, store ZoneStore, registry *Registry, cache SessionCache, taxes TaxResolver, events Emitter, logger zerolog.Logger) *Shipping {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Shipping{
		Settings: settings,
		Zones:    &Zones{Store: store, Registry: registry, Events: events, Logger: logger},
		Registry: registry,
		Store:    store,
		Cache:    cache,
		Tax:      taxes,
		Logger:   logger,
	}
}

// CalculateShipping fills the Rates of every shippable package and returns
// them. Rates are reused from the session cache while the package and the
// shipping settings are unchanged.
func (s *Shipping) CalculateShipping(ctx context.Context, sessionID string, packages []Package) []Package {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "shipping.CalculateShipping")
	defer span.End()
	span.SetAttributes(attribute.Int("shipping.packages", len(packages)))

	if !s.Settings.Enabled || len(packages) == 0 {
		return packages
	}
	version, err := s.Store.Version(ctx)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("shipping settings version unavailable")
	}
	for i := range packages {
		pkg := &packages[i]
		if !s.IsPackageShippable(pkg) {
			pkg.Rates = nil
			continue
		}
		pkg.Rates = s.CalculatePackage(ctx, sessionID, i, pkg, version)
	}
	return packages
}

// CalculatePackage returns the rates for one package, consulting the session
// cache under index unless debug mode is on.
func (s *Shipping) CalculatePackage(ctx context.Context, sessionID string, index int, pkg *Package, version int64) []Rate {
	hash, err := PackageHash(pkg, version)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("hash shipping package")
	}
	useCache := s.Cache != nil && !s.Settings.Debug && sessionID != "" && hash != ""
	if useCache {
		cached, ok, err := s.Cache.Get(ctx, sessionID, index)
		switch {
		case err != nil:
			s.Logger.Warn().Err(err).Msg("read shipping rate cache")
		case ok && cached.Hash == hash:
			recordCache("hit")
			return cached.Rates
		}
		recordCache("miss")
	} else {
		recordCache("bypass")
	}

	rates, ok := s.ratesForPackage(ctx, pkg)

	// A failed zone lookup degrades to no rates for this call only.
	if useCache && ok {
		if err := s.Cache.Set(ctx, sessionID, index, CachedRates{Hash: hash, Rates: rates}); err != nil {
			s.Logger.Warn().Err(err).Msg("write shipping rate cache")
		}
	}
	return rates
}

// ratesForPackage reports false when the zone could not be resolved, in which
// case the empty result must not be cached.
func (s *Shipping) ratesForPackage(ctx context.Context, pkg *Package) ([]Rate, bool) {
	zone, err := s.Zones.GetZoneMatchingPackage(ctx, pkg)
	if err != nil {
		s.Logger.Warn().Err(err).Str("country", pkg.Destination.Country).Msg("shipping zone lookup failed")
		return nil, false
	}
	deps := Deps{Tax: s.Tax, PriceDecimals: s.Settings.PriceDecimals}
	var rates []Rate
	for _, cfg := range zone.EnabledMethods() {
		if len(pkg.ShipVia) > 0 && !containsString(pkg.ShipVia, cfg.MethodID) {
			continue
		}
		m, err := s.Registry.Build(cfg, deps)
		if err != nil {
			s.Logger.Warn().Err(err).Str("method", cfg.MethodID).Int64("instance_id", cfg.InstanceID).Msg("skip shipping method")
			continue
		}
		rates = MergeRates(rates, RatesForPackage(ctx, m, pkg)...)
	}
	return rates, true
}

// IsPackageShippable reports whether the destination country may be shipped
// to. A package without a country is always shippable.
func (s *Shipping) IsPackageShippable(pkg *Package) bool {
	country := strings.ToUpper(strings.TrimSpace(pkg.Destination.Country))
	if country == "" || len(s.Settings.AllowedCountries) == 0 {
		return true
	}
	for _, c := range s.Settings.AllowedCountries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// PackageHash identifies a package together with the shipping settings
// version. Rates already on the package are ignored.
func PackageHash(pkg *Package, version int64) (string, error) {
	clone := *pkg
	clone.Rates = nil
	raw, err := json.Marshal(clone)
	if err != nil {
		return "", err
	}
	return common.HashParts(string(raw), strconv.FormatInt(version, 10)), nil
}

func recordCache(result string) {
	if obs.ShippingRateCacheTotal != nil {
		obs.ShippingRateCacheTotal.WithLabelValues(result).Inc()
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
