package shipping

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storeengine/internal/events"
	"github.com/noah-isme/storeengine/internal/geo"
	"github.com/noah-isme/storeengine/internal/obs"
)

// Validation errors returned by Zones.
var (
	ErrZoneNameRequired = errors.New("shipping: zone name is required")
	ErrInvalidSettings  = errors.New("shipping: invalid method settings")
)

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// SettingsChanged is the payload of the shipping.settings_changed event.
type SettingsChanged struct {
	Action     string `json:"action"`
	ZoneID     int64  `json:"zoneId"`
	InstanceID int64  `json:"instanceId,omitempty"`
}

// settingsAggregate is the fixed aggregate id of shipping settings events.
var settingsAggregate = uuid.NewSHA1(uuid.NameSpaceURL, []byte("storeengine:shipping-settings"))

// Zones manages shipping zones and resolves the zone of a package.
type Zones struct {
	Store    ZoneStore
	Registry *Registry
	Events   Emitter
	Logger   zerolog.Logger
}

// GetZones returns every stored zone in matching order.
func (z *Zones) GetZones(ctx context.Context) ([]Zone, error) {
	return z.Store.ListZones(ctx)
}

// GetZone returns the zone with id. Id 0 is the rest of world zone.
func (z *Zones) GetZone(ctx context.Context, id int64) (Zone, error) {
	return z.Store.GetZone(ctx, id)
}

// GetZoneByInstanceID returns the zone owning a method instance.
func (z *Zones) GetZoneByInstanceID(ctx context.Context, instanceID int64) (Zone, error) {
	m, err := z.Store.GetMethod(ctx, instanceID)
	if err != nil {
		return Zone{}, err
	}
	return z.Store.GetZone(ctx, m.ZoneID)
}

// SaveZone creates a new zone or updates an existing one. Zone 0 is refused.
func (z *Zones) SaveZone(ctx context.Context, zone *Zone) error {
	if zone.IsRestOfWorld() {
		return ErrRestOfWorldImmutable
	}
	if strings.TrimSpace(zone.Name) == "" {
		return ErrZoneNameRequired
	}
	action := "zone_updated"
	if zone.IsNew() {
		action = "zone_created"
		if err := z.Store.CreateZone(ctx, zone); err != nil {
			return err
		}
	} else {
		if len(zone.Changes()) == 0 {
			return nil
		}
		if err := z.Store.UpdateZone(ctx, zone); err != nil {
			return err
		}
	}
	zone.ApplyChanges()
	z.emit(ctx, SettingsChanged{Action: action, ZoneID: zone.ID})
	return nil
}

// DeleteZone removes a zone with its locations and methods.
func (z *Zones) DeleteZone(ctx context.Context, id int64) error {
	if id == RestOfWorldID {
		return ErrRestOfWorldImmutable
	}
	if err := z.Store.DeleteZone(ctx, id); err != nil {
		return err
	}
	z.emit(ctx, SettingsChanged{Action: "zone_deleted", ZoneID: id})
	return nil
}

// AddMethod attaches a new enabled instance of methodID to a zone, after
// the existing ones.
func (z *Zones) AddMethod(ctx context.Context, zoneID int64, methodID string) (ZoneMethod, error) {
	if z.Registry == nil || !z.Registry.Has(methodID) {
		return ZoneMethod{}, fmt.Errorf("%w: %s", ErrUnknownMethod, methodID)
	}
	zone, err := z.Store.GetZone(ctx, zoneID)
	if err != nil {
		return ZoneMethod{}, err
	}
	order := 0
	for _, m := range zone.Methods {
		if m.Order >= order {
			order = m.Order + 1
		}
	}
	m, err := z.Store.AddMethod(ctx, ZoneMethod{ZoneID: zoneID, MethodID: methodID, Order: order, Enabled: true, Settings: map[string]string{}})
	if err != nil {
		return ZoneMethod{}, err
	}
	z.emit(ctx, SettingsChanged{Action: "method_added", ZoneID: zoneID, InstanceID: m.InstanceID})
	return m, nil
}

// UpdateMethod stores new settings for a method instance. The settings must
// build a valid method.
func (z *Zones) UpdateMethod(ctx context.Context, m ZoneMethod) error {
	current, err := z.Store.GetMethod(ctx, m.InstanceID)
	if err != nil {
		return err
	}
	m.ZoneID = current.ZoneID
	m.MethodID = current.MethodID
	if z.Registry != nil {
		if _, err := z.Registry.Build(m, Deps{}); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
	}
	if err := z.Store.UpdateMethod(ctx, m); err != nil {
		return err
	}
	z.emit(ctx, SettingsChanged{Action: "method_updated", ZoneID: m.ZoneID, InstanceID: m.InstanceID})
	return nil
}

// DeleteMethod removes a method instance.
func (z *Zones) DeleteMethod(ctx context.Context, instanceID int64) error {
	m, err := z.Store.GetMethod(ctx, instanceID)
	if err != nil {
		return err
	}
	if err := z.Store.DeleteMethod(ctx, instanceID); err != nil {
		return err
	}
	z.emit(ctx, SettingsChanged{Action: "method_deleted", ZoneID: m.ZoneID, InstanceID: instanceID})
	return nil
}

// GetZoneMatchingPackage returns the first zone, by zone order then id,
// whose locations accept the package destination. A zone matches when one of
// its country, state or continent rules matches, or when it has none of
// those. A zone with postcode rules also needs one of them to match. Zone 0
// is returned when nothing matches.
func (z *Zones) GetZoneMatchingPackage(ctx context.Context, pkg *Package) (Zone, error) {
	zones, err := z.Store.ListZones(ctx)
	if err != nil {
		return Zone{}, err
	}
	dest := pkg.Destination
	for _, candidate := range zones {
		if ZoneMatches(&candidate, dest) {
			recordZoneMatch(candidate.ID)
			return candidate, nil
		}
	}
	rest, err := z.Store.GetZone(ctx, RestOfWorldID)
	if err != nil {
		return Zone{}, err
	}
	recordZoneMatch(RestOfWorldID)
	return rest, nil
}

// ZoneMatches reports whether zone accepts dest. Region rules (country, state,
// continent) match when any of them does. When the zone has postcode rules the
// destination postcode must also match one of them, so a zone listing several
// postcodes serves each of them.
func ZoneMatches(zone *Zone, dest Destination) bool {
	country := strings.ToUpper(strings.TrimSpace(dest.Country))
	state := strings.ToUpper(strings.TrimSpace(dest.State))
	continent := geo.ContinentForCountry(country)

	regionRules := false
	regionMatch := false
	var postcodes []string
	for _, loc := range zone.Locations {
		code := strings.ToUpper(loc.Code)
		switch loc.Type {
		case LocationCountry:
			regionRules = true
			regionMatch = regionMatch || code == country
		case LocationState:
			regionRules = true
			regionMatch = regionMatch || (state != "" && code == country+":"+state)
		case LocationContinent:
			regionRules = true
			regionMatch = regionMatch || (continent != "" && code == continent)
		case LocationPostcode:
			postcodes = append(postcodes, loc.Code)
		}
	}
	if regionRules && !regionMatch {
		return false
	}
	if len(postcodes) > 0 && !geo.MatchAny(dest.Postcode, country, postcodes) {
		return false
	}
	return true
}

func recordZoneMatch(id int64) {
	if obs.ShippingZoneMatchTotal != nil {
		obs.ShippingZoneMatchTotal.WithLabelValues(strconv.FormatInt(id, 10)).Inc()
	}
}

func (z *Zones) emit(ctx context.Context, payload SettingsChanged) {
	z.Logger.Info().Str("action", payload.Action).Int64("zone_id", payload.ZoneID).Msg("shipping settings changed")
	if z.Events == nil {
		return
	}
	if _, err := z.Events.Emit(ctx, events.TopicShippingSettingsChanged, settingsAggregate, payload); err != nil {
		z.Logger.Warn().Err(err).Str("action", payload.Action).Msg("emit shipping settings event")
	}
}
