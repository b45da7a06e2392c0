package shipping

import (
	"errors"
	"fmt"
	"strings"
)

// RestOfWorldID is the id of the implicit zone covering every location no
// other zone matches. It is never stored and never deleted.
const RestOfWorldID int64 = 0

// RestOfWorldName is the display name of zone 0.
const RestOfWorldName = "Locations not covered by your other zones"

// LocationType classifies a zone location rule.
type LocationType string

// Zone location types.
const (
	LocationPostcode  LocationType = "postcode"
	LocationState     LocationType = "state"
	LocationCountry   LocationType = "country"
	LocationContinent LocationType = "continent"
)

var (
	// ErrInvalidLocationType is returned for a location type outside the known set.
	ErrInvalidLocationType = errors.New("shipping: invalid zone location type")
	// ErrZoneNotFound is returned when a zone id does not exist.
	ErrZoneNotFound = errors.New("shipping: zone not found")
	// ErrMethodNotFound is returned when a method instance does not exist.
	ErrMethodNotFound = errors.New("shipping: method instance not found")
	// ErrRestOfWorldImmutable is returned when zone 0 would be saved or deleted.
	ErrRestOfWorldImmutable = errors.New("shipping: the rest of world zone cannot be saved or deleted")
)

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	switch t {
	case LocationPostcode, LocationState, LocationCountry, LocationContinent:
		return true
	}
	return false
}

// ZoneLocation is one location rule of a zone. State codes are written as
// "COUNTRY:STATE".
type ZoneLocation struct {
	Code string       `json:"code" validate:"required"`
	Type LocationType `json:"type" validate:"required,oneof=postcode state country continent"`
}

// ZoneMethod is a method instance stored against a zone.
type ZoneMethod struct {
	InstanceID  int64             `json:"instanceId"`
	ZoneID      int64             `json:"zoneId"`
	MethodID    string            `json:"methodId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Order       int               `json:"order"`
	Enabled     bool              `json:"enabled"`
	Settings    map[string]string `json:"settings"`
}

// Zone groups locations that share shipping methods. Setters record which
// properties changed so saving only rewrites what moved.
type Zone struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Order     int            `json:"order"`
	Locations []ZoneLocation `json:"locations"`
	Methods   []ZoneMethod   `json:"methods,omitempty"`

	restOfWorld bool
	changes     map[string]bool
}

// Change keys reported by Changes.
const (
	ChangeName      = "zone_name"
	ChangeOrder     = "zone_order"
	ChangeLocations = "zone_locations"
)

// NewZone returns an unsaved zone.
func NewZone(name string, order int) *Zone {
	z := &Zone{}
	z.SetName(name)
	z.SetOrder(order)
	return z
}

// NewRestOfWorldZone returns zone 0.
func NewRestOfWorldZone() *Zone {
	return &Zone{ID: RestOfWorldID, Name: RestOfWorldName, restOfWorld: true}
}

// IsRestOfWorld reports whether z is zone 0.
func (z *Zone) IsRestOfWorld() bool { return z.restOfWorld }

// IsNew reports whether z has not been stored yet.
func (z *Zone) IsNew() bool { return z.ID == 0 && !z.restOfWorld }

func (z *Zone) markChanged(key string) {
	if z.changes == nil {
		z.changes = make(map[string]bool)
	}
	z.changes[key] = true
}

// Changed reports whether key was modified since the last save.
func (z *Zone) Changed(key string) bool { return z.changes[key] }

// Changes lists modified properties in a stable order.
func (z *Zone) Changes() []string {
	var out []string
	for _, key := range []string{ChangeName, ChangeOrder, ChangeLocations} {
		if z.changes[key] {
			out = append(out, key)
		}
	}
	return out
}

// ApplyChanges clears the change set after a save.
func (z *Zone) ApplyChanges() { z.changes = nil }

// SetName renames the zone.
func (z *Zone) SetName(name string) {
	name = strings.TrimSpace(name)
	if name != z.Name {
		z.Name = name
		z.markChanged(ChangeName)
	}
}

// SetOrder moves the zone in the matching order.
func (z *Zone) SetOrder(order int) {
	if order != z.Order {
		z.Order = order
		z.markChanged(ChangeOrder)
	}
}

// AddLocation appends a location rule.
func (z *Zone) AddLocation(code string, typ LocationType) error {
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidLocationType, typ)
	}
	code = strings.TrimSpace(code)
	if typ == LocationPostcode {
		code = strings.ToUpper(code)
	}
	if code == "" {
		return nil
	}
	for _, loc := range z.Locations {
		if loc.Code == code && loc.Type == typ {
			return nil
		}
	}
	z.Locations = append(z.Locations, ZoneLocation{Code: code, Type: typ})
	z.markChanged(ChangeLocations)
	return nil
}

// ClearLocations removes every location, or only those of the given types.
func (z *Zone) ClearLocations(types ...LocationType) {
	if len(z.Locations) == 0 {
		return
	}
	if len(types) == 0 {
		z.Locations = nil
		z.markChanged(ChangeLocations)
		return
	}
	kept := z.Locations[:0:0]
	for _, loc := range z.Locations {
		drop := false
		for _, t := range types {
			drop = drop || loc.Type == t
		}
		if !drop {
			kept = append(kept, loc)
		}
	}
	if len(kept) != len(z.Locations) {
		z.Locations = kept
		z.markChanged(ChangeLocations)
	}
}

// SetLocations replaces every location. Replacing with an identical set is
// not a change.
func (z *Zone) SetLocations(locations []ZoneLocation) error {
	next := &Zone{}
	for _, loc := range locations {
		if err := next.AddLocation(loc.Code, loc.Type); err != nil {
			return err
		}
	}
	if sameLocations(z.Locations, next.Locations) {
		return nil
	}
	z.Locations = next.Locations
	z.markChanged(ChangeLocations)
	return nil
}

func sameLocations(a, b []ZoneLocation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// LocationsOfType returns the codes of every location of typ.
func (z *Zone) LocationsOfType(typ LocationType) []string {
	var out []string
	for _, loc := range z.Locations {
		if loc.Type == typ {
			out = append(out, loc.Code)
		}
	}
	return out
}

// EnabledMethods returns the enabled method instances ordered by method order.
func (z *Zone) EnabledMethods() []ZoneMethod {
	var out []ZoneMethod
	for _, m := range z.Methods {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}
