package shipping

import (
	"context"
	"sort"
	"sync"
)

// ZoneStore persists zones, their locations and method instances. Every
// mutation bumps the shipping settings version in the same critical section
// or transaction, so a reader that sees the new data also sees the new version.
type ZoneStore interface {
	// ListZones returns stored zones ordered by zone order then id. Zone 0 is
	// not included.
	ListZones(ctx context.Context) ([]Zone, error)
	GetZone(ctx context.Context, id int64) (Zone, error)
	CreateZone(ctx context.Context, z *Zone) error
	// UpdateZone writes name and order and rewrites the location set only
	// when z reports a location change.
	UpdateZone(ctx context.Context, z *Zone) error
	DeleteZone(ctx context.Context, id int64) error

	GetMethod(ctx context.Context, instanceID int64) (ZoneMethod, error)
	AddMethod(ctx context.Context, m ZoneMethod) (ZoneMethod, error)
	UpdateMethod(ctx context.Context, m ZoneMethod) error
	DeleteMethod(ctx context.Context, instanceID int64) error

	Version(ctx context.Context) (int64, error)
}

// MemoryStore keeps zones in memory.
type MemoryStore struct {
	mu         sync.RWMutex
	zones      map[int64]Zone
	methods    map[int64]ZoneMethod
	nextZone   int64
	nextMethod int64
	version    int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{zones: map[int64]Zone{}, methods: map[int64]ZoneMethod{}}
}

func (s *MemoryStore) zoneMethods(zoneID int64) []ZoneMethod {
	var out []ZoneMethod
	for _, m := range s.methods {
		if m.ZoneID == zoneID {
			out = append(out, cloneMethod(m))
		}
	}
	sortMethods(out)
	return out
}

func (s *MemoryStore) hydrate(z Zone) Zone {
	z.Locations = append([]ZoneLocation(nil), z.Locations...)
	z.Methods = s.zoneMethods(z.ID)
	z.changes = nil
	return z
}

// ListZones implements ZoneStore.
func (s *MemoryStore) ListZones(context.Context) ([]Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, s.hydrate(z))
	}
	sortZones(out)
	return out, nil
}

// GetZone implements ZoneStore.
func (s *MemoryStore) GetZone(_ context.Context, id int64) (Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == RestOfWorldID {
		z := *NewRestOfWorldZone()
		z.Methods = s.zoneMethods(RestOfWorldID)
		return z, nil
	}
	z, ok := s.zones[id]
	if !ok {
		return Zone{}, ErrZoneNotFound
	}
	return s.hydrate(z), nil
}

// CreateZone implements ZoneStore.
func (s *MemoryStore) CreateZone(_ context.Context, z *Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextZone++
	z.ID = s.nextZone
	stored := *z
	stored.Locations = append([]ZoneLocation(nil), z.Locations...)
	stored.Methods = nil
	stored.changes = nil
	s.zones[z.ID] = stored
	s.version++
	return nil
}

// UpdateZone implements ZoneStore.
func (s *MemoryStore) UpdateZone(_ context.Context, z *Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.zones[z.ID]
	if !ok {
		return ErrZoneNotFound
	}
	stored.Name = z.Name
	stored.Order = z.Order
	if z.Changed(ChangeLocations) {
		stored.Locations = append([]ZoneLocation(nil), z.Locations...)
	}
	s.zones[z.ID] = stored
	s.version++
	return nil
}

// DeleteZone implements ZoneStore.
func (s *MemoryStore) DeleteZone(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.zones[id]; !ok {
		return ErrZoneNotFound
	}
	delete(s.zones, id)
	for instanceID, m := range s.methods {
		if m.ZoneID == id {
			delete(s.methods, instanceID)
		}
	}
	s.version++
	return nil
}

// GetMethod implements ZoneStore.
func (s *MemoryStore) GetMethod(_ context.Context, instanceID int64) (ZoneMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.methods[instanceID]
	if !ok {
		return ZoneMethod{}, ErrMethodNotFound
	}
	return cloneMethod(m), nil
}

// AddMethod implements ZoneStore.
func (s *MemoryStore) AddMethod(_ context.Context, m ZoneMethod) (ZoneMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.zones[m.ZoneID]; !ok && m.ZoneID != RestOfWorldID {
		return ZoneMethod{}, ErrZoneNotFound
	}
	s.nextMethod++
	m.InstanceID = s.nextMethod
	m = cloneMethod(m)
	s.methods[m.InstanceID] = m
	s.version++
	return cloneMethod(m), nil
}

// UpdateMethod implements ZoneStore.
func (s *MemoryStore) UpdateMethod(_ context.Context, m ZoneMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.methods[m.InstanceID]
	if !ok {
		return ErrMethodNotFound
	}
	m.ZoneID = stored.ZoneID
	m.MethodID = stored.MethodID
	s.methods[m.InstanceID] = cloneMethod(m)
	s.version++
	return nil
}

// DeleteMethod implements ZoneStore.
func (s *MemoryStore) DeleteMethod(_ context.Context, instanceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.methods[instanceID]; !ok {
		return ErrMethodNotFound
	}
	delete(s.methods, instanceID)
	s.version++
	return nil
}

// Version implements ZoneStore.
func (s *MemoryStore) Version(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version, nil
}

func cloneMethod(m ZoneMethod) ZoneMethod {
	settings := make(map[string]string, len(m.Settings))
	for k, v := range m.Settings {
		settings[k] = v
	}
	m.Settings = settings
	return m
}

func sortZones(zones []Zone) {
	sort.SliceStable(zones, func(i, j int) bool {
		if zones[i].Order != zones[j].Order {
			return zones[i].Order < zones[j].Order
		}
		return zones[i].ID < zones[j].ID
	})
}

func sortMethods(methods []ZoneMethod) {
	sort.SliceStable(methods, func(i, j int) bool {
		if methods[i].Order != methods[j].Order {
			return methods[i].Order < methods[j].Order
		}
		return methods[i].InstanceID < methods[j].InstanceID
	})
}
