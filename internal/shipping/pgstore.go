package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storeengine/internal/db"
)

// PGStore stores zones in PostgreSQL.
type PGStore struct {
	pool db.DBTX
}

// NewPGStore constructs a PostgreSQL backed zone store.
func NewPGStore(pool db.DBTX) *PGStore {
	return &PGStore{pool: pool}
}

const bumpVersionSQL = `UPDATE shipping_settings SET version = version + 1 WHERE id = 1`

// inTx runs fn in a transaction that also bumps the settings version.
func (s *PGStore) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, bumpVersionSQL); err != nil {
		return fmt.Errorf("bump shipping version: %w", err)
	}
	return tx.Commit(ctx)
}

// ListZones implements ZoneStore.
func (s *PGStore) ListZones(ctx context.Context) ([]Zone, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, zone_name, zone_order FROM shipping_zones ORDER BY zone_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	zones, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Zone, error) {
		var z Zone
		err := row.Scan(&z.ID, &z.Name, &z.Order)
		return z, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan zones: %w", err)
	}

	locations, err := s.locations(ctx, 0, true)
	if err != nil {
		return nil, err
	}
	methods, err := s.methods(ctx, 0, true)
	if err != nil {
		return nil, err
	}
	for i := range zones {
		zones[i].Locations = locations[zones[i].ID]
		zones[i].Methods = methods[zones[i].ID]
	}
	return zones, nil
}

func (s *PGStore) locations(ctx context.Context, zoneID int64, all bool) (map[int64][]ZoneLocation, error) {
	rows, err := s.pool.Query(ctx, `SELECT zone_id, location_code, location_type FROM shipping_zone_locations
WHERE ($1 OR zone_id = $2) ORDER BY zone_id, id`, all, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list zone locations: %w", err)
	}
	defer rows.Close()
	out := map[int64][]ZoneLocation{}
	for rows.Next() {
		var (
			id  int64
			loc ZoneLocation
			typ string
		)
		if err := rows.Scan(&id, &loc.Code, &typ); err != nil {
			return nil, fmt.Errorf("scan zone location: %w", err)
		}
		loc.Type = LocationType(typ)
		out[id] = append(out[id], loc)
	}
	return out, rows.Err()
}

const methodColumns = `id, zone_id, method_id, name, description, method_order, is_enabled, settings`

func scanMethod(row pgx.Row) (ZoneMethod, error) {
	var (
		m   ZoneMethod
		raw []byte
	)
	if err := row.Scan(&m.InstanceID, &m.ZoneID, &m.MethodID, &m.Name, &m.Description, &m.Order, &m.Enabled, &raw); err != nil {
		return ZoneMethod{}, err
	}
	m.Settings = map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m.Settings); err != nil {
			return ZoneMethod{}, fmt.Errorf("decode method settings: %w", err)
		}
	}
	return m, nil
}

func (s *PGStore) methods(ctx context.Context, zoneID int64, all bool) (map[int64][]ZoneMethod, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+methodColumns+` FROM shipping_zone_methods
WHERE ($1 OR zone_id = $2) ORDER BY zone_id, method_order, id`, all, zoneID)
	if err != nil {
		return nil, fmt.Errorf("list zone methods: %w", err)
	}
	defer rows.Close()
	out := map[int64][]ZoneMethod{}
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan zone method: %w", err)
		}
		out[m.ZoneID] = append(out[m.ZoneID], m)
	}
	return out, rows.Err()
}

// GetZone implements ZoneStore.
func (s *PGStore) GetZone(ctx context.Context, id int64) (Zone, error) {
	var z Zone
	if id == RestOfWorldID {
		z = *NewRestOfWorldZone()
	} else {
		err := s.pool.QueryRow(ctx, `SELECT id, zone_name, zone_order FROM shipping_zones WHERE id = $1`, id).Scan(&z.ID, &z.Name, &z.Order)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Zone{}, ErrZoneNotFound
			}
			return Zone{}, fmt.Errorf("get zone: %w", err)
		}
		locations, err := s.locations(ctx, id, false)
		if err != nil {
			return Zone{}, err
		}
		z.Locations = locations[id]
	}
	methods, err := s.methods(ctx, id, false)
	if err != nil {
		return Zone{}, err
	}
	z.Methods = methods[id]
	return z, nil
}

func writeLocations(ctx context.Context, tx pgx.Tx, z *Zone) error {
	if _, err := tx.Exec(ctx, `DELETE FROM shipping_zone_locations WHERE zone_id = $1`, z.ID); err != nil {
		return fmt.Errorf("clear zone locations: %w", err)
	}
	for _, loc := range z.Locations {
		if _, err := tx.Exec(ctx, `INSERT INTO shipping_zone_locations (zone_id, location_code, location_type) VALUES ($1, $2, $3)`,
			z.ID, loc.Code, string(loc.Type)); err != nil {
			return fmt.Errorf("insert zone location: %w", err)
		}
	}
	return nil
}

// CreateZone implements ZoneStore.
func (s *PGStore) CreateZone(ctx context.Context, z *Zone) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO shipping_zones (zone_name, zone_order) VALUES ($1, $2) RETURNING id`, z.Name, z.Order).Scan(&z.ID); err != nil {
			return fmt.Errorf("insert zone: %w", err)
		}
		return writeLocations(ctx, tx, z)
	})
}

// UpdateZone implements ZoneStore.
func (s *PGStore) UpdateZone(ctx context.Context, z *Zone) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE shipping_zones SET zone_name = $1, zone_order = $2 WHERE id = $3`, z.Name, z.Order, z.ID)
		if err != nil {
			return fmt.Errorf("update zone: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrZoneNotFound
		}
		if !z.Changed(ChangeLocations) {
			return nil
		}
		return writeLocations(ctx, tx, z)
	})
}

// DeleteZone implements ZoneStore.
func (s *PGStore) DeleteZone(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM shipping_zone_methods WHERE zone_id = $1`, id); err != nil {
			return fmt.Errorf("delete zone methods: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM shipping_zone_locations WHERE zone_id = $1`, id); err != nil {
			return fmt.Errorf("delete zone locations: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM shipping_zones WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete zone: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrZoneNotFound
		}
		return nil
	})
}

// GetMethod implements ZoneStore.
func (s *PGStore) GetMethod(ctx context.Context, instanceID int64) (ZoneMethod, error) {
	m, err := scanMethod(s.pool.QueryRow(ctx, `SELECT `+methodColumns+` FROM shipping_zone_methods WHERE id = $1`, instanceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ZoneMethod{}, ErrMethodNotFound
		}
		return ZoneMethod{}, fmt.Errorf("get zone method: %w", err)
	}
	return m, nil
}

// AddMethod implements ZoneStore.
func (s *PGStore) AddMethod(ctx context.Context, m ZoneMethod) (ZoneMethod, error) {
	settings, err := json.Marshal(nonNilSettings(m.Settings))
	if err != nil {
		return ZoneMethod{}, err
	}
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		if m.ZoneID != RestOfWorldID {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM shipping_zones WHERE id = $1)`, m.ZoneID).Scan(&exists); err != nil {
				return fmt.Errorf("check zone: %w", err)
			}
			if !exists {
				return ErrZoneNotFound
			}
		}
		return tx.QueryRow(ctx, `INSERT INTO shipping_zone_methods (zone_id, method_id, name, description, method_order, is_enabled, settings)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			m.ZoneID, m.MethodID, m.Name, m.Description, m.Order, m.Enabled, settings).Scan(&m.InstanceID)
	})
	if err != nil {
		return ZoneMethod{}, err
	}
	m.Settings = nonNilSettings(m.Settings)
	return m, nil
}

// UpdateMethod implements ZoneStore.
func (s *PGStore) UpdateMethod(ctx context.Context, m ZoneMethod) error {
	settings, err := json.Marshal(nonNilSettings(m.Settings))
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE shipping_zone_methods SET name = $1, description = $2, method_order = $3, is_enabled = $4, settings = $5
WHERE id = $6`, m.Name, m.Description, m.Order, m.Enabled, settings, m.InstanceID)
		if err != nil {
			return fmt.Errorf("update zone method: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrMethodNotFound
		}
		return nil
	})
}

// DeleteMethod implements ZoneStore.
func (s *PGStore) DeleteMethod(ctx context.Context, instanceID int64) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM shipping_zone_methods WHERE id = $1`, instanceID)
		if err != nil {
			return fmt.Errorf("delete zone method: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrMethodNotFound
		}
		return nil
	})
}

// Version implements ZoneStore.
func (s *PGStore) Version(ctx context.Context) (int64, error) {
	var v int64
	if err := s.pool.QueryRow(ctx, `SELECT version FROM shipping_settings WHERE id = 1`).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("shipping version: %w", err)
	}
	return v, nil
}

func nonNilSettings(settings map[string]string) map[string]string {
	if settings == nil {
		return map[string]string{}
	}
	return settings
}
