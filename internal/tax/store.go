package tax

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storeengine/internal/db"
)

// MemoryStore keeps tax rates in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	rates []Rate
}

// NewMemoryStore constructs a store seeded with rates.
func NewMemoryStore(rates ...Rate) *MemoryStore {
	s := &MemoryStore{}
	for _, r := range rates {
		s.Put(r)
	}
	return s
}

// Put inserts or replaces a rate.
func (s *MemoryStore) Put(r Rate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Class = NormalizeClass(r.Class)
	for i := range s.rates {
		if s.rates[i].ID == r.ID {
			s.rates[i] = r
			return
		}
	}
	s.rates = append(s.rates, r)
}

// RatesForClass implements RateStore.
func (s *MemoryStore) RatesForClass(_ context.Context, class string) ([]Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	class = NormalizeClass(class)
	out := make([]Rate, 0, len(s.rates))
	for _, r := range s.rates {
		if r.Class == class {
			out = append(out, r)
		}
	}
	return out, nil
}

// PGStore reads tax rates from PostgreSQL.
type PGStore struct {
	pool db.DBTX
}

// NewPGStore constructs a PostgreSQL backed rate store.
func NewPGStore(pool db.DBTX) *PGStore {
	return &PGStore{pool: pool}
}

// RatesForClass implements RateStore.
func (s *PGStore) RatesForClass(ctx context.Context, class string) ([]Rate, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, country, state, postcodes, cities, rate::text, name, priority, compound, shipping, rate_order, class
FROM tax_rates WHERE class = $1 ORDER BY priority, rate_order, id`, NormalizeClass(class))
	if err != nil {
		return nil, fmt.Errorf("query tax rates: %w", err)
	}
	defer rows.Close()

	var out []Rate
	for rows.Next() {
		var (
			r    Rate
			rate string
		)
		if err := rows.Scan(&r.ID, &r.Country, &r.State, &r.Postcodes, &r.Cities, &rate, &r.Name, &r.Priority, &r.Compound, &r.Shipping, &r.Order, &r.Class); err != nil {
			return nil, fmt.Errorf("scan tax rate: %w", err)
		}
		r.Rate, err = decimal.NewFromString(rate)
		if err != nil {
			return nil, fmt.Errorf("parse tax rate %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Insert stores a new rate and returns its id.
func (s *PGStore) Insert(ctx context.Context, r Rate) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `INSERT INTO tax_rates (country, state, postcodes, cities, rate, name, priority, compound, shipping, rate_order, class)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11) RETURNING id`,
		r.Country, r.State, r.Postcodes, r.Cities, r.Rate.String(), r.Name, r.Priority, r.Compound, r.Shipping, r.Order, NormalizeClass(r.Class)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tax rate: %w", err)
	}
	return id, nil
}
