package order

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storeengine/internal/db"
)

// Store persists orders. CompareAndSwapStatus only writes when the stored
// status and version still match.
type Store interface {
	Create(ctx context.Context, o Order) (Order, error)
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from StatusName, version int64, to StatusName) (Order, error)
	List(ctx context.Context, status StatusName, limit, offset int) ([]Order, int64, error)
}

// PGStore stores orders in PostgreSQL.
type PGStore struct {
	pool db.DBTX
}

// NewPGStore constructs a PostgreSQL backed order store.
func NewPGStore(pool db.DBTX) *PGStore {
	return &PGStore{pool: pool}
}

const orderColumns = `id, status, version, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	if err := row.Scan(&o.ID, &status, &o.Version, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = StatusName(status)
	return o, nil
}

// Create implements Store.
func (s *PGStore) Create(ctx context.Context, o Order) (Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusAutoDraft
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO orders (id, status) VALUES ($1, $2) RETURNING `+orderColumns, o.ID, string(o.Status))
	created, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

// Get implements Store.
func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// CompareAndSwapStatus implements Store.
func (s *PGStore) CompareAndSwapStatus(ctx context.Context, id uuid.UUID, from StatusName, version int64, to StatusName) (Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `UPDATE orders SET status = $1, version = version + 1, updated_at = now()
WHERE id = $2 AND status = $3 AND version = $4 RETURNING `+orderColumns, string(to), id, string(from), version))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrStatusConflict
		}
		return Order{}, fmt.Errorf("update order status: %w", err)
	}
	return o, nil
}

// List implements Store. An empty status lists every order.
func (s *PGStore) List(ctx context.Context, status StatusName, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE ($1 = '' OR status = $1)`, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := make([]Order, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// MemoryStore keeps orders in memory.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[uuid.UUID]Order
	now    func() time.Time
}

// NewMemoryStore constructs an empty in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[uuid.UUID]Order), now: time.Now}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, o Order) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = StatusAutoDraft
	}
	o.Version = 0
	o.CreatedAt = s.now().UTC()
	o.UpdatedAt = o.CreatedAt
	s.orders[o.ID] = o
	return o, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

// CompareAndSwapStatus implements Store.
func (s *MemoryStore) CompareAndSwapStatus(_ context.Context, id uuid.UUID, from StatusName, version int64, to StatusName) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from || o.Version != version {
		return Order{}, ErrStatusConflict
	}
	o.Status = to
	o.Version++
	o.UpdatedAt = s.now().UTC()
	s.orders[id] = o
	return o, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, status StatusName, limit, offset int) ([]Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if status == "" || o.Status == status {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []Order{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}
