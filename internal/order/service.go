package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/storeengine/internal/events"
	"github.com/noah-isme/storeengine/internal/obs"
)

const tracerName = "github.com/noah-isme/storeengine/internal/order"

// Locker serialises work on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) (events.Event, error)
}

// StatusChanged is the payload of the order.status_changed event.
type StatusChanged struct {
	OrderID uuid.UUID  `json:"orderId"`
	From    StatusName `json:"from"`
	To      StatusName `json:"to"`
	Trigger string     `json:"trigger"`
	Version int64      `json:"version"`
}

// Service applies status transitions to persisted orders.
type Service struct {
	Store   Store
	Locker  Locker
	Events  Emitter
	LockTTL time.Duration
	Logger  zerolog.Logger
}

// Create stores a new order in the auto-draft status.
func (s *Service) Create(ctx context.Context) (Order, error) {
	return s.Store.Create(ctx, Order{Status: StatusAutoDraft})
}

// Get loads an order.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.Store.Get(ctx, id)
}

// Transition runs trigger against the order's current status and persists
// the result. The write only lands if nobody else moved the order first.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, trigger string) (Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "order.Transition")
	span.SetAttributes(attribute.String("order.id", id.String()), attribute.String("order.trigger", trigger))
	defer span.End()

	var updated Order
	run := func(ctx context.Context) error {
		var err error
		updated, err = s.transition(ctx, id, trigger)
		return err
	}

	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, "lock:order:"+id.String(), s.LockTTL, run)
	} else {
		err = run(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Order{}, err
	}
	return updated, nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, trigger string) (Order, error) {
	current, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	from := current.Status

	working := current
	oc, err := NewContext(&working)
	if err != nil {
		recordTransition(from, trigger, "unknown_status")
		return Order{}, err
	}
	if err := oc.Proceed(trigger); err != nil {
		recordTransition(from, trigger, "invalid")
		return Order{}, err
	}

	updated, err := s.Store.CompareAndSwapStatus(ctx, id, from, current.Version, working.Status)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			recordTransition(from, trigger, "conflict")
		} else {
			recordTransition(from, trigger, "error")
		}
		return Order{}, err
	}
	recordTransition(from, trigger, "ok")

	s.Logger.Info().
		Str("order_id", id.String()).
		Str("from", string(from)).
		Str("to", string(updated.Status)).
		Str("trigger", trigger).
		Msg("order status changed")

	if s.Events != nil {
		payload := StatusChanged{OrderID: id, From: from, To: updated.Status, Trigger: trigger, Version: updated.Version}
		if _, err := s.Events.Emit(ctx, events.TopicOrderStatusChanged, id, payload); err != nil {
			s.Logger.Warn().Err(err).Str("order_id", id.String()).Msg("emit order status event")
		}
	}
	return updated, nil
}

func recordTransition(from StatusName, trigger, result string) {
	if obs.OrderTransitionsTotal != nil {
		obs.OrderTransitionsTotal.WithLabelValues(string(from), trigger, result).Inc()
	}
}
