package cart

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/storeengine/internal/tax"
	"github.com/noah-isme/storeengine/internal/totals"
)

const instrumentationName = "github.com/noah-isme/storeengine/internal/cart"

// Service calculates cart totals with the store tax and shipping setup.
type Service struct {
	Tax      *tax.Calculator
	Shipping RateCalculator
	Options  totals.Options
	Logger   zerolog.Logger

	duration metric.Float64Histogram
}

// NewService wires a Service. rates may be nil when shipping is disabled.
func NewService(calc *tax.Calculator, rates RateCalculator, opts totals.Options, logger zerolog.Logger) *Service {
	s := &Service{Tax: calc, Shipping: rates, Options: opts, Logger: logger}
	hist, err := otel.Meter(instrumentationName).Float64Histogram(
		"storeengine.cart.totals.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of cart totals calculations."),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("cart totals histogram unavailable")
	} else {
		s.duration = hist
	}
	return s
}

// Calculate computes every total of c in place.
func (s *Service) Calculate(ctx context.Context, c *Cart) error {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "cart.Calculate")
	defer span.End()
	start := time.Now()

	if !c.Valid() {
		return totals.ErrCartRequired
	}
	if s.Shipping != nil {
		c.SetRateCalculator(s.Shipping)
	}
	opts := s.Options
	opts.Logger = s.Logger
	if err := c.Calculate(ctx, s.Tax, opts); err != nil {
		span.RecordError(err)
		return err
	}

	attrs := []attribute.KeyValue{
		attribute.Int("cart.items", len(c.Lines)),
		attribute.Bool("cart.shipping", c.ShowShipping()),
	}
	span.SetAttributes(attrs...)
	if s.duration != nil {
		s.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	}
	return nil
}
