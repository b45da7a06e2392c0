package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storeengine/internal/events"
	"github.com/noah-isme/storeengine/internal/order"
)

type cachePurger interface {
	Purge(ctx context.Context) (int, error)
}

func processors(cache cachePurger, logger zerolog.Logger) map[string]events.Processor {
	return map[string]events.Processor{
		events.TopicShippingSettingsChanged: func(ctx context.Context, ev events.Event) error {
			removed, err := cache.Purge(ctx)
			if err != nil {
				return fmt.Errorf("purge rate cache: %w", err)
			}
			zerolog.Ctx(ctx).Info().Int("removed", removed).Msg("shipping rate cache purged")
			return nil
		},
		events.TopicOrderStatusChanged: func(ctx context.Context, ev events.Event) error {
			var change order.StatusChanged
			if err := json.Unmarshal(ev.Payload, &change); err != nil {
				logger.Warn().Err(err).Str("event_id", ev.ID.String()).Msg("malformed order event dropped")
				return nil
			}
			zerolog.Ctx(ctx).Info().
				Str("order_id", change.OrderID.String()).
				Str("from", string(change.From)).
				Str("to", string(change.To)).
				Str("trigger", change.Trigger).
				Int64("version", change.Version).
				Msg("order status changed")
			return nil
		},
	}
}

// asynqLogger routes asynq's internal logging through zerolog.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
