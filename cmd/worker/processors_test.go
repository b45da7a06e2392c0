package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/events"
	"github.com/noah-isme/storeengine/internal/order"
	"github.com/noah-isme/storeengine/internal/shipping"
)

type brokenPurger struct{}

func (brokenPurger) Purge(context.Context) (int, error) { return 0, errors.New("redis down") }

func TestSettingsChangePurgesRateCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	cache := shipping.RedisSessionCache{R: client}
	require.NoError(t, cache.Set(ctx, "sess", 0, shipping.CachedRates{Hash: "h"}))

	process := processors(cache, zerolog.Nop())[events.TopicShippingSettingsChanged]
	require.NoError(t, process(ctx, events.Event{ID: uuid.New(), Topic: events.TopicShippingSettingsChanged}))
	require.False(t, mr.Exists(shipping.SessionKey("sess", 0)))

	process = processors(brokenPurger{}, zerolog.Nop())[events.TopicShippingSettingsChanged]
	require.Error(t, process(ctx, events.Event{ID: uuid.New()}))
}

func TestOrderEventProcessor(t *testing.T) {
	process := processors(brokenPurger{}, zerolog.Nop())[events.TopicOrderStatusChanged]
	payload, err := json.Marshal(order.StatusChanged{OrderID: uuid.New(), From: order.StatusPendingPayment, To: order.StatusProcessing, Trigger: order.TriggerProcessOrder, Version: 2})
	require.NoError(t, err)

	require.NoError(t, process(context.Background(), events.Event{ID: uuid.New(), Payload: payload}))
	require.NoError(t, process(context.Background(), events.Event{ID: uuid.New(), Payload: json.RawMessage(`[]`)}))
}
