package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/events"
)

type captureEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (c *captureEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "x"}, nil
}

func TestQueueNotifierEnqueuesEvent(t *testing.T) {
	enq := &captureEnqueuer{}
	bus := events.Bus{Store: &stubStore{}, Notifiers: []events.Notifier{events.QueueNotifier{Client: enq, Queue: "events"}}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderStatusChanged, uuid.New(), map[string]string{"to": "completed"})
	require.NoError(t, err)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, events.TaskType(events.TopicOrderStatusChanged), enq.tasks[0].Type())

	var got events.Event
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &got))
	require.Equal(t, ev.ID, got.ID)
	require.JSONEq(t, `{"to":"completed"}`, string(got.Payload))
}

func TestQueueNotifierDuplicateIsNotAnError(t *testing.T) {
	n := events.QueueNotifier{Client: &captureEnqueuer{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, n.Notify(context.Background(), events.Event{ID: uuid.New(), Topic: events.TopicOrderStatusChanged}))

	n = events.QueueNotifier{Client: &captureEnqueuer{err: errors.New("redis down")}, Logger: zerolog.Nop()}
	require.Error(t, n.Notify(context.Background(), events.Event{ID: uuid.New(), Topic: events.TopicOrderStatusChanged}))
}

func TestServeMuxDispatchesByTopic(t *testing.T) {
	var seen []string
	mux := events.NewServeMux(map[string]events.Processor{
		events.TopicShippingSettingsChanged: func(_ context.Context, ev events.Event) error {
			seen = append(seen, ev.Topic)
			return nil
		},
	}, zerolog.Nop())

	body, err := json.Marshal(events.Event{ID: uuid.New(), Topic: events.TopicShippingSettingsChanged, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(events.TaskType(events.TopicShippingSettingsChanged), body)))
	require.Equal(t, []string{events.TopicShippingSettingsChanged}, seen)

	err = mux.ProcessTask(context.Background(), asynq.NewTask(events.TaskType(events.TopicShippingSettingsChanged), []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
