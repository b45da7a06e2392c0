package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storeengine/internal/obs"
)

const taskTypePrefix = "storeengine:event:"

// TaskType is the asynq task type carrying events of topic.
func TaskType(topic string) string { return taskTypePrefix + topic }

// Enqueuer is the subset of *asynq.Client used by the notifier.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueNotifier hands persisted events to asynq for background processing.
// The task id is the event id, so a re-emitted event is enqueued once.
type QueueNotifier struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	Logger   zerolog.Logger
}

// Notify implements Notifier.
func (n QueueNotifier) Notify(ctx context.Context, ev Event) error {
	if n.Client == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID.String()), asynq.MaxRetry(n.maxRetry())}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	_, err = n.Client.EnqueueContext(ctx, asynq.NewTask(TaskType(ev.Topic), body), opts...)
	switch {
	case err == nil, errors.Is(err, asynq.ErrTaskIDConflict):
		countEnqueued(ev.Topic, "ok")
		return nil
	default:
		countEnqueued(ev.Topic, "error")
		n.Logger.Warn().Err(err).Str("topic", ev.Topic).Str("event_id", ev.ID.String()).Msg("enqueue event")
		return fmt.Errorf("enqueue %s: %w", ev.Topic, err)
	}
}

func (n QueueNotifier) maxRetry() int {
	if n.MaxRetry <= 0 {
		return 10
	}
	return n.MaxRetry
}

func countEnqueued(topic, result string) {
	if obs.EventsEnqueuedTotal != nil {
		obs.EventsEnqueuedTotal.WithLabelValues(topic, result).Inc()
	}
}

// Processor consumes one event on the worker side.
type Processor func(ctx context.Context, ev Event) error

// NewServeMux routes event tasks to processors by topic. Undecodable
// payloads are not retried.
func NewServeMux(processors map[string]Processor, logger zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for topic, process := range processors {
		topic, process := topic, process
		mux.HandleFunc(TaskType(topic), func(ctx context.Context, t *asynq.Task) error {
			var ev Event
			if err := json.Unmarshal(t.Payload(), &ev); err != nil {
				logger.Error().Err(err).Str("task", t.Type()).Msg("decode event task")
				return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
			}
			log := logger.With().Str("topic", ev.Topic).Str("event_id", ev.ID.String()).Logger()
			if err := process(log.WithContext(ctx), ev); err != nil {
				log.Error().Err(err).Msg("process event")
				return err
			}
			log.Debug().Msg("event processed")
			return nil
		})
	}
	return mux
}
