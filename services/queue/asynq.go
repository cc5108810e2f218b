package queuesvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

// TypeDeliverMessage is the task delivering a queued outbound message.
const TypeDeliverMessage = "messaging:deliver"

type deliverPayload struct {
	MessageID string `json:"message_id"`
}

func redisOpt(conf *core.Config) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(conf.Queue.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing queue redis url")
	}
	return opt, nil
}

// AsynqDispatcher enqueues outbound messages for delivery by a Worker.
type AsynqDispatcher struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

var _ messaging.Dispatcher = (*AsynqDispatcher)(nil) // interface compliance check

func NewAsynqDispatcher(conf *core.Config) (*AsynqDispatcher, error) {
	opt, err := redisOpt(conf)
	if err != nil {
		return nil, err
	}
	return &AsynqDispatcher{
		client:   asynq.NewClient(opt),
		queue:    conf.Queue.Name,
		maxRetry: conf.Queue.MaxRetry,
	}, nil
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, messageID string) error {
	payload, err := json.Marshal(deliverPayload{MessageID: messageID})
	if err != nil {
		return errors.Wrap(err, "encoding task payload")
	}
	task := asynq.NewTask(TypeDeliverMessage, payload)
	if _, err = d.client.EnqueueContext(ctx, task, asynq.MaxRetry(d.maxRetry), asynq.Queue(d.queue)); err != nil {
		return errors.Wrap(err, "enqueuing task")
	}
	return nil
}

func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// Worker delivers the queued messages in the background.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(conf *core.Config, deliverer messaging.Deliverer, logger core.Logger) (*Worker, error) {
	opt, err := redisOpt(conf)
	if err != nil {
		return nil, err
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      map[string]int{conf.Queue.Name: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn(fmt.Sprintf("task %s failed: %v", task.Type(), err), err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDeliverMessage, deliverHandler(deliverer, logger))
	return &Worker{server: srv, mux: mux}, nil
}

func (w *Worker) Start() error {
	return errors.Wrap(w.server.Start(w.mux), "starting queue worker")
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// deliverHandler returns retryable errors so asynq retries them with back-off.
// Non-retryable ones skip retries; on the last attempt the message is marked failed.
func deliverHandler(deliverer messaging.Deliverer, logger core.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var p deliverPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil || p.MessageID == "" {
			return fmt.Errorf("invalid payload %q: %w", task.Payload(), asynq.SkipRetry)
		}

		err := deliverer.Deliver(ctx, p.MessageID)
		if err == nil {
			return nil
		}
		if !messaging.IsRetryable(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}

		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, ok := asynq.GetMaxRetry(ctx)
		if ok && retried >= maxRetry {
			if markErr := deliverer.MarkFailed(ctx, p.MessageID, err); markErr != nil {
				logger.Error(fmt.Sprintf("marking message %s failed: %v", p.MessageID, markErr), markErr)
			}
		}
		return err
	}
}
