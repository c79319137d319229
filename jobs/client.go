package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
)

// ErrClientNotConfigured is returned when enqueueing through a nil client.
var ErrClientNotConfigured = errors.New("jobs: client not configured")

// Enqueuer is the part of asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits forecast and pacing tasks.
type Client struct {
	enqueuer Enqueuer
}

// NewClient dials the queue lazily through asynq.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{enqueuer: asynq.NewClient(redisOpts)}
}

// NewClientWith wraps an existing enqueuer.
func NewClientWith(enqueuer Enqueuer) *Client {
	return &Client{enqueuer: enqueuer}
}

// EnqueueForecastGenerate queues a forecast regeneration for one plan.
func (c *Client) EnqueueForecastGenerate(ctx context.Context, payload ForecastGeneratePayload) (*asynq.TaskInfo, error) {
	task, err := NewForecastGenerateTask(payload)
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(3))
}

// EnqueuePacingScan queues an ad-hoc pacing scan.
func (c *Client) EnqueuePacingScan(ctx context.Context, environmentID string) (*asynq.TaskInfo, error) {
	task, err := NewPacingScanTask(environmentID)
	if err != nil {
		return nil, err
	}
	return c.enqueue(ctx, task, asynq.MaxRetry(3))
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c == nil || c.enqueuer == nil {
		return nil, ErrClientNotConfigured
	}
	return c.enqueuer.EnqueueContext(ctx, task, append([]asynq.Option{asynq.Queue(QueueDefault)}, opts...)...)
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.enqueuer == nil {
		return nil
	}
	return c.enqueuer.Close()
}
