package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/mediaplan/mediaplan/jobs"
)

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *jobs.Client
	inspector queueInspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) (*JobsCLI, error) {
	if redisAddr == "" {
		return nil, errors.New("jobs cli: redis address required")
	}
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: jobs.NewClient(opts), inspector: asynq.NewInspector(opts)}, nil
}

// NewJobsCLIWith builds the helpers around existing queue handles.
func NewJobsCLIWith(enqueuer jobs.Enqueuer, inspector queueInspector) *JobsCLI {
	return &JobsCLI{client: jobs.NewClientWith(enqueuer), inspector: inspector}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// TriggerParams selects the job payload.
type TriggerParams struct {
	PlanID        string
	Granularity   string
	EnvironmentID string
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name string, params TriggerParams) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case jobs.TaskForecastGenerate:
		return c.client.EnqueueForecastGenerate(ctx, jobs.ForecastGeneratePayload{
			PlanID:        params.PlanID,
			Granularity:   params.Granularity,
			EnvironmentID: params.EnvironmentID,
		})
	case jobs.TaskPacingScan:
		return c.client.EnqueuePacingScan(ctx, params.EnvironmentID)
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue(ctx context.Context) (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
	}
	return stats, nil
}

func newJobsCommand(opts Options) *cobra.Command {
	var redisAddr string
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Background job helpers",
	}
	cmd.PersistentFlags().StringVar(&redisAddr, "redis", "127.0.0.1:6379", "Redis address of the job queue")

	var params TriggerParams
	trigger := &cobra.Command{
		Use:       "trigger <job>",
		Short:     "Enqueue forecast:generate or pacing:scan",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskForecastGenerate, jobs.TaskPacingScan},
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.NewJobs(redisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = cli.Close() }()
			info, err := cli.Trigger(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(opts.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().StringVar(&params.PlanID, "plan", "", "Plan id for forecast:generate")
	trigger.Flags().StringVar(&params.Granularity, "granularity", "month", "Forecast granularity")
	trigger.Flags().StringVar(&params.EnvironmentID, "env", "", "Environment id")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := opts.NewJobs(redisAddr)
			if err != nil {
				return err
			}
			defer func() { _ = cli.Close() }()
			s, err := cli.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(opts.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			return nil
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}
