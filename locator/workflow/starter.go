package workflow

import (
	"context"
	"fmt"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"encore.dev/rlog"

	"encore.app/locator/model"
	"encore.app/locator/resolution"
)

var _ resolution.Starter = (*TemporalStarter)(nil)

// TemporalStarter starts Resolution workflows with the execution ID as workflow ID.
// Temporal rejects a second start while one is running; that rejection is the
// cross-process compare-and-swap.
type TemporalStarter struct {
	temporal  client.Client
	taskQueue string
	timeout   time.Duration
}

// NewTemporalStarter returns a starter bound to taskQueue. timeout is used when an input
// carries no deadline.
func NewTemporalStarter(c client.Client, taskQueue string, timeout time.Duration) *TemporalStarter {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &TemporalStarter{temporal: c, taskQueue: taskQueue, timeout: timeout}
}

func (s *TemporalStarter) StartIfAbsent(ctx context.Context, input model.ResolutionInput) (model.StartResult, error) {
	workflowID := input.ExecutionID()

	timeout := s.timeout
	if !input.Deadline.IsZero() {
		timeout = time.Until(input.Deadline)
	}
	if timeout <= 0 {
		return "", fmt.Errorf("start workflow %s: %w", workflowID, resolution.ErrWorkflowTimeout)
	}

	options := client.StartWorkflowOptions{
		ID:                       workflowID,
		TaskQueue:                s.taskQueue,
		WorkflowExecutionTimeout: timeout,
		// a finished execution may be followed by a new one once its cache entry expires
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
		},
	}

	_, err := s.temporal.ExecuteWorkflow(ctx, options, Resolution, input)
	if err != nil {
		if temporal.IsWorkflowExecutionAlreadyStartedError(err) {
			rlog.Debug("resolution workflow already running", "workflow_id", workflowID)
			return model.AlreadyExists, nil
		}
		return "", fmt.Errorf("start workflow %s: %w", workflowID, err)
	}

	rlog.Info("resolution workflow started", "workflow_id", workflowID, "domain", input.Domain)
	return model.Started, nil
}
