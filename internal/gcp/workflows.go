package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowStarter starts executions of one Cloud Workflow.
type WorkflowStarter struct {
	client *executions.Client
	parent string
}

// NewWorkflowStarter targets projects/<project>/locations/<location>/workflows/<id>.
func NewWorkflowStarter(ctx context.Context, projectID, location, workflowID string) (*WorkflowStarter, error) {
	client, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}
	return &WorkflowStarter{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}, nil
}

// Start runs the workflow with payload as its JSON argument and returns the execution name.
func (w *WorkflowStarter) Start(ctx context.Context, payload any) (string, error) {
	arg, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	exec, err := w.client.CreateExecution(ctx, &executionspb.CreateExecutionRequest{
		Parent: w.parent,
		Execution: &executionspb.Execution{
			Argument: string(arg),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}

// Close releases the client.
func (w *WorkflowStarter) Close() error {
	return w.client.Close()
}
