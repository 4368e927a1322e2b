package input

import (
	"context"
	"time"

	"carvana-workflows/internal/domain/entity"
)

type RunResult struct {
	RunID    string
	Workflow string
	Steps    int
	Vars     map[string]any
	Duration time.Duration
}

// WorkflowRunner is what UI adapters dispatch run-workflow intents into.
type WorkflowRunner interface {
	DetectPage(ctx context.Context) (*entity.PageDefinition, error)
	RunWorkflow(ctx context.Context, pageID, workflowID string) (*RunResult, error)
}
