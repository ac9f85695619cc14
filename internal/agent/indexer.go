package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/index"
	"github.com/codescope/codescope/internal/llm"
)

// IndexerAgent exposes indexing through the uniform agent contract.
// Payload selects the operation: "records_path" starts a job over a
// JSONL file, "source" starts one over an in-memory source, "job_id"
// reports status. An empty payload starts a job over the configured
// default record file, which is how chat-routed reindex requests land.
type IndexerAgent struct {
	jobs        *index.JobManager
	recordsPath string
	logger      *slog.Logger
}

// NewIndexerAgent creates an indexer agent over the job manager.
// recordsPath may be empty; then every start request must carry a source.
func NewIndexerAgent(jobs *index.JobManager, recordsPath string) *IndexerAgent {
	return &IndexerAgent{
		jobs:        jobs,
		recordsPath: recordsPath,
		logger:      slog.Default().With("component", "agent", "agent", string(KindIndexer)),
	}
}

func (a *IndexerAgent) Kind() Kind { return KindIndexer }

func (a *IndexerAgent) Execute(ctx context.Context, task Task, history []llm.Message) (*Result, error) {
	start := time.Now()

	if jobID, ok := task.Payload["job_id"].(string); ok {
		return a.status(jobID, start)
	}

	source, err := a.sourceFromPayload(task.Payload)
	if err != nil {
		return nil, err
	}

	jobID, started, err := a.jobs.Start(ctx, source)
	if err != nil {
		return nil, err
	}

	content := fmt.Sprintf("Indexing job %s started.", jobID)
	if !started {
		content = fmt.Sprintf("Indexing job %s is already running; new request merged into it.", jobID)
	}

	return &Result{
		Agent:      KindIndexer,
		Content:    content,
		Confidence: 1.0,
		Duration:   time.Since(start),
	}, nil
}

func (a *IndexerAgent) sourceFromPayload(payload map[string]any) (index.Source, error) {
	if src, ok := payload["source"].(index.Source); ok {
		return src, nil
	}
	if path, ok := payload["records_path"].(string); ok && path != "" {
		return index.OpenJSONL(path)
	}
	if a.recordsPath != "" {
		return index.OpenJSONL(a.recordsPath)
	}
	return nil, errors.ValidationError("indexer task needs a records_path or source payload, and no default record file is configured")
}

func (a *IndexerAgent) status(jobID string, start time.Time) (*Result, error) {
	status := a.jobs.Status(jobID)
	if status == nil {
		return nil, errors.ValidationError("unknown job id: " + jobID)
	}

	content := fmt.Sprintf("Job %s is %s.", status.ID, status.State)
	if status.Report != nil {
		content = fmt.Sprintf("Job %s is %s: %s", status.ID, status.State, status.Report.String())
	}
	if status.Error != "" {
		content += " Error: " + status.Error
	}

	return &Result{
		Agent:      KindIndexer,
		Content:    content,
		Confidence: 1.0,
		Duration:   time.Since(start),
	}, nil
}
