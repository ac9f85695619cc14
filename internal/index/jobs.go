package index

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/graph"
)

// JobState is the lifecycle phase of an indexing job
type JobState string

const (
	JobPending JobState = "pending"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// JobStatus is a point-in-time snapshot of one indexing job
type JobStatus struct {
	ID         string    `json:"id"`
	State      JobState  `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Report     *Report   `json:"report,omitempty"`
	NodeCount  int64     `json:"node_count"`
	Error      string    `json:"error,omitempty"`
}

// JobManager runs indexing jobs in the background, one at a time. The
// single slot makes concurrent index requests converge on the running job
// instead of racing writes into the store.
type JobManager struct {
	mu      sync.Mutex
	indexer *Indexer
	store   graph.Store
	jobs    map[string]*JobStatus
	current string
	reports *ReportStore

	logger *logrus.Entry
}

// NewJobManager creates a job manager. The report store is optional; when
// present, finished reports are persisted to it.
func NewJobManager(store graph.Store, reports *ReportStore) *JobManager {
	return &JobManager{
		indexer: NewIndexer(store),
		store:   store,
		jobs:    make(map[string]*JobStatus),
		reports: reports,
		logger:  logrus.WithField("component", "index_jobs"),
	}
}

// Start launches an indexing job over the source. If a job is already
// running, its ID is returned with started=false and the source is not
// consumed.
func (m *JobManager) Start(ctx context.Context, source Source) (jobID string, started bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != "" {
		if status, ok := m.jobs[m.current]; ok && (status.State == JobPending || status.State == JobRunning) {
			m.logger.WithField("job_id", m.current).Info("Index job already running")
			return m.current, false, nil
		}
	}

	id := uuid.New().String()
	status := &JobStatus{ID: id, State: JobPending, StartedAt: time.Now().UTC()}
	m.jobs[id] = status
	m.current = id

	// The job outlives the triggering call. Detach from that call's
	// cancellation so an agent step finishing does not kill the run.
	go m.run(context.WithoutCancel(ctx), id, source)

	m.logger.WithField("job_id", id).Info("Index job started")
	return id, true, nil
}

func (m *JobManager) run(ctx context.Context, id string, source Source) {
	m.setState(id, JobRunning)

	report, err := m.indexer.Run(ctx, source)

	m.mu.Lock()
	status := m.jobs[id]
	status.FinishedAt = time.Now().UTC()
	status.Report = report
	if err != nil {
		status.State = JobFailed
		status.Error = err.Error()
	} else {
		status.State = JobDone
	}
	m.mu.Unlock()

	if stats, statErr := m.store.Statistics(ctx); statErr == nil {
		m.mu.Lock()
		status.NodeCount = stats.Nodes
		m.mu.Unlock()
	}

	if err != nil {
		m.logger.WithError(err).WithField("job_id", id).Error("Index job failed")
	} else {
		m.logger.WithFields(logrus.Fields{
			"job_id": id,
			"report": report.String(),
		}).Info("Index job finished")
	}

	if m.reports != nil && report != nil {
		if saveErr := m.reports.Save(id, report); saveErr != nil {
			m.logger.WithError(saveErr).Warn("Failed to persist index report")
		}
	}
}

func (m *JobManager) setState(id string, state JobState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status, ok := m.jobs[id]; ok {
		status.State = state
	}
}

// Status returns a copy of the job's status, or nil if the ID is unknown.
// While the job is still running the node count is sampled from the store,
// so callers polling mid-run see progress rather than zero.
func (m *JobManager) Status(jobID string) *JobStatus {
	m.mu.Lock()
	status, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	copied := *status
	m.mu.Unlock()

	if copied.State == JobPending || copied.State == JobRunning {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stats, err := m.store.Statistics(ctx); err == nil {
			copied.NodeCount = stats.Nodes
		}
	}
	return &copied
}

// Current returns the most recently started job's status, or nil
func (m *JobManager) Current() *JobStatus {
	m.mu.Lock()
	id := m.current
	m.mu.Unlock()
	if id == "" {
		return nil
	}
	return m.Status(id)
}

// Wait blocks until the job reaches a terminal state or the context ends.
// Used by the CLI, which runs jobs to completion in the foreground.
func (m *JobManager) Wait(ctx context.Context, jobID string) (*JobStatus, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		status := m.Status(jobID)
		if status == nil {
			return nil, errors.ValidationError("unknown job id: " + jobID)
		}
		if status.State == JobDone || status.State == JobFailed {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
