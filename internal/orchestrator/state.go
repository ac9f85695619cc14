package orchestrator

import (
	"time"

	"github.com/codescope/codescope/internal/agent"
)

// State is the phase of one question turn. Transitions are linear;
// any phase may move to Failed.
type State int

const (
	StateReceived State = iota
	StateClassifying
	StatePlanning
	StateDispatching
	StateAggregating
	StateSynthesizing
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateClassifying:
		return "classifying"
	case StatePlanning:
		return "planning"
	case StateDispatching:
		return "dispatching"
	case StateAggregating:
		return "aggregating"
	case StateSynthesizing:
		return "synthesizing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Response is the answer to one question turn. Degraded marks answers
// produced with partial evidence; Unsynthesized marks raw evidence
// returned because synthesis was unavailable.
type Response struct {
	Answer         string        `json:"answer"`
	AgentsUsed     []agent.Kind  `json:"agents_used"`
	ProcessingTime time.Duration `json:"processing_time"`
	Degraded       bool          `json:"degraded"`
	Unsynthesized  bool          `json:"unsynthesized,omitempty"`
	Cached         bool          `json:"cached,omitempty"`
	SessionID      string        `json:"session_id"`
}
