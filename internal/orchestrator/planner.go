package orchestrator

import (
	"github.com/codescope/codescope/internal/agent"
	"github.com/codescope/codescope/internal/llm"
)

// Step is one planned agent invocation. DependsOn names the agent whose
// output feeds this step; steps with no dependency run concurrently.
type Step struct {
	Agent     agent.Kind
	DependsOn agent.Kind
}

// Plan is the ordered set of steps for one turn
type Plan struct {
	Steps []Step
}

// Agents lists the planned agent kinds in step order
func (p Plan) Agents() []agent.Kind {
	out := make([]agent.Kind, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Agent)
	}
	return out
}

// Waves groups steps into dependency layers. The first wave has no
// dependencies; each later wave depends only on earlier ones.
func (p Plan) Waves() [][]Step {
	var independent, dependent []Step
	for _, s := range p.Steps {
		if s.DependsOn == "" {
			independent = append(independent, s)
		} else {
			dependent = append(dependent, s)
		}
	}

	var waves [][]Step
	if len(independent) > 0 {
		waves = append(waves, independent)
	}
	if len(dependent) > 0 {
		waves = append(waves, dependent)
	}
	return waves
}

// BuildPlan maps a classification onto agent steps. The rule table is
// deliberate and static: the same classification always yields the same
// plan.
func BuildPlan(c llm.Classification) Plan {
	// A reindex request is an action, not a question; it goes to the
	// indexer alone whatever the complexity.
	if c.Intent == llm.IntentReindex {
		return Plan{Steps: []Step{{Agent: agent.KindIndexer}}}
	}

	switch c.Complexity {
	case llm.ComplexityComplex:
		// Complex questions always get structural evidence plus analysis
		return Plan{Steps: []Step{
			{Agent: agent.KindGraphQuery},
			{Agent: agent.KindCodeAnalyst, DependsOn: agent.KindGraphQuery},
		}}

	case llm.ComplexityMedium:
		if c.NeedsCodeAnalysis && !c.NeedsGraphQuery {
			return Plan{Steps: []Step{{Agent: agent.KindCodeAnalyst}}}
		}
		if c.NeedsCodeAnalysis {
			return Plan{Steps: []Step{
				{Agent: agent.KindGraphQuery},
				{Agent: agent.KindCodeAnalyst, DependsOn: agent.KindGraphQuery},
			}}
		}
		return Plan{Steps: []Step{{Agent: agent.KindGraphQuery}}}

	default:
		// Simple and anything unknown
		return Plan{Steps: []Step{{Agent: agent.KindGraphQuery}}}
	}
}
