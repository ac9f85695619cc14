package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/agent"
	"github.com/codescope/codescope/internal/llm"
)

func TestBuildPlanRuleTable(t *testing.T) {
	tests := []struct {
		name string
		c    llm.Classification
		want []agent.Kind
	}{
		{
			name: "simple gets one graph query",
			c:    llm.Classification{Complexity: llm.ComplexitySimple, NeedsGraphQuery: true},
			want: []agent.Kind{agent.KindGraphQuery},
		},
		{
			name: "medium without analysis stays structural",
			c:    llm.Classification{Complexity: llm.ComplexityMedium, NeedsGraphQuery: true},
			want: []agent.Kind{agent.KindGraphQuery},
		},
		{
			name: "medium with analysis chains the analyst",
			c:    llm.Classification{Complexity: llm.ComplexityMedium, NeedsGraphQuery: true, NeedsCodeAnalysis: true},
			want: []agent.Kind{agent.KindGraphQuery, agent.KindCodeAnalyst},
		},
		{
			name: "medium analysis-only skips the graph stage",
			c:    llm.Classification{Complexity: llm.ComplexityMedium, NeedsCodeAnalysis: true},
			want: []agent.Kind{agent.KindCodeAnalyst},
		},
		{
			name: "complex always gets both",
			c:    llm.Classification{Complexity: llm.ComplexityComplex},
			want: []agent.Kind{agent.KindGraphQuery, agent.KindCodeAnalyst},
		},
		{
			name: "unknown complexity degrades to simple",
			c:    llm.Classification{Complexity: "weird"},
			want: []agent.Kind{agent.KindGraphQuery},
		},
		{
			name: "reindex request routes to the indexer",
			c:    llm.Classification{Complexity: llm.ComplexityMedium, Intent: llm.IntentReindex, NeedsGraphQuery: true},
			want: []agent.Kind{agent.KindIndexer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildPlan(tt.c).Agents())
		})
	}
}

func TestBuildPlanDeterministic(t *testing.T) {
	c := llm.Classification{Complexity: llm.ComplexityComplex, Entities: []string{"Widget"}}
	assert.Equal(t, BuildPlan(c), BuildPlan(c), "same classification, same plan")
}

func TestPlanWaves(t *testing.T) {
	plan := BuildPlan(llm.Classification{Complexity: llm.ComplexityComplex})
	waves := plan.Waves()

	require.Len(t, waves, 2)
	assert.Equal(t, agent.KindGraphQuery, waves[0][0].Agent)
	assert.Equal(t, agent.KindCodeAnalyst, waves[1][0].Agent)
	assert.Equal(t, agent.KindGraphQuery, waves[1][0].DependsOn)
}

func TestPlanWavesIndependentOnly(t *testing.T) {
	plan := Plan{Steps: []Step{
		{Agent: agent.KindGraphQuery},
		{Agent: agent.KindIndexer},
	}}
	waves := plan.Waves()
	require.Len(t, waves, 1)
	assert.Len(t, waves[0], 2, "independent steps share one wave")
}
