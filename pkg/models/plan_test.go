package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChartType(t *testing.T) {
	assert.Equal(t, ChartLine, NormalizeChartType("line"))
	assert.Equal(t, ChartBar, NormalizeChartType(" BAR "))
	assert.Equal(t, ChartPie, NormalizeChartType("Pie"))
	assert.Equal(t, ChartTable, NormalizeChartType("table"))
	assert.Equal(t, ChartTable, NormalizeChartType("scatter"))
	assert.Equal(t, ChartTable, NormalizeChartType(""))
}

func TestUpsertChart(t *testing.T) {
	plan := &AnalysisPlan{Charts: []ChartDefinition{{ID: "a", Title: "A"}}}

	replaced := plan.UpsertChart(ChartDefinition{ID: "a", Title: "A v2"})
	assert.True(t, replaced)
	require.Len(t, plan.Charts, 1)
	assert.Equal(t, "A v2", plan.Charts[0].Title)

	replaced = plan.UpsertChart(ChartDefinition{ID: "b", Title: "B"})
	assert.False(t, replaced)
	assert.Len(t, plan.Charts, 2)
}

func TestRemoveChart(t *testing.T) {
	plan := &AnalysisPlan{Charts: []ChartDefinition{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	assert.True(t, plan.RemoveChart("b"))
	require.Len(t, plan.Charts, 2)
	assert.Equal(t, "a", plan.Charts[0].ID)
	assert.Equal(t, "c", plan.Charts[1].ID)

	assert.False(t, plan.RemoveChart("b"))
	assert.Len(t, plan.Charts, 2)
}

func TestFindChart(t *testing.T) {
	plan := &AnalysisPlan{Charts: []ChartDefinition{{ID: "a", Title: "A"}}}

	chart := plan.FindChart("a")
	require.NotNil(t, chart)
	assert.Equal(t, "A", chart.Title)

	// The pointer addresses the plan's own entry.
	chart.Title = "mutated"
	assert.Equal(t, "mutated", plan.Charts[0].Title)

	assert.Nil(t, plan.FindChart("missing"))
}

func TestUpsertAndRemoveKPI(t *testing.T) {
	plan := &AnalysisPlan{}

	assert.False(t, plan.UpsertKPI(KPIDefinition{ID: "k", Title: "K"}))
	assert.True(t, plan.UpsertKPI(KPIDefinition{ID: "k", Title: "K v2"}))
	require.Len(t, plan.KPIs, 1)
	assert.Equal(t, "K v2", plan.KPIs[0].Title)

	assert.True(t, plan.RemoveKPI("k"))
	assert.False(t, plan.RemoveKPI("k"))
	assert.Empty(t, plan.KPIs)
}
