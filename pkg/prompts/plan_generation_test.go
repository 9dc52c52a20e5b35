package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roledash/roledash-engine/pkg/models"
)

func retailContext() *models.AnalysisContext {
	return &models.AnalysisContext{
		RoleName: "Store Manager",
		Tables: map[string]models.TableProfile{
			"pa_sales": {RowCount: 1000},
			"stores":   {RowCount: 45},
		},
		SchemaDescriptions: map[string]models.TableDescription{
			"pa_sales": {TableDescription: "weekly sales facts"},
		},
	}
}

func TestPrimaryTablePicksLargest(t *testing.T) {
	assert.Equal(t, "pa_sales", primaryTable(retailContext()))

	tied := &models.AnalysisContext{Tables: map[string]models.TableProfile{
		"beta": {RowCount: 10}, "alpha": {RowCount: 10},
	}}
	assert.Equal(t, "alpha", primaryTable(tied))

	assert.Equal(t, "", primaryTable(&models.AnalysisContext{}))
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, "sale", entityLabel("pa_sales"))
	assert.Equal(t, "order", entityLabel("Orders"))
	assert.Equal(t, "person", entityLabel("people"))
}

func TestBuildConceptPrompt(t *testing.T) {
	prompt := BuildConceptPrompt(retailContext())
	assert.Contains(t, prompt, "'Store Manager'")
	assert.Contains(t, prompt, "`pa_sales`")
	assert.Contains(t, prompt, `"concepts"`)
	assert.Contains(t, prompt, "schema_descriptions")
	assert.NotContains(t, prompt, "CRITICAL RULES")
}

func TestBuildKPIPrompt(t *testing.T) {
	prompt := BuildKPIPrompt(retailContext(), []string{"weekly revenue", "store comparison"})
	assert.Contains(t, prompt, "## CRITICAL RULES")
	assert.Contains(t, prompt, "100% valid SQLite")
	assert.Contains(t, prompt, "- weekly revenue")
	assert.Contains(t, prompt, "- store comparison")
	assert.Contains(t, prompt, "exactly one row with a single numeric value")
	assert.Contains(t, prompt, `"table": "pa_sales"`)
}

func TestBuildChartPrompt(t *testing.T) {
	prompt := BuildChartPrompt(retailContext(), nil)
	assert.Contains(t, prompt, "## CRITICAL RULES")
	assert.Contains(t, prompt, "line, bar, pie, table")
	assert.Contains(t, prompt, `"query_sql"`)
	assert.NotContains(t, prompt, "## Concepts To Cover")
}

func TestBuildVisualizationPrompt(t *testing.T) {
	prompt := BuildVisualizationPrompt(retailContext(), "revenue by store as a bar chart")
	assert.Contains(t, prompt, "## Requested Visualization\nrevenue by store as a bar chart")
	assert.Contains(t, prompt, "## CRITICAL RULES")
	assert.Contains(t, prompt, `"title"`)
}

func TestBuildInsightPrompt(t *testing.T) {
	prompt := BuildInsightPrompt("Revenue by Region", models.ChartBar, 12)
	assert.Contains(t, prompt, "Chart Title: Revenue by Region")
	assert.Contains(t, prompt, "Chart Type: bar")
	assert.Contains(t, prompt, "Data Records: 12")
	assert.Contains(t, prompt, "bullet-point list")
}

func TestTruncateInsightRows(t *testing.T) {
	rows := make([]map[string]any, 30)
	assert.Len(t, TruncateInsightRows(rows), maxInsightRecords)

	short := rows[:5]
	assert.Len(t, TruncateInsightRows(short), 5)
	assert.Nil(t, TruncateInsightRows(nil))
}
