package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/llm"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/repositories"
)

func TestGenerateParsesBulletPoints(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		return strings.Join([]string{
			"- Revenue grew 40% month over month",
			"• The north region underperforms every other segment",
			"* Weekend traffic doubles weekday traffic",
			"short", // below the minimum meaningful length
			"",
			"- One more insight about seasonal ordering patterns",
			"- A fifth insight that just fits under the cap",
			"- A sixth insight that exceeds the cap and is dropped",
		}, "\n"), nil
	}
	service := newTestInsightService(mock)

	insights, err := service.Generate(context.Background(), "Revenue", models.ChartBar,
		[]map[string]any{{"x": 1}})
	require.NoError(t, err)
	require.Len(t, insights, 5)
	assert.Equal(t, "Revenue grew 40% month over month", insights[0])
	assert.Equal(t, "The north region underperforms every other segment", insights[1])
	assert.NotContains(t, insights, "short")
	assert.Equal(t, "A fifth insight that just fits under the cap", insights[4])
}

func TestGenerateEmptyDataShortCircuits(t *testing.T) {
	mock := llm.NewMockLLMClient()
	service := newTestInsightService(mock)

	insights, err := service.Generate(context.Background(), "Revenue", models.ChartBar, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"No data available for analysis."}, insights)
	assert.Zero(t, mock.GenerateResponseCalls)
}

func TestGenerateTruncatesLargeDatasets(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		// 30 rows in, at most 20 rows of data in the prompt.
		assert.Equal(t, 20, strings.Count(prompt, `"row"`))
		return "- The data shows a clear upward movement", nil
	}
	service := newTestInsightService(mock)

	rows := make([]map[string]any, 30)
	for i := range rows {
		rows[i] = map[string]any{"row": i}
	}
	_, err := service.Generate(context.Background(), "Big", models.ChartTable, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.GenerateResponseCalls)
}

func TestGenerateAndStoreUpsertsByChartID(t *testing.T) {
	db := openRoleDB(t, "insight upsert")
	repo := repositories.NewChartInsightRepository()
	mock := llm.NewMockLLMClient()
	response := "- First pass insight for the revenue chart"
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temp float64) (string, error) {
		return response, nil
	}
	service := NewInsightService(mock, repo, 0.2, zap.NewNop())

	chart := &models.ChartDefinition{ID: "chart_rev", Title: "Revenue", Type: models.ChartBar}
	rows := []map[string]any{{"region": "north", "revenue": 100.0}}

	_, err := service.GenerateAndStore(context.Background(), db, chart, rows)
	require.NoError(t, err)

	// Regenerating replaces the record rather than appending a duplicate.
	response = "- Second pass insight replacing the first"
	_, err = service.GenerateAndStore(context.Background(), db, chart, rows)
	require.NoError(t, err)

	stored, err := repo.Get(context.Background(), db, "chart_rev")
	require.NoError(t, err)
	require.Len(t, stored.Insights, 1)
	assert.Contains(t, stored.Insights[0], "Second pass")

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM app_chart_insights WHERE chart_id = 'chart_rev'`).Scan(&count))
	assert.Equal(t, 1, count)
}
