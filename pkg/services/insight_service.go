package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/llm"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/prompts"
	"github.com/roledash/roledash-engine/pkg/repositories"
)

const (
	maxInsights      = 5
	minInsightLength = 10
)

// InsightService generates and stores narrative insights for chart data.
// Insights are best-effort throughout: callers treat failures as warnings,
// never as pipeline errors.
type InsightService interface {
	// GenerateAndStore asks the LLM for insights on the chart's rows and
	// upserts the result keyed by chart id.
	GenerateAndStore(ctx context.Context, db *sql.DB, chart *models.ChartDefinition, rows []map[string]any) (*models.ChartInsight, error)

	// Generate returns insights without persisting them.
	Generate(ctx context.Context, chartTitle string, chartType models.ChartType, rows []map[string]any) ([]string, error)

	// Get returns the stored insight record for a chart id.
	Get(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error)
}

type insightService struct {
	client      llm.LLMClient
	insightRepo repositories.ChartInsightRepository
	temperature float64
	logger      *zap.Logger
}

// NewInsightService creates a new InsightService.
func NewInsightService(client llm.LLMClient, insightRepo repositories.ChartInsightRepository, temperature float64, logger *zap.Logger) InsightService {
	return &insightService{
		client:      client,
		insightRepo: insightRepo,
		temperature: temperature,
		logger:      logger.Named("insight-service"),
	}
}

var _ InsightService = (*insightService)(nil)

func (s *insightService) Generate(ctx context.Context, chartTitle string, chartType models.ChartType, rows []map[string]any) ([]string, error) {
	if len(rows) == 0 {
		return []string{"No data available for analysis."}, nil
	}

	truncated := prompts.TruncateInsightRows(rows)
	dataJSON, err := json.Marshal(truncated)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chart data: %w", err)
	}

	prompt := prompts.BuildInsightPrompt(chartTitle, chartType, len(rows)) +
		"\nData to analyze:\n" + string(dataJSON)

	response, err := s.client.GenerateResponse(ctx, prompt,
		"You are an expert data analyst producing concise bullet-point insights.",
		s.temperature)
	if err != nil {
		return nil, fmt.Errorf("failed to generate insights: %w", err)
	}

	insights := parseInsightBullets(response)
	if len(insights) == 0 {
		insights = []string{"Data analysis completed, but no specific insights were generated."}
	}
	return insights, nil
}

func (s *insightService) GenerateAndStore(ctx context.Context, db *sql.DB, chart *models.ChartDefinition, rows []map[string]any) (*models.ChartInsight, error) {
	insights, err := s.Generate(ctx, chart.Title, chart.Type, rows)
	if err != nil {
		return nil, err
	}

	record := &models.ChartInsight{
		ChartID:    chart.ID,
		ChartTitle: chart.Title,
		Insights:   insights,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.insightRepo.Upsert(ctx, db, record); err != nil {
		return nil, err
	}
	s.logger.Info("stored chart insights",
		zap.String("chart_id", chart.ID),
		zap.Int("insights", len(insights)))
	return record, nil
}

func (s *insightService) Get(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error) {
	return s.insightRepo.Get(ctx, db, chartID)
}

// parseInsightBullets extracts bullet lines from free-text LLM output,
// tolerating '-', '*', and unicode bullet markers.
func parseInsightBullets(text string) []string {
	var insights []string
	for _, line := range strings.Split(text, "\n") {
		cleaned := strings.TrimSpace(line)
		cleaned = strings.TrimLeft(cleaned, "-*• \t")
		cleaned = strings.TrimSpace(cleaned)
		if len(cleaned) > minInsightLength {
			insights = append(insights, cleaned)
		}
		if len(insights) == maxInsights {
			break
		}
	}
	return insights
}
