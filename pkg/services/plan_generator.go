package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/jsonutil"
	"github.com/roledash/roledash-engine/pkg/llm"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/prompts"
)

// PlanGenerator produces candidate analysis plans from schema and sample
// data. It never executes generated SQL; the validator downstream is the
// only gate between candidates and the persisted plan.
type PlanGenerator interface {
	// Generate runs the three-stage prompt sequence (concepts, KPIs, charts)
	// and returns an unvalidated candidate plan. A malformed or structurally
	// invalid LLM response fails with a GenerationError naming the stage.
	Generate(ctx context.Context, analysis *models.AnalysisContext) (*models.AnalysisPlan, error)
}

type planGenerator struct {
	client llm.LLMClient
	logger *zap.Logger
}

// NewPlanGenerator creates a new PlanGenerator.
func NewPlanGenerator(client llm.LLMClient, logger *zap.Logger) PlanGenerator {
	return &planGenerator{
		client: client,
		logger: logger.Named("plan-generator"),
	}
}

var _ PlanGenerator = (*planGenerator)(nil)

// Raw candidate shapes. Fields arrive as RawMessage because LLMs routinely
// return numbers or bare scalars where strings and arrays were requested.
type conceptResponse struct {
	Concepts json.RawMessage `json:"concepts"`
	Insights json.RawMessage `json:"insights"`
}

type kpiCandidate struct {
	ID          json.RawMessage `json:"id"`
	Title       json.RawMessage `json:"title"`
	Description json.RawMessage `json:"description"`
	Formula     json.RawMessage `json:"formula"`
	Table       json.RawMessage `json:"table"`
}

type kpiResponse struct {
	KPIs []kpiCandidate `json:"kpis"`
}

type chartCandidate struct {
	ID          json.RawMessage `json:"id"`
	Title       json.RawMessage `json:"title"`
	Description json.RawMessage `json:"description"`
	Type        json.RawMessage `json:"type"`
	QuerySQL    json.RawMessage `json:"query_sql"`
}

type chartResponse struct {
	Charts []chartCandidate `json:"charts"`
}

func (g *planGenerator) Generate(ctx context.Context, analysis *models.AnalysisContext) (*models.AnalysisPlan, error) {
	contextJSON, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis context: %w", err)
	}

	concepts, insights, err := g.generateConcepts(ctx, analysis, string(contextJSON))
	if err != nil {
		return nil, err
	}
	g.logger.Info("generated concepts",
		zap.String("role", analysis.RoleName),
		zap.Int("concepts", len(concepts)))

	kpis, err := g.generateKPIs(ctx, analysis, concepts, string(contextJSON))
	if err != nil {
		return nil, err
	}

	charts, err := g.generateCharts(ctx, analysis, concepts, string(contextJSON))
	if err != nil {
		return nil, err
	}

	g.logger.Info("generated candidate plan",
		zap.String("role", analysis.RoleName),
		zap.Int("kpi_candidates", len(kpis)),
		zap.Int("chart_candidates", len(charts)))

	return &models.AnalysisPlan{
		KPIs:     kpis,
		Charts:   charts,
		Insights: insights,
	}, nil
}

func (g *planGenerator) generateConcepts(ctx context.Context, analysis *models.AnalysisContext, contextJSON string) ([]string, []string, error) {
	response, err := g.client.GenerateJSON(ctx, prompts.BuildConceptPrompt(analysis), contextJSON)
	if err != nil {
		return nil, nil, apperrors.NewGenerationError("concepts", err)
	}
	parsed, err := llm.ParseJSONResponse[conceptResponse](response)
	if err != nil {
		return nil, nil, apperrors.NewGenerationError("concepts", err)
	}
	return jsonutil.FlexibleStringSlice(parsed.Concepts), jsonutil.FlexibleStringSlice(parsed.Insights), nil
}

func (g *planGenerator) generateKPIs(ctx context.Context, analysis *models.AnalysisContext, concepts []string, contextJSON string) ([]models.KPIDefinition, error) {
	response, err := g.client.GenerateJSON(ctx, prompts.BuildKPIPrompt(analysis, concepts), contextJSON)
	if err != nil {
		return nil, apperrors.NewGenerationError("kpis", err)
	}
	parsed, err := llm.ParseJSONResponse[kpiResponse](response)
	if err != nil {
		return nil, apperrors.NewGenerationError("kpis", err)
	}
	if len(parsed.KPIs) == 0 {
		return nil, apperrors.NewGenerationError("kpis", fmt.Errorf("response contained no KPI candidates"))
	}

	kpis := make([]models.KPIDefinition, 0, len(parsed.KPIs))
	for _, c := range parsed.KPIs {
		kpi := models.KPIDefinition{
			ID:          jsonutil.FlexibleStringValue(c.ID),
			Title:       jsonutil.FlexibleStringValue(c.Title),
			Description: jsonutil.FlexibleStringValue(c.Description),
			Formula:     jsonutil.FlexibleStringValue(c.Formula),
			Table:       jsonutil.FlexibleStringValue(c.Table),
		}
		if kpi.ID == "" || kpi.Formula == "" {
			g.logger.Warn("dropping KPI candidate missing required fields",
				zap.String("role", analysis.RoleName),
				zap.String("title", kpi.Title))
			continue
		}
		kpis = append(kpis, kpi)
	}
	return kpis, nil
}

func (g *planGenerator) generateCharts(ctx context.Context, analysis *models.AnalysisContext, concepts []string, contextJSON string) ([]models.ChartDefinition, error) {
	response, err := g.client.GenerateJSON(ctx, prompts.BuildChartPrompt(analysis, concepts), contextJSON)
	if err != nil {
		return nil, apperrors.NewGenerationError("charts", err)
	}
	parsed, err := llm.ParseJSONResponse[chartResponse](response)
	if err != nil {
		return nil, apperrors.NewGenerationError("charts", err)
	}
	if len(parsed.Charts) == 0 {
		return nil, apperrors.NewGenerationError("charts", fmt.Errorf("response contained no chart candidates"))
	}

	charts := make([]models.ChartDefinition, 0, len(parsed.Charts))
	for _, c := range parsed.Charts {
		chart := models.ChartDefinition{
			ID:          jsonutil.FlexibleStringValue(c.ID),
			Title:       jsonutil.FlexibleStringValue(c.Title),
			Description: jsonutil.FlexibleStringValue(c.Description),
			Type:        models.NormalizeChartType(jsonutil.FlexibleStringValue(c.Type)),
			Query:       jsonutil.FlexibleStringValue(c.QuerySQL),
		}
		if chart.ID == "" || chart.Query == "" {
			g.logger.Warn("dropping chart candidate missing required fields",
				zap.String("role", analysis.RoleName),
				zap.String("title", chart.Title))
			continue
		}
		charts = append(charts, chart)
	}
	return charts, nil
}
