package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/jsonutil"
	"github.com/roledash/roledash-engine/pkg/llm"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/prompts"
	"github.com/roledash/roledash-engine/pkg/repositories"
	sqlvalidator "github.com/roledash/roledash-engine/pkg/sql"
)

// AnalysisService orchestrates plan generation, validation, and persistence
// for a role. Operations on the same role are serialized by a per-role lock;
// different roles proceed independently.
type AnalysisService interface {
	// Analyze regenerates the role's analysis plan from scratch. The prior
	// plan is fully replaced on success and left untouched on failure.
	Analyze(ctx context.Context, roleName string) (*models.AnalysisPlan, error)

	// CreateVisualization builds one chart from an operator description,
	// validates it by execution, and upserts it into the role's plan.
	// chartID is optional; when set, the existing chart is edited in place.
	CreateVisualization(ctx context.Context, roleName, description, chartID string, generateInsights bool) (*models.ChartDefinition, error)

	// DeleteChart removes a chart from the role's plan.
	DeleteChart(ctx context.Context, roleName, chartID string) error

	// DeleteKPI removes a KPI from the role's plan.
	DeleteKPI(ctx context.Context, roleName, kpiID string) error
}

type analysisService struct {
	configRepo repositories.RoleConfigRepository
	planRepo   repositories.PlanRepository
	dbManager  *database.Manager
	generator  PlanGenerator
	validator  PlanValidator
	insights   InsightService
	client     llm.LLMClient
	logger     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAnalysisService creates a new AnalysisService.
func NewAnalysisService(
	configRepo repositories.RoleConfigRepository,
	planRepo repositories.PlanRepository,
	dbManager *database.Manager,
	generator PlanGenerator,
	validator PlanValidator,
	insights InsightService,
	client llm.LLMClient,
	logger *zap.Logger,
) AnalysisService {
	return &analysisService{
		configRepo: configRepo,
		planRepo:   planRepo,
		dbManager:  dbManager,
		generator:  generator,
		validator:  validator,
		insights:   insights,
		client:     client,
		logger:     logger.Named("analysis-service"),
		locks:      make(map[string]*sync.Mutex),
	}
}

var _ AnalysisService = (*analysisService)(nil)

// roleLock returns the mutex serializing plan mutation for one role, keyed by
// the sanitized role name so colliding names share a lock.
func (s *analysisService) roleLock(roleName string) *sync.Mutex {
	key := database.SanitizeRoleName(roleName)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *analysisService) Analyze(ctx context.Context, roleName string) (*models.AnalysisPlan, error) {
	lock := s.roleLock(roleName)
	lock.Lock()
	defer lock.Unlock()

	roleConfig, err := s.configRepo.Get(roleName)
	if err != nil {
		return nil, err
	}
	if !s.dbManager.Exists(roleName) {
		return nil, fmt.Errorf("%w: no imported data for %s", apperrors.ErrRoleNotFound, roleName)
	}

	db, err := s.dbManager.Open(roleName)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	analysis, err := BuildAnalysisContext(ctx, db, roleName, roleConfig.SchemaDescriptions)
	if err != nil {
		return nil, err
	}

	candidate, err := s.generator.Generate(ctx, analysis)
	if err != nil {
		return nil, err
	}

	validated := s.validator.ValidateAndFinalize(ctx, db, candidate)

	if err := s.planRepo.Save(roleName, validated); err != nil {
		return nil, err
	}
	s.logger.Info("analysis plan persisted",
		zap.String("role", roleName),
		zap.Int("kpis", len(validated.KPIs)),
		zap.Int("charts", len(validated.Charts)))
	return validated, nil
}

// visualizationResponse is the expected shape of the ad-hoc chart prompt.
type visualizationResponse struct {
	Title    json.RawMessage `json:"title"`
	QuerySQL json.RawMessage `json:"query_sql"`
}

func (s *analysisService) CreateVisualization(ctx context.Context, roleName, description, chartID string, generateInsights bool) (*models.ChartDefinition, error) {
	lock := s.roleLock(roleName)
	lock.Lock()
	defer lock.Unlock()

	roleConfig, err := s.configRepo.Get(roleName)
	if err != nil {
		return nil, err
	}

	db, err := s.dbManager.OpenExisting(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: no imported data for %s", apperrors.ErrRoleNotFound, roleName)
	}
	defer db.Close()

	analysis, err := BuildAnalysisContext(ctx, db, roleName, roleConfig.SchemaDescriptions)
	if err != nil {
		return nil, err
	}

	contextJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis context: %w", err)
	}

	response, err := s.client.GenerateJSON(ctx, prompts.BuildVisualizationPrompt(analysis, description), string(contextJSON))
	if err != nil {
		return nil, apperrors.NewGenerationError("visualization", err)
	}
	parsed, err := llm.ParseJSONResponse[visualizationResponse](response)
	if err != nil {
		return nil, apperrors.NewGenerationError("visualization", err)
	}

	query := jsonutil.FlexibleStringValue(parsed.QuerySQL)
	if query == "" {
		return nil, apperrors.NewGenerationError("visualization", fmt.Errorf("response contained no query"))
	}
	normalized, err := sqlvalidator.NormalizeSelect(query)
	if err != nil {
		return nil, fmt.Errorf("generated query is invalid: %w", err)
	}

	rows, err := database.QueryRows(ctx, db, normalized)
	if err != nil {
		return nil, fmt.Errorf("generated query failed execution: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("generated query returned no rows")
	}

	title := jsonutil.FlexibleStringValue(parsed.Title)
	if title == "" {
		title = description
	}
	chart := models.ChartDefinition{
		ID:          resolveChartID(chartID, description),
		Title:       title,
		Description: description,
		Type:        inferChartType(description),
		Query:       normalized,
	}

	if _, err := s.planRepo.UpsertChart(roleName, chart); err != nil {
		return nil, err
	}

	if generateInsights {
		if _, err := s.insights.GenerateAndStore(ctx, db, &chart, rows); err != nil {
			s.logger.Warn("failed to generate insights for visualization",
				zap.String("chart_id", chart.ID), zap.Error(err))
		}
	}
	return &chart, nil
}

func (s *analysisService) DeleteChart(ctx context.Context, roleName, chartID string) error {
	lock := s.roleLock(roleName)
	lock.Lock()
	defer lock.Unlock()
	return s.planRepo.DeleteChart(roleName, chartID)
}

func (s *analysisService) DeleteKPI(ctx context.Context, roleName, kpiID string) error {
	lock := s.roleLock(roleName)
	lock.Lock()
	defer lock.Unlock()
	return s.planRepo.DeleteKPI(roleName, kpiID)
}

const chartIDMaxLength = 50

// resolveChartID keeps an explicit id (edit path) or derives one from the
// description (create path).
func resolveChartID(chartID, description string) string {
	if chartID != "" {
		return strings.TrimPrefix(chartID, "chart_")
	}
	id := strings.ToLower(description)
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, "-", "_")
	var b strings.Builder
	for _, ch := range id {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_' {
			b.WriteRune(ch)
		}
	}
	id = b.String()
	if len(id) > chartIDMaxLength {
		id = id[:chartIDMaxLength]
	}
	return id
}

// inferChartType picks a chart type from keywords in the description.
func inferChartType(description string) models.ChartType {
	desc := strings.ToLower(description)
	containsAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(desc, w) {
				return true
			}
		}
		return false
	}
	switch {
	case containsAny("line", "trend", "over time", "timeline"):
		return models.ChartLine
	case containsAny("bar", "compare", "comparison"):
		return models.ChartBar
	case containsAny("pie", "breakdown", "distribution", "share"):
		return models.ChartPie
	default:
		return models.ChartTable
	}
}
