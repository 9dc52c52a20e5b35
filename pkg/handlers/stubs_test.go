package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/services"
)

// Func-field stubs for the service interfaces the handlers depend on.

type stubRoleService struct {
	CreateFunc func(ctx context.Context, req services.CreateRoleRequest) (*models.RoleConfig, error)
	GetFunc    func(ctx context.Context, roleName string) (*models.RoleConfig, error)
	ListFunc   func(ctx context.Context) ([]models.RoleSummary, error)
	SchemaFunc func(ctx context.Context, roleName string) ([]models.ImportedTable, error)
}

func (s *stubRoleService) Create(ctx context.Context, req services.CreateRoleRequest) (*models.RoleConfig, error) {
	return s.CreateFunc(ctx, req)
}

func (s *stubRoleService) Get(ctx context.Context, roleName string) (*models.RoleConfig, error) {
	return s.GetFunc(ctx, roleName)
}

func (s *stubRoleService) List(ctx context.Context) ([]models.RoleSummary, error) {
	return s.ListFunc(ctx)
}

func (s *stubRoleService) Schema(ctx context.Context, roleName string) ([]models.ImportedTable, error) {
	return s.SchemaFunc(ctx, roleName)
}

type stubImportService struct {
	ImportFunc func(ctx context.Context, roleName string) (int64, error)
}

func (s *stubImportService) Import(ctx context.Context, roleName string) (int64, error) {
	return s.ImportFunc(ctx, roleName)
}

type stubAnalysisService struct {
	AnalyzeFunc             func(ctx context.Context, roleName string) (*models.AnalysisPlan, error)
	CreateVisualizationFunc func(ctx context.Context, roleName, description, chartID string, generateInsights bool) (*models.ChartDefinition, error)
	DeleteChartFunc         func(ctx context.Context, roleName, chartID string) error
	DeleteKPIFunc           func(ctx context.Context, roleName, kpiID string) error
}

func (s *stubAnalysisService) Analyze(ctx context.Context, roleName string) (*models.AnalysisPlan, error) {
	return s.AnalyzeFunc(ctx, roleName)
}

func (s *stubAnalysisService) CreateVisualization(ctx context.Context, roleName, description, chartID string, generateInsights bool) (*models.ChartDefinition, error) {
	return s.CreateVisualizationFunc(ctx, roleName, description, chartID, generateInsights)
}

func (s *stubAnalysisService) DeleteChart(ctx context.Context, roleName, chartID string) error {
	return s.DeleteChartFunc(ctx, roleName, chartID)
}

func (s *stubAnalysisService) DeleteKPI(ctx context.Context, roleName, kpiID string) error {
	return s.DeleteKPIFunc(ctx, roleName, kpiID)
}

type stubMetricsService struct {
	MetricsFunc func(ctx context.Context, roleName string) (map[string]any, error)
}

func (s *stubMetricsService) Metrics(ctx context.Context, roleName string) (map[string]any, error) {
	return s.MetricsFunc(ctx, roleName)
}

type stubInsightService struct {
	GenerateAndStoreFunc func(ctx context.Context, db *sql.DB, chart *models.ChartDefinition, rows []map[string]any) (*models.ChartInsight, error)
	GenerateFunc         func(ctx context.Context, chartTitle string, chartType models.ChartType, rows []map[string]any) ([]string, error)
	GetFunc              func(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error)
}

func (s *stubInsightService) GenerateAndStore(ctx context.Context, db *sql.DB, chart *models.ChartDefinition, rows []map[string]any) (*models.ChartInsight, error) {
	return s.GenerateAndStoreFunc(ctx, db, chart, rows)
}

func (s *stubInsightService) Generate(ctx context.Context, chartTitle string, chartType models.ChartType, rows []map[string]any) ([]string, error) {
	return s.GenerateFunc(ctx, chartTitle, chartType, rows)
}

func (s *stubInsightService) Get(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error) {
	return s.GetFunc(ctx, db, chartID)
}

type stubPlanReader struct {
	GetFunc func(roleName string) (*models.AnalysisPlan, error)
}

func (s *stubPlanReader) Get(roleName string) (*models.AnalysisPlan, error) {
	return s.GetFunc(roleName)
}

// decodeBody parses the recorded JSON response body.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
