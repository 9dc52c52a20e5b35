package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
)

type metricsHandlerEnv struct {
	metricsService  *stubMetricsService
	analysisService *stubAnalysisService
	insightService  *stubInsightService
	roleService     *stubRoleService
	planReader      *stubPlanReader
	dbManager       *database.Manager
	mux             *http.ServeMux
}

func newMetricsHandlerEnv(t *testing.T) *metricsHandlerEnv {
	t.Helper()
	dbManager, err := database.NewManager(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	env := &metricsHandlerEnv{
		metricsService:  &stubMetricsService{},
		analysisService: &stubAnalysisService{},
		insightService:  &stubInsightService{},
		roleService: &stubRoleService{
			GetFunc: func(ctx context.Context, roleName string) (*models.RoleConfig, error) {
				return nil, apperrors.ErrRoleNotFound
			},
		},
		planReader: &stubPlanReader{
			GetFunc: func(roleName string) (*models.AnalysisPlan, error) {
				return nil, apperrors.ErrPlanNotFound
			},
		},
		dbManager: dbManager,
	}
	env.mux = http.NewServeMux()
	NewMetricsHandler(
		env.metricsService, env.analysisService, env.insightService,
		env.roleService, env.planReader, env.dbManager, zap.NewNop(),
	).RegisterRoutes(env.mux)
	return env
}

// provisionRole creates the role's SQLite store so OpenExisting succeeds.
func (env *metricsHandlerEnv) provisionRole(t *testing.T, roleName string) {
	t.Helper()
	db, err := env.dbManager.Open(roleName)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func (env *metricsHandlerEnv) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	env.mux.ServeHTTP(rec, req)
	return rec
}

func TestMetricsEndpoint(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.metricsService.MetricsFunc = func(ctx context.Context, roleName string) (map[string]any, error) {
		return map[string]any{"table_sales_row_count": 7}, nil
	}
	env.planReader.GetFunc = func(roleName string) (*models.AnalysisPlan, error) {
		return &models.AnalysisPlan{Insights: []string{"i"}}, nil
	}
	env.roleService.GetFunc = func(ctx context.Context, roleName string) (*models.RoleConfig, error) {
		return &models.RoleConfig{RoleName: roleName}, nil
	}

	rec := env.do(http.MethodGet, "/api/custom_role/metrics?role_name=ops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.NotNil(t, body["metrics"])
	assert.NotNil(t, body["plan"])
	assert.NotNil(t, body["metadata"])
}

func TestMetricsOmitsPlanWhenAbsent(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.metricsService.MetricsFunc = func(ctx context.Context, roleName string) (map[string]any, error) {
		return map[string]any{}, nil
	}

	rec := env.do(http.MethodGet, "/api/custom_role/metrics?role_name=ops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	_, hasPlan := body["plan"]
	assert.False(t, hasPlan)
	_, hasMetadata := body["metadata"]
	assert.False(t, hasMetadata)
}

func TestMetricsRequiresRoleName(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	rec := env.do(http.MethodGet, "/api/custom_role/metrics", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_role_name", decodeBody(t, rec)["error"])
}

func TestMetricsUnknownRole(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.metricsService.MetricsFunc = func(ctx context.Context, roleName string) (map[string]any, error) {
		return nil, apperrors.ErrRoleNotFound
	}

	rec := env.do(http.MethodGet, "/api/custom_role/metrics?role_name=ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "role_not_found", decodeBody(t, rec)["error"])
}

func TestCreateVisualizationDefaultsInsightsOn(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	var gotInsights bool
	env.analysisService.CreateVisualizationFunc = func(ctx context.Context, roleName, description, chartID string, generateInsights bool) (*models.ChartDefinition, error) {
		gotInsights = generateInsights
		return &models.ChartDefinition{ID: "rev_share", Type: models.ChartPie}, nil
	}

	rec := env.do(http.MethodPost, "/api/custom_role/create_visualization",
		`{"role_name": "ops", "description": "revenue share"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gotInsights)

	body := decodeBody(t, rec)
	assert.Equal(t, "rev_share", body["chart_id"])
	assert.Equal(t, "pie", body["chart_type"])
}

func TestCreateVisualizationInsightsOptOut(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	var gotInsights bool
	env.analysisService.CreateVisualizationFunc = func(ctx context.Context, roleName, description, chartID string, generateInsights bool) (*models.ChartDefinition, error) {
		gotInsights = generateInsights
		return &models.ChartDefinition{ID: "x", Type: models.ChartTable}, nil
	}

	rec := env.do(http.MethodPost, "/api/custom_role/create_visualization",
		`{"role_name": "ops", "description": "raw rows", "generate_insights": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gotInsights)
}

func TestCreateVisualizationRequiresDescription(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	rec := env.do(http.MethodPost, "/api/custom_role/create_visualization",
		`{"role_name": "ops"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_description", decodeBody(t, rec)["error"])
}

func TestDeleteChartViaPath(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	var gotRole, gotChart string
	env.analysisService.DeleteChartFunc = func(ctx context.Context, roleName, chartID string) error {
		gotRole, gotChart = roleName, chartID
		return nil
	}

	rec := env.do(http.MethodDelete, "/api/custom_role/charts/ops/chart_rev", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", gotRole)
	assert.Equal(t, "chart_rev", gotChart)
}

func TestDeleteChartViaPost(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.analysisService.DeleteChartFunc = func(ctx context.Context, roleName, chartID string) error {
		return apperrors.ErrChartNotFound
	}

	rec := env.do(http.MethodPost, "/api/custom_role/delete_chart",
		`{"role_name": "ops", "chart_id": "gone"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "chart_not_found", decodeBody(t, rec)["error"])
}

func TestGetInsights(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.provisionRole(t, "ops")
	env.insightService.GetFunc = func(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error) {
		return &models.ChartInsight{ChartID: chartID, Insights: []string{"a"}}, nil
	}

	rec := env.do(http.MethodGet, "/api/custom_role/insights/ops/chart_rev", "")
	require.Equal(t, http.StatusOK, rec.Code)
	insights, ok := decodeBody(t, rec)["insights"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "chart_rev", insights["chart_id"])
}

func TestGetInsightsNotFound(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.provisionRole(t, "ops")
	env.insightService.GetFunc = func(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error) {
		return nil, apperrors.ErrInsightNotFound
	}

	rec := env.do(http.MethodGet, "/api/custom_role/insights/ops/chart_rev", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "insights_not_found", decodeBody(t, rec)["error"])
}

func TestGetInsightsUnknownRole(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	rec := env.do(http.MethodGet, "/api/custom_role/insights/ghost/chart_rev", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "role_not_found", decodeBody(t, rec)["error"])
}

func TestRegenerateInsightsWithoutChartID(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.insightService.GenerateFunc = func(ctx context.Context, chartTitle string, chartType models.ChartType, rows []map[string]any) ([]string, error) {
		assert.Equal(t, models.ChartTable, chartType)
		return []string{"fresh insight"}, nil
	}

	rec := env.do(http.MethodPost, "/api/chart/insights",
		`{"role_name": "ops", "chart_title": "Revenue", "data": [{"x": 1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["insights"], 1)
}

func TestRegenerateInsightsStoresWithChartID(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	env.provisionRole(t, "ops")
	env.insightService.GenerateAndStoreFunc = func(ctx context.Context, db *sql.DB, chart *models.ChartDefinition, rows []map[string]any) (*models.ChartInsight, error) {
		assert.Equal(t, "chart_rev", chart.ID)
		assert.Equal(t, models.ChartBar, chart.Type)
		return &models.ChartInsight{ChartID: chart.ID, Insights: []string{"stored"}}, nil
	}

	rec := env.do(http.MethodPost, "/api/chart/insights",
		`{"role_name": "ops", "chart_id": "chart_rev", "chart_title": "Revenue", "chart_type": "bar", "data": [{"x": 1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRegenerateInsightsRequiresData(t *testing.T) {
	env := newMetricsHandlerEnv(t)
	rec := env.do(http.MethodPost, "/api/chart/insights",
		`{"role_name": "ops", "chart_title": "Revenue", "data": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_data", decodeBody(t, rec)["error"])
}
