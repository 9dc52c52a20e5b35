package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/services"
)

type roleHandlerEnv struct {
	roleService     *stubRoleService
	importService   *stubImportService
	analysisService *stubAnalysisService
	planReader      *stubPlanReader
	mux             *http.ServeMux
}

func newRoleHandlerEnv() *roleHandlerEnv {
	env := &roleHandlerEnv{
		roleService:     &stubRoleService{},
		importService:   &stubImportService{},
		analysisService: &stubAnalysisService{},
		planReader:      &stubPlanReader{},
	}
	env.mux = http.NewServeMux()
	NewRoleHandler(env.roleService, env.importService, env.analysisService, env.planReader, zap.NewNop()).
		RegisterRoutes(env.mux)
	return env
}

func (env *roleHandlerEnv) do(method, path, body string) *httptest.ResponseRecorder {
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

func TestListRoles(t *testing.T) {
	env := newRoleHandlerEnv()
	env.roleService.ListFunc = func(ctx context.Context) ([]models.RoleSummary, error) {
		return []models.RoleSummary{{Name: "ops", ID: "ops", Created: time.Now()}}, nil
	}

	rec := env.do(http.MethodGet, "/api/custom_roles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Len(t, body["roles"], 1)
}

func TestListRolesEmptyIsArray(t *testing.T) {
	env := newRoleHandlerEnv()
	env.roleService.ListFunc = func(ctx context.Context) ([]models.RoleSummary, error) {
		return nil, nil
	}

	rec := env.do(http.MethodGet, "/api/custom_roles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"roles":[]`)
}

func TestCreateRole(t *testing.T) {
	env := newRoleHandlerEnv()
	var got services.CreateRoleRequest
	env.roleService.CreateFunc = func(ctx context.Context, req services.CreateRoleRequest) (*models.RoleConfig, error) {
		got = req
		return &models.RoleConfig{RoleName: req.RoleName, HasCredential: true}, nil
	}

	rec := env.do(http.MethodPost, "/api/new_role/create", `{
		"role_name": "Store Manager",
		"source_dataset": "retail",
		"source_tables": ["sales"],
		"credential": {"driver": "postgres", "dsn": "postgres://u:p@h/db"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Store Manager", got.RoleName)
	assert.Equal(t, []string{"sales"}, got.SourceTables)
	assert.NotEmpty(t, got.Credential)
}

func TestCreateRoleRejectsBadNames(t *testing.T) {
	env := newRoleHandlerEnv()

	rec := env.do(http.MethodPost, "/api/new_role/create", `{"role_name": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_role_name", decodeBody(t, rec)["error"])

	rec = env.do(http.MethodPost, "/api/new_role/create", `{"role_name": "x' OR '1'='1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_role_name", decodeBody(t, rec)["error"])
}

func TestImportReportsTotal(t *testing.T) {
	env := newRoleHandlerEnv()
	env.importService.ImportFunc = func(ctx context.Context, roleName string) (int64, error) {
		return 1234, nil
	}

	rec := env.do(http.MethodPost, "/api/new_role/import", `{"role_name": "ops"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1234), decodeBody(t, rec)["total_records_imported"])
}

func TestImportErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"unknown role", apperrors.ErrRoleNotFound, http.StatusNotFound, "role_not_found"},
		{"source failure", apperrors.NewImportError("sales", errors.New("connection refused")), http.StatusBadGateway, "import_failed"},
		{"unexpected", errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newRoleHandlerEnv()
			env.importService.ImportFunc = func(ctx context.Context, roleName string) (int64, error) {
				return 0, tc.err
			}
			rec := env.do(http.MethodPost, "/api/new_role/import", `{"role_name": "ops"}`)
			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, tc.expectedCode, decodeBody(t, rec)["error"])
		})
	}
}

func TestAnalyzeErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"no data", apperrors.ErrNoDataTables, http.StatusConflict, "no_data_tables"},
		{"llm failure", apperrors.NewGenerationError("kpis", errors.New("bad json")), http.StatusBadGateway, "generation_failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := newRoleHandlerEnv()
			env.analysisService.AnalyzeFunc = func(ctx context.Context, roleName string) (*models.AnalysisPlan, error) {
				return nil, tc.err
			}
			rec := env.do(http.MethodPost, "/api/new_role/analyze", `{"role_name": "ops"}`)
			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, tc.expectedCode, decodeBody(t, rec)["error"])
		})
	}
}

func TestAnalyzeReturnsPlan(t *testing.T) {
	env := newRoleHandlerEnv()
	env.analysisService.AnalyzeFunc = func(ctx context.Context, roleName string) (*models.AnalysisPlan, error) {
		return &models.AnalysisPlan{KPIs: []models.KPIDefinition{{ID: "k"}}}, nil
	}

	rec := env.do(http.MethodPost, "/api/new_role/analyze", `{"role_name": "ops"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	plan, ok := body["plan"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, plan["kpis"], 1)
}

func TestFinalizeWithoutPlan(t *testing.T) {
	env := newRoleHandlerEnv()
	env.roleService.GetFunc = func(ctx context.Context, roleName string) (*models.RoleConfig, error) {
		return &models.RoleConfig{RoleName: roleName}, nil
	}
	env.planReader.GetFunc = func(roleName string) (*models.AnalysisPlan, error) {
		return nil, apperrors.ErrPlanNotFound
	}

	rec := env.do(http.MethodPost, "/api/new_role/finalize", `{"role_name": "ops"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_plan", decodeBody(t, rec)["error"])
}

func TestFinalizeReturnsConfigAndPlan(t *testing.T) {
	env := newRoleHandlerEnv()
	env.roleService.GetFunc = func(ctx context.Context, roleName string) (*models.RoleConfig, error) {
		return &models.RoleConfig{RoleName: roleName, TotalRecords: 10}, nil
	}
	env.planReader.GetFunc = func(roleName string) (*models.AnalysisPlan, error) {
		return &models.AnalysisPlan{Insights: []string{"i"}}, nil
	}

	rec := env.do(http.MethodPost, "/api/new_role/finalize", `{"role_name": "ops"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotNil(t, body["config"])
	assert.NotNil(t, body["plan"])
}

func TestSchemaRequiresRoleName(t *testing.T) {
	env := newRoleHandlerEnv()
	rec := env.do(http.MethodGet, "/api/custom_role/schema", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchemaReturnsTables(t *testing.T) {
	env := newRoleHandlerEnv()
	env.roleService.SchemaFunc = func(ctx context.Context, roleName string) ([]models.ImportedTable, error) {
		return []models.ImportedTable{{Name: "sales", RowCount: 7}}, nil
	}

	rec := env.do(http.MethodGet, "/api/custom_role/schema?role_name=ops", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["tables"], 1)
}
