package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/services"
	sqlvalidator "github.com/roledash/roledash-engine/pkg/sql"
)

// CreateRoleRequest represents the request body for role creation.
type CreateRoleRequest struct {
	RoleName      string          `json:"role_name"`
	SourceProject string          `json:"source_project"`
	SourceDataset string          `json:"source_dataset"`
	SourceTables  []string        `json:"source_tables"`
	Credential    json.RawMessage `json:"credential,omitempty"`
}

// RoleNameRequest carries the role name for the import/analyze/finalize steps.
type RoleNameRequest struct {
	RoleName string `json:"role_name"`
}

// ImportResponse reports the outcome of a dataset import.
type ImportResponse struct {
	OK                   bool  `json:"ok"`
	TotalRecordsImported int64 `json:"total_records_imported"`
}

// PlanResponse wraps an analysis plan.
type PlanResponse struct {
	OK   bool                 `json:"ok"`
	Plan *models.AnalysisPlan `json:"plan"`
}

// FinalizeResponse reports the completed onboarding state for a role.
type FinalizeResponse struct {
	OK     bool                 `json:"ok"`
	Config *models.RoleConfig   `json:"config"`
	Plan   *models.AnalysisPlan `json:"plan"`
}

// SchemaResponse describes a role's imported tables.
type SchemaResponse struct {
	OK     bool                   `json:"ok"`
	Tables []models.ImportedTable `json:"tables"`
}

// RoleHandler handles custom role onboarding: create, import, analyze,
// finalize, and the read-side listing and schema endpoints.
type RoleHandler struct {
	roleService     services.RoleService
	importService   services.ImportService
	analysisService services.AnalysisService
	planReader      PlanReader
	logger          *zap.Logger
}

// PlanReader is the slice of the plan store the role handler needs.
type PlanReader interface {
	Get(roleName string) (*models.AnalysisPlan, error)
}

// NewRoleHandler creates a new RoleHandler.
func NewRoleHandler(
	roleService services.RoleService,
	importService services.ImportService,
	analysisService services.AnalysisService,
	planReader PlanReader,
	logger *zap.Logger,
) *RoleHandler {
	return &RoleHandler{
		roleService:     roleService,
		importService:   importService,
		analysisService: analysisService,
		planReader:      planReader,
		logger:          logger,
	}
}

// RegisterRoutes registers the role handler's routes on the given mux.
func (h *RoleHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/custom_roles", h.List)
	mux.HandleFunc("POST /api/new_role/create", h.Create)
	mux.HandleFunc("POST /api/new_role/import", h.Import)
	mux.HandleFunc("POST /api/new_role/analyze", h.Analyze)
	mux.HandleFunc("POST /api/new_role/finalize", h.Finalize)
	mux.HandleFunc("GET /api/custom_role/schema", h.Schema)
}

// List handles GET /api/custom_roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list roles", zap.Error(err))
		writeError(h.logger, w, http.StatusInternalServerError, "list_failed", "Failed to list roles")
		return
	}
	if roles == nil {
		roles = []models.RoleSummary{}
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "roles": roles}); err != nil {
		h.logger.Error("Failed to encode role list", zap.Error(err))
	}
}

// Create handles POST /api/new_role/create.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if !h.screenRoleName(w, req.RoleName) {
		return
	}

	cfg, err := h.roleService.Create(r.Context(), services.CreateRoleRequest{
		RoleName:      req.RoleName,
		SourceProject: req.SourceProject,
		SourceDataset: req.SourceDataset,
		SourceTables:  req.SourceTables,
		Credential:    req.Credential,
	})
	if err != nil {
		h.logger.Warn("Failed to create role", zap.String("role", req.RoleName), zap.Error(err))
		writeError(h.logger, w, http.StatusBadRequest, "create_failed", err.Error())
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "config": cfg}); err != nil {
		h.logger.Error("Failed to encode create response", zap.Error(err))
	}
}

// Import handles POST /api/new_role/import.
func (h *RoleHandler) Import(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRoleName(w, r)
	if !ok {
		return
	}

	total, err := h.importService.Import(r.Context(), req.RoleName)
	if err != nil {
		h.writeRoleError(w, req.RoleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, ImportResponse{OK: true, TotalRecordsImported: total}); err != nil {
		h.logger.Error("Failed to encode import response", zap.Error(err))
	}
}

// Analyze handles POST /api/new_role/analyze.
func (h *RoleHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRoleName(w, r)
	if !ok {
		return
	}

	plan, err := h.analysisService.Analyze(r.Context(), req.RoleName)
	if err != nil {
		h.writeRoleError(w, req.RoleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, PlanResponse{OK: true, Plan: plan}); err != nil {
		h.logger.Error("Failed to encode analyze response", zap.Error(err))
	}
}

// Finalize handles POST /api/new_role/finalize. Returns the completed
// onboarding state: the role config and its validated plan.
func (h *RoleHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRoleName(w, r)
	if !ok {
		return
	}

	cfg, err := h.roleService.Get(r.Context(), req.RoleName)
	if err != nil {
		h.writeRoleError(w, req.RoleName, err)
		return
	}
	plan, err := h.planReader.Get(req.RoleName)
	if err != nil {
		if errors.Is(err, apperrors.ErrPlanNotFound) {
			writeError(h.logger, w, http.StatusConflict, "no_plan", "Role has no analysis plan; run analyze first")
			return
		}
		h.writeRoleError(w, req.RoleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, FinalizeResponse{OK: true, Config: cfg, Plan: plan}); err != nil {
		h.logger.Error("Failed to encode finalize response", zap.Error(err))
	}
}

// Schema handles GET /api/custom_role/schema?role_name=X.
func (h *RoleHandler) Schema(w http.ResponseWriter, r *http.Request) {
	roleName := r.URL.Query().Get("role_name")
	if !h.screenRoleName(w, roleName) {
		return
	}

	tables, err := h.roleService.Schema(r.Context(), roleName)
	if err != nil {
		h.writeRoleError(w, roleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, SchemaResponse{OK: true, Tables: tables}); err != nil {
		h.logger.Error("Failed to encode schema response", zap.Error(err))
	}
}

func (h *RoleHandler) decodeRoleName(w http.ResponseWriter, r *http.Request) (RoleNameRequest, bool) {
	var req RoleNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return req, false
	}
	if !h.screenRoleName(w, req.RoleName) {
		return req, false
	}
	return req, true
}

// screenRoleName rejects empty names and injection patterns before the name
// reaches storage keys.
func (h *RoleHandler) screenRoleName(w http.ResponseWriter, roleName string) bool {
	if roleName == "" {
		writeError(h.logger, w, http.StatusBadRequest, "missing_role_name", "Missing role_name")
		return false
	}
	if result := sqlvalidator.CheckParameterForInjection("role_name", roleName); result != nil {
		h.logger.Warn("rejected role name with injection pattern",
			zap.String("fingerprint", result.Fingerprint))
		writeError(h.logger, w, http.StatusBadRequest, "invalid_role_name", "Invalid role_name")
		return false
	}
	return true
}

// writeRoleError maps pipeline errors onto HTTP statuses.
func (h *RoleHandler) writeRoleError(w http.ResponseWriter, roleName string, err error) {
	var (
		importErr     *apperrors.ImportError
		generationErr *apperrors.GenerationError
	)
	switch {
	case errors.Is(err, apperrors.ErrRoleNotFound):
		writeError(h.logger, w, http.StatusNotFound, "role_not_found", "Role not found: "+roleName)
	case errors.Is(err, apperrors.ErrNoDataTables):
		writeError(h.logger, w, http.StatusConflict, "no_data_tables", "Role has no imported data tables")
	case errors.As(err, &importErr):
		h.logger.Error("Import failed", zap.String("role", roleName), zap.Error(err))
		writeError(h.logger, w, http.StatusBadGateway, "import_failed", importErr.Error())
	case errors.As(err, &generationErr):
		h.logger.Error("Plan generation failed", zap.String("role", roleName), zap.Error(err))
		writeError(h.logger, w, http.StatusBadGateway, "generation_failed", generationErr.Error())
	default:
		h.logger.Error("Role operation failed", zap.String("role", roleName), zap.Error(err))
		writeError(h.logger, w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
