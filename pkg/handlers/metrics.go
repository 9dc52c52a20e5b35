package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/services"
	sqlvalidator "github.com/roledash/roledash-engine/pkg/sql"
)

// CreateVisualizationRequest represents the request body for the ad-hoc
// visualization endpoint.
type CreateVisualizationRequest struct {
	RoleName         string `json:"role_name"`
	Description      string `json:"description"`
	ChartID          string `json:"chart_id,omitempty"`
	GenerateInsights *bool  `json:"generate_insights,omitempty"`
}

// DeleteChartRequest represents the POST variant of chart deletion.
type DeleteChartRequest struct {
	RoleName string `json:"role_name"`
	ChartID  string `json:"chart_id"`
}

// ChartInsightsRequest represents the request body for on-demand insight
// regeneration from caller-supplied chart data.
type ChartInsightsRequest struct {
	RoleName   string           `json:"role_name"`
	ChartID    string           `json:"chart_id,omitempty"`
	ChartTitle string           `json:"chart_title"`
	ChartType  string           `json:"chart_type,omitempty"`
	Data       []map[string]any `json:"data"`
}

// MetricsHandler serves the dashboard read side: metrics replay, ad-hoc
// visualizations, chart deletion, and stored insights.
type MetricsHandler struct {
	metricsService  services.MetricsService
	analysisService services.AnalysisService
	insightService  services.InsightService
	roleService     services.RoleService
	planReader      PlanReader
	dbManager       *database.Manager
	logger          *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(
	metricsService services.MetricsService,
	analysisService services.AnalysisService,
	insightService services.InsightService,
	roleService services.RoleService,
	planReader PlanReader,
	dbManager *database.Manager,
	logger *zap.Logger,
) *MetricsHandler {
	return &MetricsHandler{
		metricsService:  metricsService,
		analysisService: analysisService,
		insightService:  insightService,
		roleService:     roleService,
		planReader:      planReader,
		dbManager:       dbManager,
		logger:          logger,
	}
}

// RegisterRoutes registers the metrics handler's routes on the given mux.
func (h *MetricsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/custom_role/metrics", h.Metrics)
	mux.HandleFunc("POST /api/custom_role/create_visualization", h.CreateVisualization)
	mux.HandleFunc("DELETE /api/custom_role/charts/{role_name}/{chart_id}", h.DeleteChart)
	mux.HandleFunc("POST /api/custom_role/delete_chart", h.DeleteChartPost)
	mux.HandleFunc("GET /api/custom_role/insights/{role_name}/{chart_id}", h.GetInsights)
	mux.HandleFunc("POST /api/chart/insights", h.RegenerateInsights)
}

// Metrics handles GET /api/custom_role/metrics?role_name=X.
// Returns the live metric replay plus the stored plan and role metadata.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	roleName := r.URL.Query().Get("role_name")
	if !h.screen(w, "role_name", roleName) {
		return
	}

	metrics, err := h.metricsService.Metrics(r.Context(), roleName)
	if err != nil {
		h.writeMetricsError(w, roleName, err)
		return
	}

	response := map[string]any{"ok": true, "metrics": metrics}
	if plan, err := h.planReader.Get(roleName); err == nil {
		response["plan"] = plan
	}
	if cfg, err := h.roleService.Get(r.Context(), roleName); err == nil {
		response["metadata"] = cfg
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode metrics response", zap.Error(err))
	}
}

// CreateVisualization handles POST /api/custom_role/create_visualization.
func (h *MetricsHandler) CreateVisualization(w http.ResponseWriter, r *http.Request) {
	var req CreateVisualizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if !h.screen(w, "role_name", req.RoleName) {
		return
	}
	if req.Description == "" {
		writeError(h.logger, w, http.StatusBadRequest, "missing_description", "Missing description")
		return
	}

	generateInsights := true
	if req.GenerateInsights != nil {
		generateInsights = *req.GenerateInsights
	}

	chart, err := h.analysisService.CreateVisualization(r.Context(), req.RoleName, req.Description, req.ChartID, generateInsights)
	if err != nil {
		h.writeMetricsError(w, req.RoleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"message":    "Visualization created successfully",
		"chart_id":   chart.ID,
		"chart_type": chart.Type,
	}); err != nil {
		h.logger.Error("Failed to encode visualization response", zap.Error(err))
	}
}

// DeleteChart handles DELETE /api/custom_role/charts/{role_name}/{chart_id}.
func (h *MetricsHandler) DeleteChart(w http.ResponseWriter, r *http.Request) {
	h.deleteChart(w, r, r.PathValue("role_name"), r.PathValue("chart_id"))
}

// DeleteChartPost handles POST /api/custom_role/delete_chart for clients
// that cannot issue DELETE requests.
func (h *MetricsHandler) DeleteChartPost(w http.ResponseWriter, r *http.Request) {
	var req DeleteChartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	h.deleteChart(w, r, req.RoleName, req.ChartID)
}

func (h *MetricsHandler) deleteChart(w http.ResponseWriter, r *http.Request, roleName, chartID string) {
	if !h.screen(w, "role_name", roleName) || !h.screen(w, "chart_id", chartID) {
		return
	}
	if err := h.analysisService.DeleteChart(r.Context(), roleName, chartID); err != nil {
		h.writeMetricsError(w, roleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "chart_id": chartID}); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// GetInsights handles GET /api/custom_role/insights/{role_name}/{chart_id}.
func (h *MetricsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	roleName := r.PathValue("role_name")
	chartID := r.PathValue("chart_id")
	if !h.screen(w, "role_name", roleName) || !h.screen(w, "chart_id", chartID) {
		return
	}

	db, err := h.dbManager.OpenExisting(roleName)
	if err != nil {
		writeError(h.logger, w, http.StatusNotFound, "role_not_found", "Role not found: "+roleName)
		return
	}
	defer db.Close()

	insight, err := h.insightService.Get(r.Context(), db, chartID)
	if err != nil {
		if errors.Is(err, apperrors.ErrInsightNotFound) {
			writeError(h.logger, w, http.StatusNotFound, "insights_not_found", "No insights stored for chart "+chartID)
			return
		}
		h.writeMetricsError(w, roleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "insights": insight}); err != nil {
		h.logger.Error("Failed to encode insights response", zap.Error(err))
	}
}

// RegenerateInsights handles POST /api/chart/insights. Generates fresh
// insights from the supplied chart data and stores them when a chart id is
// provided.
func (h *MetricsHandler) RegenerateInsights(w http.ResponseWriter, r *http.Request) {
	var req ChartInsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if !h.screen(w, "role_name", req.RoleName) {
		return
	}
	if len(req.Data) == 0 {
		writeError(h.logger, w, http.StatusBadRequest, "missing_data", "Missing chart data")
		return
	}

	chartType := models.NormalizeChartType(req.ChartType)
	if req.ChartID == "" {
		insights, err := h.insightService.Generate(r.Context(), req.ChartTitle, chartType, req.Data)
		if err != nil {
			h.writeMetricsError(w, req.RoleName, err)
			return
		}
		if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "insights": insights}); err != nil {
			h.logger.Error("Failed to encode insights response", zap.Error(err))
		}
		return
	}

	if !h.screen(w, "chart_id", req.ChartID) {
		return
	}
	db, err := h.dbManager.OpenExisting(req.RoleName)
	if err != nil {
		writeError(h.logger, w, http.StatusNotFound, "role_not_found", "Role not found: "+req.RoleName)
		return
	}
	defer db.Close()

	chart := &models.ChartDefinition{ID: req.ChartID, Title: req.ChartTitle, Type: chartType}
	record, err := h.insightService.GenerateAndStore(r.Context(), db, chart, req.Data)
	if err != nil {
		h.writeMetricsError(w, req.RoleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "insights": record}); err != nil {
		h.logger.Error("Failed to encode insights response", zap.Error(err))
	}
}

// screen rejects empty values and injection patterns in caller-supplied
// identifiers.
func (h *MetricsHandler) screen(w http.ResponseWriter, name, value string) bool {
	if value == "" {
		writeError(h.logger, w, http.StatusBadRequest, "missing_"+name, "Missing "+name)
		return false
	}
	if result := sqlvalidator.CheckParameterForInjection(name, value); result != nil {
		h.logger.Warn("rejected parameter with injection pattern",
			zap.String("param", name),
			zap.String("fingerprint", result.Fingerprint))
		writeError(h.logger, w, http.StatusBadRequest, "invalid_"+name, "Invalid "+name)
		return false
	}
	return true
}

func (h *MetricsHandler) writeMetricsError(w http.ResponseWriter, roleName string, err error) {
	var generationErr *apperrors.GenerationError
	switch {
	case errors.Is(err, apperrors.ErrRoleNotFound):
		writeError(h.logger, w, http.StatusNotFound, "role_not_found", "Role not found: "+roleName)
	case errors.Is(err, apperrors.ErrPlanNotFound):
		writeError(h.logger, w, http.StatusNotFound, "plan_not_found", "No analysis plan for role "+roleName)
	case errors.Is(err, apperrors.ErrChartNotFound):
		writeError(h.logger, w, http.StatusNotFound, "chart_not_found", "Chart not found")
	case errors.Is(err, apperrors.ErrNoDataTables):
		writeError(h.logger, w, http.StatusConflict, "no_data_tables", "Role has no imported data tables")
	case errors.As(err, &generationErr):
		h.logger.Error("Generation failed", zap.String("role", roleName), zap.Error(err))
		writeError(h.logger, w, http.StatusBadGateway, "generation_failed", generationErr.Error())
	default:
		h.logger.Error("Metrics operation failed", zap.String("role", roleName), zap.Error(err))
		writeError(h.logger, w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
