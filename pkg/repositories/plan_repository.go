package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
)

// PlanRepository stores one analysis plan per role as a JSON document.
// Save replaces the whole plan atomically; chart and KPI mutations are
// replace-by-id / remove-by-id. Callers serialize concurrent mutation of the
// same role (the analysis service holds a per-role mutex).
type PlanRepository interface {
	// Get returns the stored plan, or apperrors.ErrPlanNotFound.
	Get(roleName string) (*models.AnalysisPlan, error)

	// Save atomically replaces the role's plan.
	Save(roleName string, plan *models.AnalysisPlan) error

	// Exists reports whether a plan is stored for the role.
	Exists(roleName string) bool

	// UpsertChart replaces the chart with a matching id or appends it.
	// Returns true if an existing chart was replaced.
	UpsertChart(roleName string, chart models.ChartDefinition) (bool, error)

	// DeleteChart removes a chart by id, or returns apperrors.ErrChartNotFound.
	// Other entries are never altered by a failed delete.
	DeleteChart(roleName, chartID string) error

	// UpsertKPI replaces the KPI with a matching id or appends it.
	UpsertKPI(roleName string, kpi models.KPIDefinition) (bool, error)

	// DeleteKPI removes a KPI by id, or returns apperrors.ErrKPINotFound.
	DeleteKPI(roleName, kpiID string) error
}

type planRepository struct {
	dataDir string
}

// NewPlanRepository creates a PlanRepository rooted at dataDir.
func NewPlanRepository(dataDir string) (PlanRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &planRepository{dataDir: dataDir}, nil
}

var _ PlanRepository = (*planRepository)(nil)

func (r *planRepository) planPath(roleName string) string {
	return filepath.Join(r.dataDir, database.SanitizeRoleName(roleName)+".plan.json")
}

func (r *planRepository) Get(roleName string) (*models.AnalysisPlan, error) {
	data, err := os.ReadFile(r.planPath(roleName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	var plan models.AnalysisPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return &plan, nil
}

func (r *planRepository) Save(roleName string, plan *models.AnalysisPlan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := writeFileAtomic(r.planPath(roleName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

func (r *planRepository) Exists(roleName string) bool {
	_, err := os.Stat(r.planPath(roleName))
	return err == nil
}

func (r *planRepository) UpsertChart(roleName string, chart models.ChartDefinition) (bool, error) {
	plan, err := r.Get(roleName)
	if err != nil {
		return false, err
	}
	replaced := plan.UpsertChart(chart)
	if err := r.Save(roleName, plan); err != nil {
		return false, err
	}
	return replaced, nil
}

func (r *planRepository) DeleteChart(roleName, chartID string) error {
	plan, err := r.Get(roleName)
	if err != nil {
		return err
	}
	if !plan.RemoveChart(chartID) {
		return apperrors.ErrChartNotFound
	}
	return r.Save(roleName, plan)
}

func (r *planRepository) UpsertKPI(roleName string, kpi models.KPIDefinition) (bool, error) {
	plan, err := r.Get(roleName)
	if err != nil {
		return false, err
	}
	replaced := plan.UpsertKPI(kpi)
	if err := r.Save(roleName, plan); err != nil {
		return false, err
	}
	return replaced, nil
}

func (r *planRepository) DeleteKPI(roleName, kpiID string) error {
	plan, err := r.Get(roleName)
	if err != nil {
		return err
	}
	if !plan.RemoveKPI(kpiID) {
		return apperrors.ErrKPINotFound
	}
	return r.Save(roleName, plan)
}
