package services

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
	sqlvalidator "github.com/roledash/roledash-engine/pkg/sql"
)

// PlanValidator turns a candidate plan into the durable one. Every persisted
// formula and query must execute against the role's store; charts must also
// return at least one row. Candidate failures are absorbed here with warning
// logs, never propagated.
type PlanValidator interface {
	// ValidateAndFinalize executes every candidate and returns the plan
	// containing only survivors, with narrative insights attached to each
	// surviving chart on a best-effort basis. The returned plan is complete
	// and ready to persist; no partial state is written here.
	ValidateAndFinalize(ctx context.Context, db *sql.DB, candidate *models.AnalysisPlan) *models.AnalysisPlan
}

type planValidator struct {
	insights InsightService
	logger   *zap.Logger
}

// NewPlanValidator creates a new PlanValidator.
func NewPlanValidator(insights InsightService, logger *zap.Logger) PlanValidator {
	return &planValidator{
		insights: insights,
		logger:   logger.Named("plan-validator"),
	}
}

var _ PlanValidator = (*planValidator)(nil)

func (v *planValidator) ValidateAndFinalize(ctx context.Context, db *sql.DB, candidate *models.AnalysisPlan) *models.AnalysisPlan {
	validated := &models.AnalysisPlan{
		Insights: candidate.Insights,
	}

	for _, kpi := range candidate.KPIs {
		normalized, err := sqlvalidator.NormalizeSelect(kpi.Formula)
		if err != nil {
			v.logger.Warn("dropping KPI with invalid formula",
				zap.String("kpi_id", kpi.ID), zap.Error(err))
			continue
		}
		if _, err := database.QueryRows(ctx, db, normalized); err != nil {
			v.logger.Warn("dropping KPI whose formula failed execution",
				zap.String("kpi_id", kpi.ID), zap.Error(err))
			continue
		}
		kpi.Formula = normalized
		validated.KPIs = append(validated.KPIs, kpi)
	}

	for _, chart := range candidate.Charts {
		normalized, err := sqlvalidator.NormalizeSelect(chart.Query)
		if err != nil {
			v.logger.Warn("dropping chart with invalid query",
				zap.String("chart_id", chart.ID), zap.Error(err))
			continue
		}
		rows, err := database.QueryRows(ctx, db, normalized)
		if err != nil {
			v.logger.Warn("dropping chart whose query failed execution",
				zap.String("chart_id", chart.ID), zap.Error(err))
			continue
		}
		if len(rows) == 0 {
			v.logger.Warn("dropping chart whose query returned no rows",
				zap.String("chart_id", chart.ID))
			continue
		}
		chart.Query = normalized
		validated.Charts = append(validated.Charts, chart)

		// Insights are best-effort; the chart survives narration failure.
		if _, err := v.insights.GenerateAndStore(ctx, db, &chart, rows); err != nil {
			v.logger.Warn("failed to generate insights for chart",
				zap.String("chart_id", chart.ID), zap.Error(err))
		}
	}

	return validated
}
