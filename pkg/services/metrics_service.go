package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/repositories"
)

const changeWindowDays = 30

// MetricsService replays the persisted plan's queries live. Every query in a
// persisted plan passed execution validation, so replay failures are logged
// and skipped rather than surfaced.
type MetricsService interface {
	// Metrics replays every KPI formula and chart query for the role. KPI
	// entries are keyed "kpi_<id>", chart entries "chart_<id>", and each data
	// table contributes "table_<name>_row_count". Absent a plan, only row
	// counts are returned.
	Metrics(ctx context.Context, roleName string) (map[string]any, error)
}

type metricsService struct {
	planRepo  repositories.PlanRepository
	dbManager *database.Manager
	logger    *zap.Logger
}

// NewMetricsService creates a new MetricsService.
func NewMetricsService(planRepo repositories.PlanRepository, dbManager *database.Manager, logger *zap.Logger) MetricsService {
	return &metricsService{
		planRepo:  planRepo,
		dbManager: dbManager,
		logger:    logger.Named("metrics-service"),
	}
}

var _ MetricsService = (*metricsService)(nil)

func (s *metricsService) Metrics(ctx context.Context, roleName string) (map[string]any, error) {
	db, err := s.dbManager.OpenExisting(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: no imported data for %s", apperrors.ErrRoleNotFound, roleName)
	}
	defer db.Close()

	metrics := make(map[string]any)

	tables, err := database.ListDataTables(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, table := range tables {
		var count int64
		countQuery := fmt.Sprintf("SELECT COUNT(1) FROM %s", database.QuoteIdentifier(table))
		if err := db.QueryRowContext(ctx, countQuery).Scan(&count); err != nil {
			continue
		}
		metrics[fmt.Sprintf("table_%s_row_count", table)] = count
	}

	plan, err := s.planRepo.Get(roleName)
	if err != nil {
		if errors.Is(err, apperrors.ErrPlanNotFound) {
			return metrics, nil
		}
		return nil, err
	}

	for _, kpi := range plan.KPIs {
		rows, err := database.QueryRows(ctx, db, kpi.Formula)
		if err != nil || len(rows) == 0 {
			s.logger.Warn("failed to replay KPI formula",
				zap.String("role", roleName),
				zap.String("kpi_id", kpi.ID), zap.Error(err))
			continue
		}
		value := rows[0]
		if change, ok := s.periodChange(ctx, db, &kpi); ok {
			value["change_pct"] = change
		}
		metrics["kpi_"+kpi.ID] = value
	}

	for _, chart := range plan.Charts {
		rows, err := database.QueryRows(ctx, db, chart.Query)
		if err != nil {
			s.logger.Warn("failed to replay chart query",
				zap.String("role", roleName),
				zap.String("chart_id", chart.ID), zap.Error(err))
			continue
		}
		metrics["chart_"+strings.TrimPrefix(chart.ID, "chart_")] = rows
	}

	return metrics, nil
}

// periodChange computes the percentage change of a KPI between the current
// and previous 30-day windows. It is best-effort: any failure to find the
// table, a date column, or comparable numeric values skips the computation
// silently.
func (s *metricsService) periodChange(ctx context.Context, db *sql.DB, kpi *models.KPIDefinition) (float64, bool) {
	table := kpi.Table
	if table == "" {
		table = extractTableName(kpi.Formula)
	}
	if table == "" {
		return 0, false
	}
	dateCol := pickDateColumn(ctx, db, table)
	if dateCol == "" {
		return 0, false
	}

	endCurr := time.Now().UTC().Truncate(24 * time.Hour)
	startCurr := endCurr.AddDate(0, 0, -changeWindowDays)
	endPrev := startCurr.AddDate(0, 0, -1)
	startPrev := endPrev.AddDate(0, 0, -changeWindowDays)

	current, ok := s.windowedValue(ctx, db, kpi.Formula, table, dateCol, startCurr, endCurr)
	if !ok {
		return 0, false
	}
	previous, ok := s.windowedValue(ctx, db, kpi.Formula, table, dateCol, startPrev, endPrev)
	if !ok || previous == 0 {
		return 0, false
	}
	return (current - previous) / previous * 100, true
}

func (s *metricsService) windowedValue(ctx context.Context, db *sql.DB, formula, table, dateCol string, start, end time.Time) (float64, bool) {
	windowed := addTimeWindow(formula, table, dateCol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if windowed == "" {
		return 0, false
	}
	rows, err := database.QueryRows(ctx, db, windowed)
	if err != nil || len(rows) == 0 {
		return 0, false
	}
	for _, v := range rows[0] {
		if f, ok := numericValue(v); ok {
			return f, true
		}
	}
	return 0, false
}

var fromTablePattern = regexp.MustCompile("(?i)FROM\\s+`?\"?([a-zA-Z0-9_]+)`?\"?")

// extractTableName pulls the first FROM target out of a query.
func extractTableName(query string) string {
	m := fromTablePattern.FindStringSubmatch(query)
	if m == nil {
		return ""
	}
	return m[1]
}

// dateColumnCandidates are checked for an exact match before falling back to
// a fuzzy "date"/"day" substring match.
var dateColumnCandidates = []string{
	"date", "day", "registration_date", "date_of_last_purchase",
	"first_purchase_date", "created_at", "updated_at", "signup_date",
}

func pickDateColumn(ctx context.Context, db *sql.DB, table string) string {
	query := fmt.Sprintf("PRAGMA table_info(%s)", database.QuoteIdentifier(table))
	rows, err := database.QueryRows(ctx, db, query)
	if err != nil {
		return ""
	}
	columns := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["name"].(string); ok {
			columns = append(columns, name)
		}
	}

	for _, candidate := range dateColumnCandidates {
		for _, col := range columns {
			if col == candidate {
				return col
			}
		}
	}
	for _, col := range columns {
		lc := strings.ToLower(col)
		if strings.Contains(lc, "date") || strings.Contains(lc, "day") {
			return col
		}
	}
	return ""
}

var wherePattern = regexp.MustCompile(`(?i)\bWHERE\b`)

// addTimeWindow injects a date BETWEEN clause into an aggregate query,
// either extending an existing WHERE or adding one after the FROM target.
func addTimeWindow(query, table, dateCol, startISO, endISO string) string {
	if table == "" || dateCol == "" {
		return ""
	}
	clause := fmt.Sprintf("%s BETWEEN date('%s') AND date('%s')",
		database.QuoteIdentifier(dateCol), startISO, endISO)

	trimmed := strings.TrimSpace(query)
	if loc := wherePattern.FindStringIndex(trimmed); loc != nil {
		return trimmed[:loc[1]] + " " + clause + " AND " + trimmed[loc[1]:]
	}

	fromPattern := regexp.MustCompile("(?i)FROM\\s+`?\"?" + regexp.QuoteMeta(table) + "`?\"?")
	if loc := fromPattern.FindStringIndex(trimmed); loc != nil {
		return trimmed[:loc[1]] + " WHERE " + clause + trimmed[loc[1]:]
	}
	return ""
}

func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
