package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/models"
)

// ChartInsightRepository stores narrative insights in the role's own SQLite
// store, in the reserved app_chart_insights table. The role DB handle is
// passed per call because each role owns a separate database file.
type ChartInsightRepository interface {
	// Upsert writes insights keyed by chart id, replacing any prior record.
	Upsert(ctx context.Context, db *sql.DB, insight *models.ChartInsight) error

	// Get returns the stored insight record, or apperrors.ErrInsightNotFound.
	Get(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error)
}

type chartInsightRepository struct{}

// NewChartInsightRepository creates a new ChartInsightRepository.
func NewChartInsightRepository() ChartInsightRepository {
	return &chartInsightRepository{}
}

var _ ChartInsightRepository = (*chartInsightRepository)(nil)

func (r *chartInsightRepository) Upsert(ctx context.Context, db *sql.DB, insight *models.ChartInsight) error {
	insightsJSON, err := json.Marshal(insight.Insights)
	if err != nil {
		return fmt.Errorf("failed to encode insights: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.ExecContext(ctx, `
		INSERT INTO app_chart_insights (chart_id, chart_title, insights_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chart_id) DO UPDATE SET
			chart_title = excluded.chart_title,
			insights_json = excluded.insights_json,
			updated_at = excluded.updated_at`,
		insight.ChartID, insight.ChartTitle, string(insightsJSON), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert chart insights: %w", err)
	}
	return nil
}

func (r *chartInsightRepository) Get(ctx context.Context, db *sql.DB, chartID string) (*models.ChartInsight, error) {
	row := db.QueryRowContext(ctx, `
		SELECT chart_id, chart_title, insights_json, created_at, updated_at
		FROM app_chart_insights
		WHERE chart_id = ?`,
		chartID)

	var (
		insight      models.ChartInsight
		insightsJSON string
		createdAt    string
		updatedAt    string
	)
	if err := row.Scan(&insight.ChartID, &insight.ChartTitle, &insightsJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrInsightNotFound
		}
		return nil, fmt.Errorf("failed to query chart insights: %w", err)
	}

	if err := json.Unmarshal([]byte(insightsJSON), &insight.Insights); err != nil {
		return nil, fmt.Errorf("failed to parse stored insights: %w", err)
	}
	insight.CreatedAt = parseStoredTime(createdAt)
	insight.UpdatedAt = parseStoredTime(updatedAt)
	return &insight, nil
}

// parseStoredTime tolerates both RFC3339 (written by this repo) and the
// SQLite datetime('now') default format.
func parseStoredTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
