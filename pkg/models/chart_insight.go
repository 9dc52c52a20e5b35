package models

import "time"

// ChartInsight holds the narrative insights generated for one chart.
// At most one live record exists per chart id; regeneration upserts.
type ChartInsight struct {
	ChartID    string    `json:"chart_id"`
	ChartTitle string    `json:"chart_title"`
	Insights   []string  `json:"insights"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
