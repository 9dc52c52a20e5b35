package models

import "strings"

// ChartType is the declared visualization type of a chart definition.
type ChartType string

const (
	ChartLine  ChartType = "line"
	ChartBar   ChartType = "bar"
	ChartPie   ChartType = "pie"
	ChartTable ChartType = "table"
)

// NormalizeChartType maps arbitrary LLM output to a supported chart type,
// defaulting to table.
func NormalizeChartType(s string) ChartType {
	switch ChartType(strings.ToLower(strings.TrimSpace(s))) {
	case ChartLine:
		return ChartLine
	case ChartBar:
		return ChartBar
	case ChartPie:
		return ChartPie
	default:
		return ChartTable
	}
}

// KPIDefinition is a single-value aggregate metric. Formula is a complete
// single-row aggregate SELECT that executes against the role's local store
// with no bound parameters.
type KPIDefinition struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Formula     string `json:"formula"`
	Table       string `json:"table"`
}

// ChartDefinition is a tabular query plus a declared visualization type.
type ChartDefinition struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Type        ChartType `json:"type"`
	Query       string    `json:"query_sql"`
}

// AnalysisPlan is the durable analytics configuration for one role.
// Every formula and query in a persisted plan has passed execution
// validation; the plan is replaced wholesale on regeneration.
type AnalysisPlan struct {
	KPIs     []KPIDefinition   `json:"kpis"`
	Charts   []ChartDefinition `json:"charts"`
	Insights []string          `json:"insights"`
}

// FindChart returns the chart with the given id, or nil.
func (p *AnalysisPlan) FindChart(chartID string) *ChartDefinition {
	for i := range p.Charts {
		if p.Charts[i].ID == chartID {
			return &p.Charts[i]
		}
	}
	return nil
}

// UpsertChart replaces the chart with a matching id or appends it.
// Returns true if an existing chart was replaced.
func (p *AnalysisPlan) UpsertChart(chart ChartDefinition) bool {
	for i := range p.Charts {
		if p.Charts[i].ID == chart.ID {
			p.Charts[i] = chart
			return true
		}
	}
	p.Charts = append(p.Charts, chart)
	return false
}

// RemoveChart deletes the chart with the given id.
// Returns false if no chart matched.
func (p *AnalysisPlan) RemoveChart(chartID string) bool {
	for i := range p.Charts {
		if p.Charts[i].ID == chartID {
			p.Charts = append(p.Charts[:i], p.Charts[i+1:]...)
			return true
		}
	}
	return false
}

// UpsertKPI replaces the KPI with a matching id or appends it.
// Returns true if an existing KPI was replaced.
func (p *AnalysisPlan) UpsertKPI(kpi KPIDefinition) bool {
	for i := range p.KPIs {
		if p.KPIs[i].ID == kpi.ID {
			p.KPIs[i] = kpi
			return true
		}
	}
	p.KPIs = append(p.KPIs, kpi)
	return false
}

// RemoveKPI deletes the KPI with the given id.
// Returns false if no KPI matched.
func (p *AnalysisPlan) RemoveKPI(kpiID string) bool {
	for i := range p.KPIs {
		if p.KPIs[i].ID == kpiID {
			p.KPIs = append(p.KPIs[:i], p.KPIs[i+1:]...)
			return true
		}
	}
	return false
}
