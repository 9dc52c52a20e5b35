// Package prompts builds the LLM prompts used during analysis plan
// generation. Every prompt that produces SQL demands strict adherence to the
// real column list; execution validation downstream is the safety net, not a
// license to relax the rules here.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/roledash/roledash-engine/pkg/models"
)

// sqlRules are the hard constraints repeated in every SQL-producing prompt.
func writeSQLRules(b *strings.Builder, tableName string) {
	b.WriteString("## CRITICAL RULES\n")
	fmt.Fprintf(b, "1. Use ONLY the `%s` table and its real columns. Every query MUST use the exact column names from the schema in the context JSON. Do NOT invent columns.\n", tableName)
	b.WriteString("2. Column names with spaces or special characters MUST be enclosed in double quotes (e.g., \"Last_Week_Sales\").\n")
	b.WriteString("3. Do not assume any column exists. If the data for a typical metric is not available, derive it from existing columns or skip the metric.\n")
	b.WriteString("4. All SQL must be 100% valid SQLite. One statement per query, no parameters, no semicolons.\n")
}

// entityLabel derives a human label for the rows of a table from its name,
// e.g. "pa_sales" becomes "sale".
func entityLabel(tableName string) string {
	parts := strings.Split(strings.ToLower(tableName), "_")
	last := parts[len(parts)-1]
	if last == "" {
		return tableName
	}
	return inflection.Singular(last)
}

// describeContext renders the schema description block shared by the
// generation prompts. The full profile travels separately as context JSON;
// this block orients the model before it reads it.
func describeContext(b *strings.Builder, roleName, tableName string, profile models.TableProfile, hasDescriptions bool) {
	fmt.Fprintf(b, "## Database Schema & Context\n")
	fmt.Fprintf(b, "The database has one primary table named `%s` (%d rows, one row per %s).\n",
		tableName, profile.RowCount, entityLabel(tableName))
	b.WriteString("The detailed schema, including column types, sample rows, and value distributions, is in the context JSON.\n")
	if hasDescriptions {
		b.WriteString("The context JSON also contains `schema_descriptions` with source-side descriptions for the table and its columns. Use them to understand the data's business meaning.\n")
	}
	fmt.Fprintf(b, "The data belongs to a '%s' role; tailor everything to what that role cares about.\n\n", roleName)
}

// primaryTable picks the analysis target: the largest data table by row count,
// name as tiebreaker so the choice is deterministic.
func primaryTable(ctx *models.AnalysisContext) string {
	names := make([]string, 0, len(ctx.Tables))
	for name := range ctx.Tables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := ctx.Tables[names[i]].RowCount, ctx.Tables[names[j]].RowCount
		if ri != rj {
			return ri > rj
		}
		return names[i] < names[j]
	})
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// BuildConceptPrompt asks for the analytical concepts worth building a
// dashboard around. No SQL is produced at this stage.
func BuildConceptPrompt(ctx *models.AnalysisContext) string {
	table := primaryTable(ctx)
	profile := ctx.Tables[table]

	var b strings.Builder
	fmt.Fprintf(&b, "You are a data analyst planning a dashboard for a '%s' role.\n\n", ctx.RoleName)
	describeContext(&b, ctx.RoleName, table, profile, len(ctx.SchemaDescriptions) > 0)
	b.WriteString("## Task\n")
	b.WriteString("Identify the analytical concepts this dashboard should cover: what questions the data can answer, which columns carry the signal, and what comparisons matter.\n")
	b.WriteString("Ground every concept in columns that actually exist in the context JSON.\n\n")
	b.WriteString("## Output Format\n")
	b.WriteString("Return a single JSON object:\n")
	b.WriteString("{\n  \"concepts\": [\"...\"],\n  \"insights\": [\"...\"]\n}\n")
	b.WriteString("`concepts` lists the analytical themes (3-6 short phrases). `insights` lists observations already visible in the sample data and distributions.\n")
	return b.String()
}

// BuildKPIPrompt asks for KPI definitions for the concepts chosen earlier.
// Each formula must be a complete single-row aggregate SELECT.
func BuildKPIPrompt(ctx *models.AnalysisContext, concepts []string) string {
	table := primaryTable(ctx)
	profile := ctx.Tables[table]

	var b strings.Builder
	fmt.Fprintf(&b, "You are a data analyst bot writing SQLite queries. Generate KPI definitions for a '%s' dashboard.\n\n", ctx.RoleName)
	describeContext(&b, ctx.RoleName, table, profile, len(ctx.SchemaDescriptions) > 0)
	if len(concepts) > 0 {
		b.WriteString("## Concepts To Cover\n")
		for _, c := range concepts {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	writeSQLRules(&b, table)
	fmt.Fprintf(&b, "5. Each `formula` must be a complete SELECT statement that returns exactly one row with a single numeric value (e.g., 'SELECT SUM(\"Weekly_Sales\") FROM %s').\n\n", table)
	b.WriteString("## Output Format\n")
	b.WriteString("Return a single JSON object:\n")
	b.WriteString("{\n  \"kpis\": [{\n")
	b.WriteString("    \"id\": \"kpi_unique_id\",\n")
	b.WriteString("    \"title\": \"KPI Title\",\n")
	b.WriteString("    \"description\": \"...\",\n")
	b.WriteString("    \"formula\": \"SELECT ...\",\n")
	fmt.Fprintf(&b, "    \"table\": \"%s\"\n", table)
	b.WriteString("  }]\n}\n")
	return b.String()
}

// BuildChartPrompt asks for chart definitions. Each query must be a complete
// tabular SELECT and each chart declares one of the supported types.
func BuildChartPrompt(ctx *models.AnalysisContext, concepts []string) string {
	table := primaryTable(ctx)
	profile := ctx.Tables[table]

	var b strings.Builder
	fmt.Fprintf(&b, "You are a data analyst bot writing SQLite queries. Generate chart definitions for a '%s' dashboard.\n\n", ctx.RoleName)
	describeContext(&b, ctx.RoleName, table, profile, len(ctx.SchemaDescriptions) > 0)
	if len(concepts) > 0 {
		b.WriteString("## Concepts To Cover\n")
		for _, c := range concepts {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		b.WriteString("\n")
	}
	writeSQLRules(&b, table)
	b.WriteString("5. Each `query_sql` must be a complete SELECT returning the rows to plot. Aggregate and GROUP BY so a chart stays readable (rarely more than 50 rows).\n")
	b.WriteString("6. `type` must be one of: line, bar, pie, table. Use line for time series, bar for category comparison, pie for share of a whole, table otherwise.\n\n")
	b.WriteString("## Output Format\n")
	b.WriteString("Return a single JSON object:\n")
	b.WriteString("{\n  \"charts\": [{\n")
	b.WriteString("    \"id\": \"chart_unique_id\",\n")
	b.WriteString("    \"title\": \"Chart Title\",\n")
	b.WriteString("    \"type\": \"bar|line|pie|table\",\n")
	b.WriteString("    \"description\": \"...\",\n")
	b.WriteString("    \"query_sql\": \"SELECT ...\"\n")
	b.WriteString("  }]\n}\n")
	return b.String()
}

// BuildVisualizationPrompt asks for a single chart query from an operator's
// free-text description, for the ad-hoc visualization endpoint.
func BuildVisualizationPrompt(ctx *models.AnalysisContext, description string) string {
	table := primaryTable(ctx)
	profile := ctx.Tables[table]

	var b strings.Builder
	b.WriteString("You are a data analyst bot writing SQLite queries. Write ONE query that produces the data for the visualization described below.\n\n")
	describeContext(&b, ctx.RoleName, table, profile, len(ctx.SchemaDescriptions) > 0)
	fmt.Fprintf(&b, "## Requested Visualization\n%s\n\n", description)
	writeSQLRules(&b, table)
	b.WriteString("\n## Output Format\n")
	b.WriteString("Return a single JSON object:\n")
	b.WriteString("{\n  \"title\": \"Chart Title\",\n  \"query_sql\": \"SELECT ...\"\n}\n")
	return b.String()
}

// maxInsightRecords bounds the data handed to the insight prompt.
const maxInsightRecords = 20

// BuildInsightPrompt asks for bullet-point narrative insights for one chart's
// result rows. Callers pass the rows separately as context JSON, truncated
// with TruncateInsightRows.
func BuildInsightPrompt(chartTitle string, chartType models.ChartType, recordCount int) string {
	var b strings.Builder
	b.WriteString("You are an expert data analyst. Analyze the following chart data and provide 3-5 key insights in bullet point format.\n\n")
	fmt.Fprintf(&b, "Chart Title: %s\n", chartTitle)
	fmt.Fprintf(&b, "Chart Type: %s\n", chartType)
	fmt.Fprintf(&b, "Data Records: %d\n\n", recordCount)
	b.WriteString("ANALYSIS REQUIREMENTS:\n")
	b.WriteString("- Identify the most significant patterns, trends, and outliers\n")
	b.WriteString("- Provide actionable insights specific to this data\n")
	b.WriteString("- Highlight concerning drops, impressive gains, or unusual patterns\n")
	b.WriteString("- Include specific numbers and percentages where relevant\n")
	b.WriteString("- Focus on business impact and opportunities\n\n")
	b.WriteString("FORMAT: Return ONLY a simple bullet-point list, one insight per line starting with '- '.\n")
	b.WriteString("Do NOT include headers, explanations, or any other text.\n")
	b.WriteString("Keep each bullet concise but informative (max 100 words).\n")
	return b.String()
}

// TruncateInsightRows caps the rows sent with an insight prompt.
func TruncateInsightRows(rows []map[string]any) []map[string]any {
	if len(rows) > maxInsightRecords {
		return rows[:maxInsightRecords]
	}
	return rows
}
