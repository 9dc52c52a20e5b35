package models

// SemanticType is the inferred semantic type of a column, used for LLM
// context and UI rendering hints. The local store only knows INTEGER, REAL,
// and TEXT; DATETIME and BOOLEAN are semantic refinements on top of that.
type SemanticType string

const (
	TypeInteger  SemanticType = "INTEGER"
	TypeReal     SemanticType = "REAL"
	TypeText     SemanticType = "TEXT"
	TypeDatetime SemanticType = "DATETIME"
	TypeBoolean  SemanticType = "BOOLEAN"
)

// ColumnInfo describes one column of an imported table.
type ColumnInfo struct {
	Name         string       `json:"name"`
	DeclaredType string       `json:"type"`
	InferredType SemanticType `json:"inferred_type,omitempty"`
	Nullable     bool         `json:"nullable"`
}

// ImportedTable describes a source table copied into a role's local store.
// Column order and naming are preserved exactly from the source.
type ImportedTable struct {
	Name     string       `json:"name"`
	Columns  []ColumnInfo `json:"columns"`
	RowCount int64        `json:"row_count"`
}

// TableDescription carries source-side documentation for one table,
// harvested at import time and replayed as LLM context.
type TableDescription struct {
	TableDescription string            `json:"table_description"`
	Columns          map[string]string `json:"columns"`
}

// ValueCount is one entry of a column value distribution.
type ValueCount struct {
	Value any   `json:"value"`
	Count int64 `json:"cnt"`
}

// TableProfile is the bounded per-table grounding handed to the LLM:
// schema, row count, a small row sample, and top-value distributions.
type TableProfile struct {
	RowCount      int64                   `json:"row_count"`
	Columns       []ColumnInfo            `json:"columns"`
	SampleRows    []map[string]any        `json:"sample_data"`
	Distributions map[string][]ValueCount `json:"distributions"`
}

// AnalysisContext is everything the plan generator knows about a role's data.
type AnalysisContext struct {
	RoleName           string                      `json:"role_name"`
	SchemaDescriptions map[string]TableDescription `json:"schema_descriptions,omitempty"`
	Tables             map[string]TableProfile     `json:"tables"`
}
