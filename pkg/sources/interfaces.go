// Package sources provides adapters for the external databases that custom
// role datasets are imported from.
package sources

import "context"

// SourceColumn is column metadata reported by an external source.
type SourceColumn struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Description  string `json:"description,omitempty"`
}

// RowVisitor receives one row of streamed source data. Values arrive in the
// column order returned by ListColumns. Returning an error stops the stream.
type RowVisitor func(values []any) error

// Source is the external dataset contract the importer depends on.
// Each implementation owns its connection and must be closed when done.
type Source interface {
	// ListColumns returns ordered column metadata for a source table.
	ListColumns(ctx context.Context, table string) ([]SourceColumn, error)

	// DescribeTable returns the table-level description, or empty string if
	// the source has none.
	DescribeTable(ctx context.Context, table string) (string, error)

	// StreamRows streams every row of a table to the visitor, preserving
	// source column order.
	StreamRows(ctx context.Context, table string, visit RowVisitor) error

	// TestConnection verifies the source is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// Close releases the connection.
	Close() error
}
