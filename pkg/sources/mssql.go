package sources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"
)

// MSSQLSource reads a dataset from a SQL Server database. The role's source
// dataset maps to a schema name; empty defaults to dbo.
type MSSQLSource struct {
	db     *sql.DB
	schema string
	logger *zap.Logger
}

// NewMSSQLSource connects to SQL Server using the credential DSN.
func NewMSSQLSource(dsn, schema string, logger *zap.Logger) (*MSSQLSource, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}
	if schema == "" {
		schema = "dbo"
	}
	return &MSSQLSource{
		db:     db,
		schema: schema,
		logger: logger.Named("source-mssql"),
	}, nil
}

// quoteIdentifier brackets a SQL Server identifier.
func quoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// ListColumns returns ordered column metadata, including extended-property
// descriptions (MS_Description).
func (s *MSSQLSource) ListColumns(ctx context.Context, table string) ([]SourceColumn, error) {
	const query = `
		SELECT
			c.name,
			t.name AS data_type,
			CAST(ISNULL(ep.value, '') AS NVARCHAR(MAX)) AS description
		FROM sys.columns c
		JOIN sys.types t ON t.user_type_id = c.user_type_id
		JOIN sys.tables tb ON tb.object_id = c.object_id
		JOIN sys.schemas sc ON sc.schema_id = tb.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = c.object_id
			AND ep.minor_id = c.column_id
			AND ep.name = 'MS_Description'
		WHERE tb.name = @p1 AND sc.name = @p2
		ORDER BY c.column_id`

	rows, err := s.db.QueryContext(ctx, query, table, s.schema)
	if err != nil {
		return nil, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer rows.Close()

	var columns []SourceColumn
	for rows.Next() {
		var col SourceColumn
		if err := rows.Scan(&col.Name, &col.DeclaredType, &col.Description); err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %s not found at source", table)
	}
	return columns, nil
}

// DescribeTable returns the MS_Description extended property for the table,
// or empty string if none is set.
func (s *MSSQLSource) DescribeTable(ctx context.Context, table string) (string, error) {
	const query = `
		SELECT CAST(ISNULL(ep.value, '') AS NVARCHAR(MAX))
		FROM sys.tables tb
		JOIN sys.schemas sc ON sc.schema_id = tb.schema_id
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = tb.object_id
			AND ep.minor_id = 0
			AND ep.name = 'MS_Description'
		WHERE tb.name = @p1 AND sc.name = @p2`

	var description string
	if err := s.db.QueryRowContext(ctx, query, table, s.schema).Scan(&description); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query table description: %w", err)
	}
	return description, nil
}

// StreamRows streams every row of the table in source column order.
func (s *MSSQLSource) StreamRows(ctx context.Context, table string, visit RowVisitor) error {
	query := fmt.Sprintf("SELECT * FROM %s.%s", quoteIdentifier(s.schema), quoteIdentifier(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query rows from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("read result columns: %w", err)
	}

	values := make([]any, len(cols))
	scanTargets := make([]any, len(cols))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(values))
		copy(row, values)
		if err := visit(row); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

// TestConnection verifies the database is reachable.
func (s *MSSQLSource) TestConnection(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mssql source: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *MSSQLSource) Close() error {
	return s.db.Close()
}

var _ Source = (*MSSQLSource)(nil)
