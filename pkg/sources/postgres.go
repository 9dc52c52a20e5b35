package sources

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresSource reads a dataset from a PostgreSQL database. The role's
// source dataset maps to a schema name.
type PostgresSource struct {
	pool   *pgxpool.Pool
	schema string
	logger *zap.Logger
}

// NewPostgresSource connects to PostgreSQL using the credential DSN.
// schema is the source dataset (schema) the role's tables live in;
// empty means the connection's default search path.
func NewPostgresSource(ctx context.Context, dsn, schema string, logger *zap.Logger) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &PostgresSource{
		pool:   pool,
		schema: schema,
		logger: logger.Named("source-postgres"),
	}, nil
}

// qualifiedTableName returns a properly quoted table reference.
func (s *PostgresSource) qualifiedTableName(table string) string {
	quoted := pgx.Identifier{table}.Sanitize()
	if s.schema == "" {
		return quoted
	}
	return pgx.Identifier{s.schema}.Sanitize() + "." + quoted
}

// ListColumns returns ordered column metadata, including comments.
func (s *PostgresSource) ListColumns(ctx context.Context, table string) ([]SourceColumn, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			COALESCE(pgd.description, '') AS description
		FROM information_schema.columns c
		LEFT JOIN pg_catalog.pg_statio_all_tables st
			ON st.schemaname = c.table_schema AND st.relname = c.table_name
		LEFT JOIN pg_catalog.pg_description pgd
			ON pgd.objoid = st.relid AND pgd.objsubid = c.ordinal_position
		WHERE c.table_name = $1
		  AND ($2 = '' OR c.table_schema = $2)
		ORDER BY c.ordinal_position`

	rows, err := s.pool.Query(ctx, query, table, s.schema)
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

// DescribeTable returns the table comment, or empty string if none exists.
func (s *PostgresSource) DescribeTable(ctx context.Context, table string) (string, error) {
	const query = `
		SELECT COALESCE(obj_description(c.oid), '')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relname = $1
		  AND ($2 = '' OR n.nspname = $2)
		LIMIT 1`

	var description string
	if err := s.pool.QueryRow(ctx, query, table, s.schema).Scan(&description); err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query table description: %w", err)
	}
	return description, nil
}

// StreamRows streams every row of the table in source column order.
func (s *PostgresSource) StreamRows(ctx context.Context, table string, visit RowVisitor) error {
	query := fmt.Sprintf("SELECT * FROM %s", s.qualifiedTableName(table))

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query rows from %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("read row values: %w", err)
		}
		if err := visit(values); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

// TestConnection verifies the database is reachable.
func (s *PostgresSource) TestConnection(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres source: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresSource) Close() error {
	s.pool.Close()
	return nil
}

var _ Source = (*PostgresSource)(nil)
