package database

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryRows runs a query with no parameters and returns every row as a
// column-name-keyed map. Used to replay persisted plan queries, which by
// contract take no parameters.
func QueryRows(ctx context.Context, db *sql.DB, query string) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		targets := make([]any, len(cols))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			// Normalize []byte to string so rows JSON-encode cleanly.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// QuoteIdentifier double-quotes a SQLite identifier.
func QuoteIdentifier(name string) string {
	quoted := `"`
	for _, ch := range name {
		if ch == '"' {
			quoted += `""`
		} else {
			quoted += string(ch)
		}
	}
	return quoted + `"`
}
