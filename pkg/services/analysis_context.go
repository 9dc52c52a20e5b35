package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
)

const (
	contextSampleRows       = 5
	contextDistributionCols = 10
	contextDistributionTop  = 10
)

// BuildAnalysisContext profiles every data table in a role store: columns
// with inferred semantic types and nullability, row count, a small row
// sample, and top-value distributions for the leading columns. The result
// bounds prompt size while giving the LLM concrete grounding.
func BuildAnalysisContext(ctx context.Context, db *sql.DB, roleName string, schemaDescriptions map[string]models.TableDescription) (*models.AnalysisContext, error) {
	tables, err := database.ListDataTables(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to list data tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, apperrors.ErrNoDataTables
	}

	analysis := &models.AnalysisContext{
		RoleName:           roleName,
		SchemaDescriptions: schemaDescriptions,
		Tables:             make(map[string]models.TableProfile, len(tables)),
	}

	for _, table := range tables {
		profile, err := profileTable(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("failed to profile table %s: %w", table, err)
		}
		analysis.Tables[table] = *profile
	}
	return analysis, nil
}

func profileTable(ctx context.Context, db *sql.DB, table string) (*models.TableProfile, error) {
	columns, err := tableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}

	var rowCount int64
	countQuery := fmt.Sprintf("SELECT COUNT(1) FROM %s", database.QuoteIdentifier(table))
	if err := db.QueryRowContext(ctx, countQuery).Scan(&rowCount); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	sampleQuery := fmt.Sprintf("SELECT * FROM %s LIMIT %d", database.QuoteIdentifier(table), contextSampleRows)
	samples, err := database.QueryRows(ctx, db, sampleQuery)
	if err != nil {
		return nil, fmt.Errorf("sample rows: %w", err)
	}

	distributions := make(map[string][]models.ValueCount)
	limit := len(columns)
	if limit > contextDistributionCols {
		limit = contextDistributionCols
	}
	for _, col := range columns[:limit] {
		counts, err := columnDistribution(ctx, db, table, col.Name)
		if err != nil {
			// A distribution is grounding, not a requirement.
			continue
		}
		distributions[col.Name] = counts
	}

	return &models.TableProfile{
		RowCount:      rowCount,
		Columns:       columns,
		SampleRows:    samples,
		Distributions: distributions,
	}, nil
}

// tableColumns reads column metadata via PRAGMA table_info and annotates each
// column with its inferred semantic type.
func tableColumns(ctx context.Context, db *sql.DB, table string) ([]models.ColumnInfo, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s)", database.QuoteIdentifier(table))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read table info: %w", err)
	}
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var (
			cid       int
			name      string
			declared  string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns = append(columns, models.ColumnInfo{
			Name:         name,
			DeclaredType: declared,
			Nullable:     notNull == 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}

	for i := range columns {
		columns[i].InferredType = InferColumnType(ctx, db, columns[i].Name, table)
	}
	return columns, nil
}

func columnDistribution(ctx context.Context, db *sql.DB, table, column string) ([]models.ValueCount, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %s, COUNT(1) as cnt FROM %s GROUP BY %s ORDER BY cnt DESC LIMIT %d`,
		database.QuoteIdentifier(column), database.QuoteIdentifier(table),
		database.QuoteIdentifier(column), contextDistributionTop)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.ValueCount
	for rows.Next() {
		var vc models.ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, err
		}
		if b, ok := vc.Value.([]byte); ok {
			vc.Value = string(b)
		}
		counts = append(counts, vc)
	}
	return counts, rows.Err()
}
