package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/config"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/repositories"
	"github.com/roledash/roledash-engine/pkg/sources"
)

// ImportService copies a role's source tables into its local SQLite store.
type ImportService interface {
	// Import copies every table named in the role's config and returns the
	// total number of rows imported. A failure in any table aborts the whole
	// import with an ImportError naming the table; earlier tables may already
	// be committed.
	Import(ctx context.Context, roleName string) (int64, error)
}

type importService struct {
	configRepo    repositories.RoleConfigRepository
	dbManager     *database.Manager
	sourceFactory sources.SourceFactory
	cfg           config.ImportConfig
	logger        *zap.Logger
}

// NewImportService creates a new ImportService.
func NewImportService(
	configRepo repositories.RoleConfigRepository,
	dbManager *database.Manager,
	sourceFactory sources.SourceFactory,
	cfg config.ImportConfig,
	logger *zap.Logger,
) ImportService {
	return &importService{
		configRepo:    configRepo,
		dbManager:     dbManager,
		sourceFactory: sourceFactory,
		cfg:           cfg,
		logger:        logger.Named("import-service"),
	}
}

var _ ImportService = (*importService)(nil)

func (s *importService) Import(ctx context.Context, roleName string) (int64, error) {
	roleConfig, err := s.configRepo.Get(roleName)
	if err != nil {
		return 0, err
	}

	credBlob, err := s.configRepo.Credential(roleName)
	if err != nil {
		return 0, err
	}
	if credBlob == nil {
		return 0, fmt.Errorf("no credential stored for role %s", roleName)
	}
	cred, err := sources.ParseCredential(credBlob)
	if err != nil {
		return 0, fmt.Errorf("failed to parse credential for role %s: %w", roleName, err)
	}

	source, err := s.sourceFactory.Open(ctx, cred, roleConfig.SourceDataset)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to source: %w", err)
	}
	defer source.Close()

	db, err := s.dbManager.Open(roleName)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var total int64
	descriptions := make(map[string]models.TableDescription, len(roleConfig.SourceTables))
	for _, table := range roleConfig.SourceTables {
		imported, desc, err := s.importTable(ctx, source, db, table)
		if err != nil {
			return 0, apperrors.NewImportError(table, err)
		}
		total += imported
		descriptions[table] = desc
		s.logger.Info("imported table",
			zap.String("role", roleName),
			zap.String("table", table),
			zap.Int64("rows", imported))
	}

	roleConfig.TotalRecords = total
	roleConfig.SchemaDescriptions = descriptions
	if err := s.configRepo.Save(roleConfig); err != nil {
		return 0, fmt.Errorf("failed to update role config after import: %w", err)
	}
	return total, nil
}

// importTable copies one source table: schema first, then rows in
// fixed-size batch transactions.
func (s *importService) importTable(ctx context.Context, source sources.Source, db *sql.DB, table string) (int64, models.TableDescription, error) {
	var desc models.TableDescription

	metaCtx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout())
	defer cancel()

	columns, err := source.ListColumns(metaCtx, table)
	if err != nil {
		return 0, desc, err
	}
	if len(columns) == 0 {
		return 0, desc, fmt.Errorf("table has no columns at source")
	}

	tableDesc, err := source.DescribeTable(metaCtx, table)
	if err != nil {
		// Descriptions are context for the LLM, not required for import.
		s.logger.Warn("failed to read table description",
			zap.String("table", table), zap.Error(err))
		tableDesc = ""
	}
	desc = models.TableDescription{
		TableDescription: tableDesc,
		Columns:          make(map[string]string, len(columns)),
	}
	for _, col := range columns {
		if col.Description != "" {
			desc.Columns[col.Name] = col.Description
		}
	}

	if err := createDestinationTable(ctx, db, table, columns); err != nil {
		return 0, desc, err
	}

	imported, err := s.copyRows(ctx, source, db, table, columns)
	if err != nil {
		return 0, desc, err
	}
	return imported, desc, nil
}

// MapSourceType maps a source-declared column type onto the local store's
// storage classes. The store has no native temporal type, so temporal and
// unrecognized types land in TEXT. The mapping is deterministic.
func MapSourceType(declaredType string) string {
	t := strings.ToLower(strings.TrimSpace(declaredType))
	// Strip length/precision qualifiers like varchar(255) or numeric(10,2).
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "int", "integer", "int2", "int4", "int8", "smallint", "bigint", "tinyint", "serial", "bigserial", "int64":
		return "INTEGER"
	case "real", "float", "float4", "float8", "double", "double precision", "numeric", "decimal", "money", "float64":
		return "REAL"
	case "bool", "boolean", "bit":
		// Stored as INTEGER with 0/1 encoding.
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// createDestinationTable replaces the destination table wholesale. Imports
// overwrite: a retry after a partial failure must not duplicate the rows of
// tables that already committed.
func createDestinationTable(ctx context.Context, db *sql.DB, table string, columns []sources.SourceColumn) error {
	drop := fmt.Sprintf("DROP TABLE IF EXISTS %s", database.QuoteIdentifier(table))
	if _, err := db.ExecContext(ctx, drop); err != nil {
		return fmt.Errorf("drop stale destination table: %w", err)
	}

	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		defs = append(defs, fmt.Sprintf("%s %s", database.QuoteIdentifier(col.Name), MapSourceType(col.DeclaredType)))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)",
		database.QuoteIdentifier(table), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create destination table: %w", err)
	}
	return nil
}

// copyRows streams source rows and inserts them in batch transactions. The
// in-flight batch rolls back on failure; previously committed batches stay.
func (s *importService) copyRows(ctx context.Context, source sources.Source, db *sql.DB, table string, columns []sources.SourceColumn) (int64, error) {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = database.QuoteIdentifier(col.Name)
		placeholders[i] = "?"
	}
	insertStmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		database.QuoteIdentifier(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

	streamCtx, cancel := context.WithTimeout(ctx, s.cfg.SourceTimeout())
	defer cancel()

	var (
		total int64
		tx    *sql.Tx
		stmt  *sql.Stmt
		batch int
	)
	abort := func() {
		if stmt != nil {
			stmt.Close()
			stmt = nil
		}
		if tx != nil {
			tx.Rollback()
			tx = nil
		}
	}

	err := source.StreamRows(streamCtx, table, func(values []any) error {
		if tx == nil {
			var err error
			tx, err = db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin batch transaction: %w", err)
			}
			stmt, err = tx.PrepareContext(ctx, insertStmt)
			if err != nil {
				return fmt.Errorf("prepare insert: %w", err)
			}
			batch = 0
		}

		if _, err := stmt.ExecContext(ctx, normalizeRowValues(values)...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
		total++
		batch++

		if batch >= s.cfg.BatchSize {
			stmt.Close()
			stmt = nil
			if err := tx.Commit(); err != nil {
				tx = nil
				return fmt.Errorf("commit batch: %w", err)
			}
			tx = nil
		}
		return nil
	})
	if err != nil {
		abort()
		return 0, err
	}

	if tx != nil {
		if stmt != nil {
			stmt.Close()
			stmt = nil
		}
		if err := tx.Commit(); err != nil {
			tx = nil
			return 0, fmt.Errorf("commit final batch: %w", err)
		}
		tx = nil
	}
	return total, nil
}

// normalizeRowValues converts source values into forms the SQLite driver
// accepts, encoding booleans as 0/1.
func normalizeRowValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case bool:
			if val {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		default:
			out[i] = v
		}
	}
	return out
}
