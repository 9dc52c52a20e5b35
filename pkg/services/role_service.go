package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/repositories"
)

// CreateRoleRequest carries everything needed to provision a custom role.
type CreateRoleRequest struct {
	RoleName      string
	SourceProject string
	SourceDataset string
	SourceTables  []string
	Credential    []byte
}

// RoleService handles custom role provisioning and schema reads.
type RoleService interface {
	// Create persists a new role configuration. The role's data is imported
	// separately; creation only records where the data lives.
	Create(ctx context.Context, req CreateRoleRequest) (*models.RoleConfig, error)

	// Get returns the stored configuration for a role.
	Get(ctx context.Context, roleName string) (*models.RoleConfig, error)

	// List returns summaries of all roles, newest first.
	List(ctx context.Context) ([]models.RoleSummary, error)

	// Schema describes the imported tables in the role's local store.
	Schema(ctx context.Context, roleName string) ([]models.ImportedTable, error)
}

type roleService struct {
	configRepo repositories.RoleConfigRepository
	dbManager  *database.Manager
	logger     *zap.Logger
}

// NewRoleService creates a new RoleService.
func NewRoleService(configRepo repositories.RoleConfigRepository, dbManager *database.Manager, logger *zap.Logger) RoleService {
	return &roleService{
		configRepo: configRepo,
		dbManager:  dbManager,
		logger:     logger.Named("role-service"),
	}
}

var _ RoleService = (*roleService)(nil)

func (s *roleService) Create(ctx context.Context, req CreateRoleRequest) (*models.RoleConfig, error) {
	if req.RoleName == "" {
		return nil, fmt.Errorf("role name is required")
	}
	if database.SanitizeRoleName(req.RoleName) == "" {
		return nil, fmt.Errorf("role name %q contains no usable characters", req.RoleName)
	}
	if len(req.SourceTables) == 0 {
		return nil, fmt.Errorf("at least one source table is required")
	}

	cfg := &models.RoleConfig{
		RoleName:      req.RoleName,
		SourceProject: req.SourceProject,
		SourceDataset: req.SourceDataset,
		SourceTables:  req.SourceTables,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.configRepo.Create(cfg, req.Credential); err != nil {
		return nil, err
	}
	s.logger.Info("created custom role",
		zap.String("role", req.RoleName),
		zap.Int("tables", len(req.SourceTables)),
		zap.Bool("has_credential", cfg.HasCredential))
	return cfg, nil
}

func (s *roleService) Get(ctx context.Context, roleName string) (*models.RoleConfig, error) {
	return s.configRepo.Get(roleName)
}

func (s *roleService) List(ctx context.Context) ([]models.RoleSummary, error) {
	return s.configRepo.List()
}

func (s *roleService) Schema(ctx context.Context, roleName string) ([]models.ImportedTable, error) {
	if _, err := s.configRepo.Get(roleName); err != nil {
		return nil, err
	}
	db, err := s.dbManager.OpenExisting(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: no imported data for %s", apperrors.ErrRoleNotFound, roleName)
	}
	defer db.Close()

	tables, err := database.ListDataTables(ctx, db)
	if err != nil {
		return nil, err
	}

	imported := make([]models.ImportedTable, 0, len(tables))
	for _, table := range tables {
		columns, err := tableColumns(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("failed to describe table %s: %w", table, err)
		}
		var count int64
		countQuery := fmt.Sprintf("SELECT COUNT(1) FROM %s", database.QuoteIdentifier(table))
		if err := db.QueryRowContext(ctx, countQuery).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows of %s: %w", table, err)
		}
		imported = append(imported, models.ImportedTable{
			Name:     table,
			Columns:  columns,
			RowCount: count,
		})
	}
	return imported, nil
}
