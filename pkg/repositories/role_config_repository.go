// Package repositories provides durable storage for role configuration,
// analysis plans, and chart insights.
package repositories

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
)

// RoleConfigRepository stores one config record per role as a JSON document
// keyed by the sanitized role name, with an optional credential blob
// alongside. Writes are atomic (tmp + rename).
type RoleConfigRepository interface {
	// Create persists a new role config and, when non-empty, its credential blob.
	Create(cfg *models.RoleConfig, credential []byte) error

	// Get returns the stored config, or apperrors.ErrRoleNotFound.
	Get(roleName string) (*models.RoleConfig, error)

	// Save overwrites the stored config.
	Save(cfg *models.RoleConfig) error

	// List returns summaries of all stored roles, newest first.
	List() ([]models.RoleSummary, error)

	// Credential returns the attached credential blob, or nil when none exists.
	Credential(roleName string) ([]byte, error)
}

type roleConfigRepository struct {
	dataDir string
}

// NewRoleConfigRepository creates a RoleConfigRepository rooted at dataDir.
func NewRoleConfigRepository(dataDir string) (RoleConfigRepository, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}
	return &roleConfigRepository{dataDir: dataDir}, nil
}

var _ RoleConfigRepository = (*roleConfigRepository)(nil)

func (r *roleConfigRepository) configPath(roleName string) string {
	return filepath.Join(r.dataDir, database.SanitizeRoleName(roleName)+".json")
}

func (r *roleConfigRepository) credentialPath(roleName string) string {
	return filepath.Join(r.dataDir, database.SanitizeRoleName(roleName)+".cred.json")
}

func (r *roleConfigRepository) Create(cfg *models.RoleConfig, credential []byte) error {
	if cfg.RoleName == "" {
		return fmt.Errorf("role name is required")
	}
	if len(credential) > 0 {
		// Credentials live next to the config but are never listed or served.
		if err := writeFileAtomic(r.credentialPath(cfg.RoleName), credential, 0o600); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}
		cfg.HasCredential = true
	}
	return r.Save(cfg)
}

func (r *roleConfigRepository) Get(roleName string) (*models.RoleConfig, error) {
	data, err := os.ReadFile(r.configPath(roleName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to read role config: %w", err)
	}

	var cfg models.RoleConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse role config: %w", err)
	}
	return &cfg, nil
}

func (r *roleConfigRepository) Save(cfg *models.RoleConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode role config: %w", err)
	}
	if err := writeFileAtomic(r.configPath(cfg.RoleName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write role config: %w", err)
	}
	return nil
}

func (r *roleConfigRepository) List() ([]models.RoleSummary, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var roles []models.RoleSummary
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") ||
			strings.HasSuffix(name, ".plan.json") ||
			strings.HasSuffix(name, ".cred.json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(r.dataDir, name))
		if err != nil {
			continue
		}
		var cfg models.RoleConfig
		if err := json.Unmarshal(data, &cfg); err != nil || cfg.RoleName == "" {
			continue
		}
		roles = append(roles, models.RoleSummary{
			Name:    cfg.RoleName,
			ID:      database.SanitizeRoleName(cfg.RoleName),
			Created: cfg.CreatedAt,
		})
	}

	sort.Slice(roles, func(i, j int) bool {
		return roles[i].Created.After(roles[j].Created)
	})
	return roles, nil
}

func (r *roleConfigRepository) Credential(roleName string) ([]byte, error) {
	data, err := os.ReadFile(r.credentialPath(roleName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	return data, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
