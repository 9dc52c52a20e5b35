package services

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
)

// openBareRoleDB opens a role store with bookkeeping tables only.
func openBareRoleDB(t *testing.T, roleName string) *sql.DB {
	t.Helper()
	manager, err := database.NewManager(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	db, err := manager.Open(roleName)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuildAnalysisContextProfilesTables(t *testing.T) {
	db := openBareRoleDB(t, "context role")
	_, err := db.Exec(`CREATE TABLE orders (order_id INTEGER, region TEXT, amount REAL)`)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		region := "north"
		if i%3 == 0 {
			region = "south"
		}
		_, err := db.Exec(`INSERT INTO orders VALUES (?, ?, ?)`, i, region, float64(i)*1.5)
		require.NoError(t, err)
	}

	descriptions := map[string]models.TableDescription{
		"orders": {TableDescription: "order facts"},
	}
	analysis, err := BuildAnalysisContext(context.Background(), db, "Ops Lead", descriptions)
	require.NoError(t, err)

	assert.Equal(t, "Ops Lead", analysis.RoleName)
	assert.Equal(t, descriptions, analysis.SchemaDescriptions)
	require.Contains(t, analysis.Tables, "orders")

	profile := analysis.Tables["orders"]
	assert.Equal(t, int64(12), profile.RowCount)
	assert.Len(t, profile.SampleRows, 5)
	require.Len(t, profile.Columns, 3)
	assert.Equal(t, "order_id", profile.Columns[0].Name)
	assert.Equal(t, models.TypeInteger, profile.Columns[0].InferredType)

	// The region column distribution carries the top values with counts.
	dist, ok := profile.Distributions["region"]
	require.True(t, ok)
	require.Len(t, dist, 2)
	assert.Equal(t, "north", dist[0].Value)
	assert.Equal(t, int64(8), dist[0].Count)
}

func TestBuildAnalysisContextEmptyStore(t *testing.T) {
	db := openBareRoleDB(t, "empty role")
	_, err := BuildAnalysisContext(context.Background(), db, "empty role", nil)
	assert.ErrorIs(t, err, apperrors.ErrNoDataTables)
}

func TestBuildAnalysisContextIgnoresBookkeeping(t *testing.T) {
	db := openBareRoleDB(t, "bookkeeping role")
	_, err := db.Exec(`CREATE TABLE visits (id INTEGER)`)
	require.NoError(t, err)

	analysis, err := BuildAnalysisContext(context.Background(), db, "x", nil)
	require.NoError(t, err)
	assert.Len(t, analysis.Tables, 1)
	assert.NotContains(t, analysis.Tables, "app_chart_insights")
}

func TestColumnDistributionCapsValues(t *testing.T) {
	db := openBareRoleDB(t, "distribution role")
	_, err := db.Exec(`CREATE TABLE t (category TEXT)`)
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		_, err := db.Exec(`INSERT INTO t VALUES (?)`, fmt.Sprintf("cat_%d", i))
		require.NoError(t, err)
	}

	counts, err := columnDistribution(context.Background(), db, "t", "category")
	require.NoError(t, err)
	assert.Len(t, counts, contextDistributionTop)
}
