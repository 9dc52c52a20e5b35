package repositories

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
)

func openActionDB(t *testing.T) *sql.DB {
	t.Helper()
	manager, err := database.NewManager(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	db, err := manager.Open("actions role")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveActionGeneratesID(t *testing.T) {
	db := openActionDB(t)
	repo := NewActionRepository()
	ctx := context.Background()

	saved, err := repo.Save(ctx, db, &models.SavedAction{Title: "Investigate north region dip"})
	require.NoError(t, err)
	assert.Equal(t, models.ActionPending, saved.Status)
	_, err = uuid.Parse(saved.ActionID)
	assert.NoError(t, err)

	got, err := repo.Get(ctx, db, saved.ActionID)
	require.NoError(t, err)
	assert.Equal(t, "Investigate north region dip", got.Title)
}

func TestSaveActionKeepsExplicitID(t *testing.T) {
	db := openActionDB(t)
	repo := NewActionRepository()

	saved, err := repo.Save(context.Background(), db, &models.SavedAction{
		ActionID: "act_explicit",
		Title:    "Review pricing",
		Status:   models.ActionInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, "act_explicit", saved.ActionID)
	assert.Equal(t, models.ActionInProgress, saved.Status)
}

func TestSaveActionRejectsBadStatus(t *testing.T) {
	db := openActionDB(t)
	_, err := NewActionRepository().Save(context.Background(), db, &models.SavedAction{
		Title:  "x",
		Status: "snoozed",
	})
	assert.Error(t, err)
}

func TestGetActionMissing(t *testing.T) {
	db := openActionDB(t)
	_, err := NewActionRepository().Get(context.Background(), db, "ghost")
	assert.ErrorIs(t, err, apperrors.ErrActionNotFound)
}

func TestListActionsNewestFirst(t *testing.T) {
	db := openActionDB(t)
	repo := NewActionRepository()
	ctx := context.Background()

	// Timestamps have second granularity; insertion order breaks ties.
	for _, title := range []string{"first", "second", "third"} {
		_, err := repo.Save(ctx, db, &models.SavedAction{Title: title})
		require.NoError(t, err)
	}

	actions, err := repo.List(ctx, db)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, "third", actions[0].Title)
	assert.Equal(t, "first", actions[2].Title)
}

func TestUpdateActionStatus(t *testing.T) {
	db := openActionDB(t)
	repo := NewActionRepository()
	ctx := context.Background()

	saved, err := repo.Save(ctx, db, &models.SavedAction{Title: "x"})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, db, saved.ActionID, models.ActionCompleted))
	got, err := repo.Get(ctx, db, saved.ActionID)
	require.NoError(t, err)
	assert.Equal(t, models.ActionCompleted, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, db, "ghost", models.ActionCompleted), apperrors.ErrActionNotFound)
	assert.Error(t, repo.UpdateStatus(ctx, db, saved.ActionID, "snoozed"))
}

func TestDeleteActionRemovesNotes(t *testing.T) {
	db := openActionDB(t)
	repo := NewActionRepository()
	ctx := context.Background()

	saved, err := repo.Save(ctx, db, &models.SavedAction{Title: "x"})
	require.NoError(t, err)
	_, err = repo.AddNote(ctx, db, saved.ActionID, "a note")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, db, saved.ActionID))
	_, err = repo.Get(ctx, db, saved.ActionID)
	assert.ErrorIs(t, err, apperrors.ErrActionNotFound)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM app_action_notes`).Scan(&count))
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.Delete(ctx, db, saved.ActionID), apperrors.ErrActionNotFound)
}

func TestActionNotes(t *testing.T) {
	db := openActionDB(t)
	repo := NewActionRepository()
	ctx := context.Background()

	saved, err := repo.Save(ctx, db, &models.SavedAction{Title: "x"})
	require.NoError(t, err)

	first, err := repo.AddNote(ctx, db, saved.ActionID, "first note")
	require.NoError(t, err)
	second, err := repo.AddNote(ctx, db, saved.ActionID, "second note")
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	notes, err := repo.Notes(ctx, db, saved.ActionID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second note", notes[0].Text)

	// Notes require an existing action.
	_, err = repo.AddNote(ctx, db, "ghost", "orphan")
	assert.ErrorIs(t, err, apperrors.ErrActionNotFound)

	require.NoError(t, repo.DeleteNote(ctx, db, first.ID))
	assert.ErrorIs(t, repo.DeleteNote(ctx, db, first.ID), apperrors.ErrNoteNotFound)
}
