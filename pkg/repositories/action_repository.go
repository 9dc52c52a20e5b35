package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/models"
)

// ActionRepository stores workspace actions and their notes in the role's own
// SQLite store, in the reserved app_saved_actions and app_action_notes
// tables. Like ChartInsightRepository, the role DB handle is passed per call.
type ActionRepository interface {
	// Save persists a new action. An empty ActionID gets a generated one;
	// an empty Status defaults to pending. Returns the stored action.
	Save(ctx context.Context, db *sql.DB, action *models.SavedAction) (*models.SavedAction, error)

	// Get returns the stored action, or apperrors.ErrActionNotFound.
	Get(ctx context.Context, db *sql.DB, actionID string) (*models.SavedAction, error)

	// List returns all saved actions, newest first.
	List(ctx context.Context, db *sql.DB) ([]models.SavedAction, error)

	// UpdateStatus moves the action to a new status.
	UpdateStatus(ctx context.Context, db *sql.DB, actionID string, status models.ActionStatus) error

	// Delete removes the action and, via the schema's cascade, its notes.
	Delete(ctx context.Context, db *sql.DB, actionID string) error

	// AddNote attaches a note to an action and returns it with its id.
	AddNote(ctx context.Context, db *sql.DB, actionID, text string) (*models.ActionNote, error)

	// Notes returns an action's notes, newest first.
	Notes(ctx context.Context, db *sql.DB, actionID string) ([]models.ActionNote, error)

	// DeleteNote removes a note by id, or returns apperrors.ErrNoteNotFound.
	DeleteNote(ctx context.Context, db *sql.DB, noteID int64) error
}

type actionRepository struct{}

// NewActionRepository creates a new ActionRepository.
func NewActionRepository() ActionRepository {
	return &actionRepository{}
}

var _ ActionRepository = (*actionRepository)(nil)

func (r *actionRepository) Save(ctx context.Context, db *sql.DB, action *models.SavedAction) (*models.SavedAction, error) {
	stored := *action
	if stored.ActionID == "" {
		stored.ActionID = uuid.NewString()
	}
	if stored.Status == "" {
		stored.Status = models.ActionPending
	}
	if !models.ValidActionStatus(stored.Status) {
		return nil, fmt.Errorf("invalid action status %q", stored.Status)
	}

	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	_, err := db.ExecContext(ctx, `
		INSERT INTO app_saved_actions (action_id, action_title, action_description, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		stored.ActionID, stored.Title, stored.Description, string(stored.Status),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to save action: %w", err)
	}
	return &stored, nil
}

func (r *actionRepository) Get(ctx context.Context, db *sql.DB, actionID string) (*models.SavedAction, error) {
	row := db.QueryRowContext(ctx, `
		SELECT action_id, action_title, action_description, status, created_at, updated_at
		FROM app_saved_actions
		WHERE action_id = ?`,
		actionID)
	action, err := scanAction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query action: %w", err)
	}
	return action, nil
}

func (r *actionRepository) List(ctx context.Context, db *sql.DB) ([]models.SavedAction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT action_id, action_title, action_description, status, created_at, updated_at
		FROM app_saved_actions
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.SavedAction
	for rows.Next() {
		action, err := scanAction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, *action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}
	return actions, nil
}

func scanAction(scan func(...any) error) (*models.SavedAction, error) {
	var (
		action      models.SavedAction
		description sql.NullString
		status      string
		createdAt   string
		updatedAt   string
	)
	if err := scan(&action.ActionID, &action.Title, &description, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	action.Description = description.String
	action.Status = models.ActionStatus(status)
	action.CreatedAt = parseStoredTime(createdAt)
	action.UpdatedAt = parseStoredTime(updatedAt)
	return &action, nil
}

func (r *actionRepository) UpdateStatus(ctx context.Context, db *sql.DB, actionID string, status models.ActionStatus) error {
	if !models.ValidActionStatus(status) {
		return fmt.Errorf("invalid action status %q", status)
	}
	result, err := db.ExecContext(ctx, `
		UPDATE app_saved_actions
		SET status = ?, updated_at = ?
		WHERE action_id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), actionID)
	if err != nil {
		return fmt.Errorf("failed to update action status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrActionNotFound
	}
	return nil
}

func (r *actionRepository) Delete(ctx context.Context, db *sql.DB, actionID string) error {
	// Notes are removed explicitly; SQLite foreign key enforcement is off by
	// default, so the schema's ON DELETE CASCADE is not relied on.
	if _, err := db.ExecContext(ctx,
		`DELETE FROM app_action_notes WHERE action_id = ?`, actionID); err != nil {
		return fmt.Errorf("failed to delete action notes: %w", err)
	}

	result, err := db.ExecContext(ctx,
		`DELETE FROM app_saved_actions WHERE action_id = ?`, actionID)
	if err != nil {
		return fmt.Errorf("failed to delete action: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrActionNotFound
	}
	return nil
}

func (r *actionRepository) AddNote(ctx context.Context, db *sql.DB, actionID, text string) (*models.ActionNote, error) {
	if _, err := r.Get(ctx, db, actionID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `
		INSERT INTO app_action_notes (action_id, note_text, created_at)
		VALUES (?, ?, ?)`,
		actionID, text, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to add action note: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read note id: %w", err)
	}
	return &models.ActionNote{ID: id, ActionID: actionID, Text: text, CreatedAt: now}, nil
}

func (r *actionRepository) Notes(ctx context.Context, db *sql.DB, actionID string) ([]models.ActionNote, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, action_id, note_text, created_at
		FROM app_action_notes
		WHERE action_id = ?
		ORDER BY created_at DESC, id DESC`,
		actionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query action notes: %w", err)
	}
	defer rows.Close()

	var notes []models.ActionNote
	for rows.Next() {
		var (
			note      models.ActionNote
			createdAt string
		)
		if err := rows.Scan(&note.ID, &note.ActionID, &note.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan action note: %w", err)
		}
		note.CreatedAt = parseStoredTime(createdAt)
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action notes: %w", err)
	}
	return notes, nil
}

func (r *actionRepository) DeleteNote(ctx context.Context, db *sql.DB, noteID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM app_action_notes WHERE id = ?`, noteID)
	if err != nil {
		return fmt.Errorf("failed to delete action note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrNoteNotFound
	}
	return nil
}
