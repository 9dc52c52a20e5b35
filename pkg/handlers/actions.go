package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/roledash/roledash-engine/pkg/apperrors"
	"github.com/roledash/roledash-engine/pkg/database"
	"github.com/roledash/roledash-engine/pkg/models"
	"github.com/roledash/roledash-engine/pkg/repositories"
	sqlvalidator "github.com/roledash/roledash-engine/pkg/sql"
)

// SaveActionRequest represents the request body for saving a workspace action.
type SaveActionRequest struct {
	RoleName    string `json:"role_name"`
	ActionID    string `json:"action_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// UpdateActionStatusRequest carries the new status for an action.
type UpdateActionStatusRequest struct {
	Status string `json:"status"`
}

// AddActionNoteRequest carries a note to attach to an action.
type AddActionNoteRequest struct {
	Text string `json:"text"`
}

// ActionHandler manages the workspace actions an operator saves against a
// role's dashboard, with free-text notes per action.
type ActionHandler struct {
	actionRepo repositories.ActionRepository
	dbManager  *database.Manager
	logger     *zap.Logger
}

// NewActionHandler creates a new ActionHandler.
func NewActionHandler(actionRepo repositories.ActionRepository, dbManager *database.Manager, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{actionRepo: actionRepo, dbManager: dbManager, logger: logger}
}

// RegisterRoutes registers the action handler's routes on the given mux.
func (h *ActionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/custom_role/actions", h.Save)
	mux.HandleFunc("GET /api/custom_role/actions/{role_name}", h.List)
	mux.HandleFunc("POST /api/custom_role/actions/{role_name}/{action_id}/status", h.UpdateStatus)
	mux.HandleFunc("DELETE /api/custom_role/actions/{role_name}/{action_id}", h.Delete)
	mux.HandleFunc("POST /api/custom_role/actions/{role_name}/{action_id}/notes", h.AddNote)
	mux.HandleFunc("GET /api/custom_role/actions/{role_name}/{action_id}/notes", h.Notes)
	mux.HandleFunc("DELETE /api/custom_role/action_notes/{role_name}/{note_id}", h.DeleteNote)
}

// Save handles POST /api/custom_role/actions.
func (h *ActionHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if !h.screen(w, "role_name", req.RoleName) {
		return
	}
	if req.Title == "" {
		writeError(h.logger, w, http.StatusBadRequest, "missing_title", "Missing title")
		return
	}
	if req.ActionID != "" && !h.screen(w, "action_id", req.ActionID) {
		return
	}

	db, ok := h.openRole(w, req.RoleName)
	if !ok {
		return
	}
	defer db.Close()

	action, err := h.actionRepo.Save(r.Context(), db, &models.SavedAction{
		ActionID:    req.ActionID,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.writeActionError(w, req.RoleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "action": action}); err != nil {
		h.logger.Error("Failed to encode action response", zap.Error(err))
	}
}

// List handles GET /api/custom_role/actions/{role_name}.
func (h *ActionHandler) List(w http.ResponseWriter, r *http.Request) {
	roleName := r.PathValue("role_name")
	if !h.screen(w, "role_name", roleName) {
		return
	}

	db, ok := h.openRole(w, roleName)
	if !ok {
		return
	}
	defer db.Close()

	actions, err := h.actionRepo.List(r.Context(), db)
	if err != nil {
		h.writeActionError(w, roleName, err)
		return
	}
	if actions == nil {
		actions = []models.SavedAction{}
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "actions": actions}); err != nil {
		h.logger.Error("Failed to encode actions response", zap.Error(err))
	}
}

// UpdateStatus handles POST /api/custom_role/actions/{role_name}/{action_id}/status.
func (h *ActionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	roleName := r.PathValue("role_name")
	actionID := r.PathValue("action_id")
	if !h.screen(w, "role_name", roleName) || !h.screen(w, "action_id", actionID) {
		return
	}

	var req UpdateActionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	status := models.ActionStatus(req.Status)
	if !models.ValidActionStatus(status) {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_status", "Invalid status")
		return
	}

	db, ok := h.openRole(w, roleName)
	if !ok {
		return
	}
	defer db.Close()

	if err := h.actionRepo.UpdateStatus(r.Context(), db, actionID, status); err != nil {
		h.writeActionError(w, roleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "action_id": actionID, "status": status}); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}

// Delete handles DELETE /api/custom_role/actions/{role_name}/{action_id}.
func (h *ActionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roleName := r.PathValue("role_name")
	actionID := r.PathValue("action_id")
	if !h.screen(w, "role_name", roleName) || !h.screen(w, "action_id", actionID) {
		return
	}

	db, ok := h.openRole(w, roleName)
	if !ok {
		return
	}
	defer db.Close()

	if err := h.actionRepo.Delete(r.Context(), db, actionID); err != nil {
		h.writeActionError(w, roleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "action_id": actionID}); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// AddNote handles POST /api/custom_role/actions/{role_name}/{action_id}/notes.
func (h *ActionHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	roleName := r.PathValue("role_name")
	actionID := r.PathValue("action_id")
	if !h.screen(w, "role_name", roleName) || !h.screen(w, "action_id", actionID) {
		return
	}

	var req AddActionNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if req.Text == "" {
		writeError(h.logger, w, http.StatusBadRequest, "missing_text", "Missing text")
		return
	}

	db, ok := h.openRole(w, roleName)
	if !ok {
		return
	}
	defer db.Close()

	note, err := h.actionRepo.AddNote(r.Context(), db, actionID, req.Text)
	if err != nil {
		h.writeActionError(w, roleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "note": note}); err != nil {
		h.logger.Error("Failed to encode note response", zap.Error(err))
	}
}

// Notes handles GET /api/custom_role/actions/{role_name}/{action_id}/notes.
func (h *ActionHandler) Notes(w http.ResponseWriter, r *http.Request) {
	roleName := r.PathValue("role_name")
	actionID := r.PathValue("action_id")
	if !h.screen(w, "role_name", roleName) || !h.screen(w, "action_id", actionID) {
		return
	}

	db, ok := h.openRole(w, roleName)
	if !ok {
		return
	}
	defer db.Close()

	notes, err := h.actionRepo.Notes(r.Context(), db, actionID)
	if err != nil {
		h.writeActionError(w, roleName, err)
		return
	}
	if notes == nil {
		notes = []models.ActionNote{}
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "notes": notes}); err != nil {
		h.logger.Error("Failed to encode notes response", zap.Error(err))
	}
}

// DeleteNote handles DELETE /api/custom_role/action_notes/{role_name}/{note_id}.
func (h *ActionHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	roleName := r.PathValue("role_name")
	if !h.screen(w, "role_name", roleName) {
		return
	}
	noteID, err := strconv.ParseInt(r.PathValue("note_id"), 10, 64)
	if err != nil {
		writeError(h.logger, w, http.StatusBadRequest, "invalid_note_id", "Invalid note_id")
		return
	}

	db, ok := h.openRole(w, roleName)
	if !ok {
		return
	}
	defer db.Close()

	if err := h.actionRepo.DeleteNote(r.Context(), db, noteID); err != nil {
		h.writeActionError(w, roleName, err)
		return
	}
	if err := WriteJSON(w, http.StatusOK, map[string]any{"ok": true}); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

func (h *ActionHandler) openRole(w http.ResponseWriter, roleName string) (*sql.DB, bool) {
	db, err := h.dbManager.OpenExisting(roleName)
	if err != nil {
		writeError(h.logger, w, http.StatusNotFound, "role_not_found", "Role not found: "+roleName)
		return nil, false
	}
	return db, true
}

func (h *ActionHandler) screen(w http.ResponseWriter, name, value string) bool {
	if value == "" {
		writeError(h.logger, w, http.StatusBadRequest, "missing_"+name, "Missing "+name)
		return false
	}
	if result := sqlvalidator.CheckParameterForInjection(name, value); result != nil {
		h.logger.Warn("rejected parameter with injection pattern",
			zap.String("param", name),
			zap.String("fingerprint", result.Fingerprint))
		writeError(h.logger, w, http.StatusBadRequest, "invalid_"+name, "Invalid "+name)
		return false
	}
	return true
}

func (h *ActionHandler) writeActionError(w http.ResponseWriter, roleName string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrActionNotFound):
		writeError(h.logger, w, http.StatusNotFound, "action_not_found", "Action not found")
	case errors.Is(err, apperrors.ErrNoteNotFound):
		writeError(h.logger, w, http.StatusNotFound, "note_not_found", "Note not found")
	default:
		h.logger.Error("Action operation failed", zap.String("role", roleName), zap.Error(err))
		writeError(h.logger, w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
