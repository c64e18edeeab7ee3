package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ieltsprep/mockcenter/internal/model"
)

type createUserRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Name     string         `json:"name"`
	Role     model.UserRole `json:"role"`
}

type adminResponse struct {
	Success bool   `json:"success"`
	UID     string `json:"uid"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "email, password and role required")
		return
	}
	if !req.Role.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown role")
		return
	}

	existing, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	name := req.Name
	if name == "" {
		name = req.Email
	}

	uid, err := h.store.CreateUser(model.User{
		Email:        req.Email,
		DisplayName:  name,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adminResponse{Success: true, UID: uid})
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UID == "" {
		writeError(w, http.StatusBadRequest, "uid required")
		return
	}
	if caller := model.UserFromContext(r.Context()); caller != nil && caller.ID == req.UID {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	deleted, err := h.store.DeleteUser(req.UID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, adminResponse{Success: true, UID: req.UID})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	user, err := h.store.GetUserByID(id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.store.ToggleUserActive(id); err != nil {
		slog.Error("failed to toggle user active", "id", id, "error", err)
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uid": id, "active": !user.Active})
}

// handleImportTests accepts a test catalogue file as the request body.
// The "name" query parameter identifies the file for duplicate detection.
func (h *Handler) handleImportTests(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.json"
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	n, skipped, err := h.results.ImportTests(name, data)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	slog.Info("uploaded tests via admin", "name", name, "count", n, "skipped", skipped)
	writeJSON(w, http.StatusOK, map[string]any{"imported": n, "skipped": skipped})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.results.Export()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
