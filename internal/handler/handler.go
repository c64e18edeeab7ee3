package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/ieltsprep/mockcenter/internal/auth"
	appI18n "github.com/ieltsprep/mockcenter/internal/i18n"
	"github.com/ieltsprep/mockcenter/internal/llm"
	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/results"
	"github.com/ieltsprep/mockcenter/internal/scoring"
	"github.com/ieltsprep/mockcenter/internal/store"
)

const maxBodyBytes = 10 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	results *results.Service
	auth    *auth.Service
	config  model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, svc *results.Service, cfg model.ServerConfig) (*Handler, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	cfg.TokenTTL = auth.TTLOrDefault(cfg.TokenTTL)
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	return &Handler{store: s, results: svc, auth: auth.NewService(cfg.JWTSecret), config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	origins := h.config.AllowedOrigin
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.handleHealth)
	r.Post("/api/login", h.handleLogin)
	r.Post("/api/score/band", h.handleScoreBand)
	r.Post("/api/score/aggregate", h.handleScoreAggregate)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/api/logout", h.handleLogout)
		r.Get("/api/me", h.handleMe)
		r.Get("/api/tests", h.handleListTests)

		r.Post("/api/results/{section}", h.handleSubmitSection)
		r.Get("/api/results/{section}", h.handleListSection)
		r.Get("/api/results/{section}/{id}", h.handleGetSection)
		r.With(requireRole(model.UserRoleAdmin)).Delete("/api/results/{section}/{id}", h.handleDeleteSection)

		r.Post("/api/fullmock", h.handleSubmitFullMock)
		r.Get("/api/fullmock", h.handleListFullMocks)
		r.Get("/api/fullmock/{id}", h.handleGetFullMock)
		r.With(requireRole(model.UserRoleAdmin)).Delete("/api/fullmock/{id}", h.handleDeleteFullMock)
		r.With(requireRole(model.UserRoleAdmin)).Put("/api/fullmock/{id}/writing", h.handleAssignWriting)
		r.With(requireRole(model.UserRoleAdmin, model.UserRoleTeacher)).Post("/api/fullmock/{id}/writing/suggest", h.handleSuggestWriting)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Post("/createUser", h.handleCreateUser)
			r.Post("/deleteUser", h.handleDeleteUser)
			r.Get("/users", h.handleListUsers)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
			r.Post("/tests", h.handleImportTests)
			r.Get("/export", h.handleExport)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.requirePageAuth)
		r.Use(appI18n.Middleware(h.config.Lang))
		r.Get("/results/{section}/{id}", h.handleSectionPage)
		r.Get("/fullmock/{id}", h.handleFullMockPage)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scoring_mode": string(h.results.Mode())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scoring.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, results.ErrNoAssessor):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, llm.ErrBadResponse):
		slog.Warn("writing assessor failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadGateway, "writing assessor returned an invalid response")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, scoring.ErrInvalidInput) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

func renderHTML(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}
