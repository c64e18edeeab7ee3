package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ieltsprep/mockcenter/internal/auth"
	"github.com/ieltsprep/mockcenter/internal/model"
)

const sessionCookieName = "session"

type sessionCtxKey struct{}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionCtxKey{}).(string)
	return id
}

// requestToken returns the bearer token, falling back to the session cookie
// set at login so result pages open in a browser.
func requestToken(r *http.Request) (string, error) {
	tok, err := auth.BearerToken(r)
	if err == nil {
		return tok, nil
	}
	if c, cerr := r.Cookie(sessionCookieName); cerr == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", err
}

// requireAuth authenticates API requests. Only the Authorization header is
// accepted, so a browser's session cookie never authorizes an API call.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return h.authenticate(auth.BearerToken, next)
}

// requirePageAuth authenticates the read-only HTML result pages, which also
// accept the session cookie.
func (h *Handler) requirePageAuth(next http.Handler) http.Handler {
	return h.authenticate(requestToken, next)
}

// authenticate validates the token, its auth session and the user behind it.
func (h *Handler) authenticate(token func(*http.Request) (string, error), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := token(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "missing bearer")
			return
		}
		claims, err := h.auth.Parse(tok)
		if err != nil {
			slog.Debug("rejected token", "error", err)
			writeError(w, http.StatusUnauthorized, "bad token")
			return
		}

		sess, err := h.store.GetAuthSession(claims.ID)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if sess == nil || sess.UserID != claims.Subject {
			writeError(w, http.StatusUnauthorized, "session revoked")
			return
		}

		user, err := h.store.GetUserByID(sess.UserID)
		if err != nil {
			slog.Error("failed to get user", "id", sess.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if user == nil || !user.Active {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = context.WithValue(ctx, sessionCtxKey{}, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// canSeeAll reports whether the user may read every user's results.
func canSeeAll(u *model.User) bool {
	return u != nil && (u.Role == model.UserRoleAdmin || u.Role == model.UserRoleTeacher)
}

func canView(u *model.User, ownerID string) bool {
	return canSeeAll(u) || (u != nil && u.ID == ownerID)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil {
		slog.Error("failed to get user", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !user.Active {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess, err := h.store.CreateAuthSession(user.ID, h.config.TokenTTL)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	tok, err := h.auth.Issue(user, sess)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	slog.Info("user logged in", "id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresAt:   sess.ExpiresAt,
		User:        user,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := sessionIDFromContext(r.Context()); id != "" {
		if err := h.store.DeleteAuthSession(id); err != nil {
			slog.Error("failed to delete auth session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}
