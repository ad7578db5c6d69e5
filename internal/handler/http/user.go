package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MinhajJamraiz/natours/internal/service"
	"github.com/MinhajJamraiz/natours/pkg/httputil"
	"github.com/MinhajJamraiz/natours/pkg/middleware"
)

// CookieConfig controls the session cookie set on signup and login.
type CookieConfig struct {
	TTL time.Duration
	// Secure restricts the cookie to HTTPS.
	Secure bool
}

// UserHandler handles HTTP requests for authentication and user endpoints.
type UserHandler struct {
	service *service.UserService
	cookie  CookieConfig
	logger  *slog.Logger
}

// NewUserHandler creates a new user HTTP handler. A zero cookie TTL falls
// back to the token lifetime.
func NewUserHandler(svc *service.UserService, cookie CookieConfig, logger *slog.Logger) *UserHandler {
	if cookie.TTL <= 0 {
		cookie.TTL = svc.TokenExpiry()
	}
	return &UserHandler{service: svc, cookie: cookie, logger: logger}
}

// sendSession answers with the token in the body and in the session cookie.
func (h *UserHandler) sendSession(w http.ResponseWriter, status int, s *service.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookie.TTL),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, status, httputil.Response{
		Status: httputil.StatusSuccess,
		Token:  s.Token,
		Data:   map[string]any{"user": s.User},
	})
}

// Signup handles POST /api/v1/users/signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	session, err := h.service.Signup(r.Context(), &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sendSession(w, http.StatusCreated, session)
}

// Login handles POST /api/v1/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	session, err := h.service.Login(r.Context(), &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.logger.InfoContext(r.Context(), "user logged in", slog.String("user_id", session.User.ID()))
	h.sendSession(w, http.StatusOK, session)
}

// Logout handles GET /api/v1/users/logout by expiring the session cookie.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Status: httputil.StatusSuccess})
}

// ForgotPassword handles POST /api/v1/users/forgotPassword
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ForgotPasswordInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Status:  httputil.StatusSuccess,
		Message: "Token sent to email!",
	})
}

// ResetPassword handles PATCH /api/v1/users/resetPassword/{token}
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in service.ResetPasswordInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	session, err := h.service.ResetPassword(r.Context(), chi.URLParam(r, "token"), &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Me(r.Context(), middleware.UserIDFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(user))
}

// UpdatePassword handles PATCH /api/v1/users/updateMyPassword
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var in service.UpdatePasswordInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	session, err := h.service.UpdatePassword(r.Context(), middleware.UserIDFromContext(r.Context()), &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.sendSession(w, http.StatusOK, session)
}

// UpdateMe handles PATCH /api/v1/users/updateMe
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateMeInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.service.UpdateMe(r.Context(), middleware.UserIDFromContext(r.Context()), &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, map[string]any{"user": user})
}

// DeleteMe handles DELETE /api/v1/users/deleteMe
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMe(r.Context(), middleware.UserIDFromContext(r.Context())); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}

// ListUsers handles GET /api/v1/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	desc, _ := description(r)
	res, err := h.service.List(r.Context(), desc)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeResult(w, res)
}

// GetUser handles GET /api/v1/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(user))
}

// UpdateUser handles PATCH /api/v1/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var in service.UpdateUserInput
	if err := httputil.DecodeJSON(w, r, &in); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	user, err := h.service.Update(r.Context(), id, &in)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, wrap(user))
}

// DeleteUser handles DELETE /api/v1/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteNoContent(w)
}
