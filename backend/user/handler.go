package user

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/PressureTank/watchlist/backend/common"
	"github.com/PressureTank/watchlist/backend/session"
	"github.com/PressureTank/watchlist/backend/web"
)

// Flash messages shown by the auth pages.
const (
	FlashLoginSuccess    = "Login success."
	FlashInvalidInput    = "Invalid input."
	FlashBadCredentials  = "Invalid username or password."
	FlashTooManyAttempts = "Too many login attempts, try again later."
	FlashGoodbye         = "Goodbye."
	FlashSettingsUpdated = "Settings updated."
)

// Handler serves the login, logout and settings routes and provides the
// session middleware used by every other route.
type Handler struct {
	svc      *Service
	sessions *session.Manager
	renderer *web.Renderer
	limiter  *LoginLimiter
	logger   *zap.Logger
}

// NewUserHandler wires a Handler. A nil limiter disables login throttling.
func NewUserHandler(svc *Service, sessions *session.Manager, renderer *web.Renderer, limiter *LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		sessions: sessions,
		renderer: renderer,
		limiter:  limiter,
		logger:   logger,
	}
}

// Authenticate resolves the session cookie, if any, and stores the user in the
// request context. Requests without a valid session pass through anonymous.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.sessions.Read(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		id, err := claims.UserID()
		if err != nil {
			h.sessions.Clear(w)
			next.ServeHTTP(w, r)
			return
		}

		u, err := h.svc.Authorize(r.Context(), id, claims.Version)
		if errors.Is(err, common.ErrUnauthenticated) {
			h.sessions.Clear(w)
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			h.serverError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), u)))
	})
}

// RequireAuth is the route guard: anonymous requests are sent to the login page.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			web.Redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Page builds the common template data: pending flashes, the display name and
// whether the visitor is logged in.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request, title string, data any) web.Page {
	p := web.Page{Title: title, Flashes: h.sessions.PopFlashes(w, r), Data: data}

	if u, ok := FromContext(r.Context()); ok {
		p.Authenticated = true
		p.Name = u.Name
		return p
	}

	admin, err := h.svc.Admin(r.Context())
	switch {
	case err == nil:
		p.Name = admin.Name
	case !errors.Is(err, common.ErrNotFound):
		web.Logger(r.Context(), h.logger).Warn("failed to load admin name", zap.Error(err))
	}
	return p
}

// LoginPage renders the login form.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageLogin, h.Page(w, r, "Login", nil))
}

// LoginHandler checks the submitted credentials and starts a session.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(r) {
		web.Logger(r.Context(), h.logger).Warn("login throttled",
			zap.String("client", clientKey(r)), zap.Error(common.ErrTooManyAttempts))
		h.sessions.Flash(w, r, FlashTooManyAttempts)
		web.Redirect(w, r, "/login")
		return
	}

	u, err := h.svc.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		h.sessions.Flash(w, r, FlashInvalidInput)
		web.Redirect(w, r, "/login")
		return
	case errors.Is(err, common.ErrInvalidCredentials):
		h.sessions.Flash(w, r, FlashBadCredentials)
		web.Redirect(w, r, "/login")
		return
	case err != nil:
		h.serverError(w, r, err)
		return
	}

	if err := h.sessions.Issue(w, u.ID, u.SessionVersion); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.sessions.Flash(w, r, FlashLoginSuccess)
	web.Redirect(w, r, "/")
}

// LogoutHandler ends the current session.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := FromContext(r.Context())
	if err := h.svc.Logout(r.Context(), u); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.sessions.Clear(w)
	h.sessions.Flash(w, r, FlashGoodbye)
	web.Redirect(w, r, "/")
}

// SettingsPage renders the display-name form.
func (h *Handler) SettingsPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageSettings, h.Page(w, r, "Settings", nil))
}

// SettingsHandler updates the display name.
func (h *Handler) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		web.Redirect(w, r, "/login")
		return
	}

	err := h.svc.UpdateName(r.Context(), u.ID, r.PostFormValue("name"))
	if errors.Is(err, common.ErrInvalidInput) {
		h.sessions.Flash(w, r, FlashInvalidInput)
		web.Redirect(w, r, "/settings")
		return
	}
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	h.sessions.Flash(w, r, FlashSettingsUpdated)
	web.Redirect(w, r, "/")
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	web.Logger(r.Context(), h.logger).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.renderer.ServerError(w, web.Page{})
}
