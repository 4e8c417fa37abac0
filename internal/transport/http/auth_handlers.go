package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/glasschat/internal/session"
	"github.com/cwrk-planet/glasschat/pkg/httputil"
)

type AuthHandlers struct {
	Identity Identity
	Session  Session
}

// POST /auth/signup
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var in SignUpRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	out, err := h.Identity.SignUp(r.Context(), in.Email, in.Password, in.Name)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, out)
}

// POST /auth/signin
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var in SignInRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	out, err := h.Identity.SignIn(r.Context(), in.Email, in.Password)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, out)
}

// POST /auth/refresh
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in RefreshRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	out, err := h.Identity.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, out)
}

// POST /auth/logout
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Logout(r.Context()); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"signed_out": true})
}

// GET /me
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	u := h.Session.Current()
	if u == nil {
		httputil.Error(w, http.StatusUnauthorized, "not signed in", nil)
		return
	}
	httputil.OK(w, u)
}

// GET /preferences
func (h *AuthHandlers) Preferences(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.Session.Preferences().Values())
}

// POST /preferences/{name}/toggle
func (h *AuthHandlers) TogglePreference(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Session.Preferences().Toggle(session.Preference(chi.URLParam(r, "name"))); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, h.Session.Preferences().Values())
}
