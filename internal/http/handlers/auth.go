package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/models/dto"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/session"
)

// AuthHandler owns sign-up, sign-in, sign-out and reset-request endpoints.
type AuthHandler struct {
	recoveryURL string
}

// NewAuthHandler constructs the handler. recoveryURL is where reset emails
// send the user.
func NewAuthHandler(recoveryURL string) *AuthHandler {
	return &AuthHandler{recoveryURL: recoveryURL}
}

// Register attaches auth routes.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/sign-up", h.handleSignUp)
	r.Post("/auth/sign-in", h.handleSignIn)
	r.Post("/auth/sign-out", h.handleSignOut)
	r.Post("/auth/recover", h.handleRecover)
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	_, c, ok := currentController(w, r)
	if !ok {
		return
	}
	var req dto.SignUpRequest
	if !decode(w, r, &req) {
		return
	}
	err := c.SignUp(r.Context(), strings.TrimSpace(req.Email), req.Password, req.Fields())
	var partial *session.PartialSignUpError
	switch {
	case err == nil:
		respond.JSON(w, http.StatusCreated, "Account created", settled(r.Context(), c))
	case errors.As(err, &partial):
		respond.JSON(w, http.StatusAccepted, "Account created but the profile could not be saved", map[string]any{
			"user_id":         partial.UserID,
			"profile_missing": true,
		})
	case errors.Is(err, session.ErrClosed):
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable, reload the page")
	default:
		providerError(w, r, err)
	}
}

func (h *AuthHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	_, c, ok := currentController(w, r)
	if !ok {
		return
	}
	var req dto.SignInRequest
	if !decode(w, r, &req) {
		return
	}
	if err := c.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Password); err != nil {
		if errors.Is(err, session.ErrClosed) {
			respond.Error(w, http.StatusServiceUnavailable, "session unavailable, reload the page")
			return
		}
		providerError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Signed in", settled(r.Context(), c))
}

func (h *AuthHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	v, c, ok := currentController(w, r)
	if !ok {
		return
	}
	c.SignOut(r.Context())
	respond.JSON(w, http.StatusOK, "Signed out", map[string]any{
		"redirect": v.TakeNavigation(),
		"session":  dto.NewSessionResponse(c.Snapshot()),
	})
}

func (h *AuthHandler) handleRecover(w http.ResponseWriter, r *http.Request) {
	v, ok := currentVisitor(w, r)
	if !ok {
		return
	}
	var req dto.RecoverRequest
	if !decode(w, r, &req) {
		return
	}
	if err := v.Provider.ResetPasswordForEmail(r.Context(), strings.TrimSpace(req.Email), h.recoveryURL); err != nil {
		providerError(w, r, err)
		return
	}
	obs.LogEvent(r.Context(), "auth.recover_requested", nil)
	respond.JSON(w, http.StatusOK, "If an account exists for this address, a reset link is on its way.", nil)
}
