package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/models/dto"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/session"
	"github.com/m3connect/portal/internal/storage"
)

// ProfileHandler serves self-service profile edits.
type ProfileHandler struct{}

func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Register attaches profile routes.
func (h *ProfileHandler) Register(r chi.Router) {
	r.Patch("/profile", h.handleUpdate)
}

func (h *ProfileHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	_, c, ok := currentController(w, r)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Empty() {
		respond.Error(w, http.StatusBadRequest, "no fields to update")
		return
	}
	err := c.UpdateProfile(r.Context(), req.ProfileUpdate)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, "Profile updated", dto.NewSessionResponse(c.Snapshot()))
	case errors.Is(err, session.ErrNotAuthenticated):
		respond.Error(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, storage.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "profile not found")
	case errors.Is(err, session.ErrClosed):
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable, reload the page")
	default:
		obs.LogError(r.Context(), "profile.update", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to update profile")
	}
}
