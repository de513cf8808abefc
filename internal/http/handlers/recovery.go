package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/models/dto"
	"github.com/m3connect/portal/internal/recovery"
)

// RecoveryHandler drives the recovery page of the current load.
type RecoveryHandler struct{}

func NewRecoveryHandler() *RecoveryHandler {
	return &RecoveryHandler{}
}

// Register attaches recovery routes.
func (h *RecoveryHandler) Register(r chi.Router) {
	r.Get("/recovery", h.handleView)
	r.Post("/recovery/password", h.handleSubmit)
}

func (h *RecoveryHandler) page(w http.ResponseWriter, r *http.Request) (*recovery.Page, bool) {
	v, ok := currentVisitor(w, r)
	if !ok {
		return nil, false
	}
	p := v.Page()
	if p == nil {
		respond.Error(w, http.StatusConflict, "not on the recovery page")
		return nil, false
	}
	return p, true
}

func (h *RecoveryHandler) handleView(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	respond.JSON(w, http.StatusOK, "ok", p.View())
}

func (h *RecoveryHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	var req dto.NewPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	view, err := p.Submit(r.Context(), req.Password, req.Confirm)
	switch {
	case err == nil:
		respond.JSON(w, http.StatusOK, "Password updated", view)
	case errors.Is(err, recovery.ErrPasswordMismatch), errors.Is(err, recovery.ErrPasswordTooShort):
		respond.JSON(w, http.StatusUnprocessableEntity, view.Error, view)
	case errors.Is(err, recovery.ErrNotVerified):
		respond.JSON(w, http.StatusConflict, "reset link is not verified", view)
	default:
		respond.JSON(w, http.StatusBadRequest, view.Error, view)
	}
}
