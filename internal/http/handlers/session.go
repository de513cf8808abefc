package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/models/dto"
)

// SessionHandler serves page-load bootstrap and the current identity state.
type SessionHandler struct{}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{}
}

// Register attaches session routes.
func (h *SessionHandler) Register(r chi.Router) {
	r.Post("/session/bootstrap", h.handleBootstrap)
	r.Get("/session", h.handleGet)
	r.Post("/session/refresh", h.handleRefresh)
}

func (h *SessionHandler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	v, ok := currentVisitor(w, r)
	if !ok {
		return
	}
	var req dto.BootstrapRequest
	if !decode(w, r, &req) {
		return
	}
	load := v.Bootstrap(r.Context(), req.Href)
	resp := dto.BootstrapResponse{
		Redirect:       load.Redirect,
		OnRecoveryPage: load.OnRecoveryPage,
		Recovery:       load.Recovery,
	}
	if load.Session.AuthReady {
		s := dto.NewSessionResponse(load.Session)
		resp.Session = &s
	}
	respond.JSON(w, http.StatusOK, "ok", resp)
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	_, c, ok := currentController(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("wait") == "1" {
		respond.JSON(w, http.StatusOK, "ok", settled(r.Context(), c))
		return
	}
	respond.JSON(w, http.StatusOK, "ok", dto.NewSessionResponse(c.Snapshot()))
}

func (h *SessionHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	_, c, ok := currentController(w, r)
	if !ok {
		return
	}
	c.RefreshProfile(r.Context())
	respond.JSON(w, http.StatusOK, "profile refreshed", dto.NewSessionResponse(c.Snapshot()))
}
