package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/m3connect/portal/internal/access"
	"github.com/m3connect/portal/internal/export"
	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/models/dto"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/storage"
)

// AdminHandler is the back office: user moderation, exports and lead review.
type AdminHandler struct {
	profiles storage.ProfileStore
	leads    storage.LeadStore
}

func NewAdminHandler(profiles storage.ProfileStore, leads storage.LeadStore) *AdminHandler {
	return &AdminHandler{profiles: profiles, leads: leads}
}

// Register attaches admin routes behind the admin check.
func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/users", h.handleListUsers)
		r.Get("/users/export", h.handleExportUsers)
		r.Patch("/users/{userID}", h.handleModerate)
		r.Get("/leads", h.handleListLeads)
		r.Get("/projects", h.handleListProjects)
	})
}

// requireAdmin re-derives the admin predicate from the current profile on
// every request.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, c, ok := currentController(w, r)
		if !ok {
			return
		}
		snap := c.Snapshot()
		if !snap.SignedIn() {
			respond.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !access.IsAdmin(snap.Profile) {
			respond.Error(w, http.StatusForbidden, "administrators only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func profileFilter(r *http.Request) (storage.ProfileFilter, bool) {
	q := r.URL.Query()
	f := storage.ProfileFilter{Query: q.Get("q")}
	if raw := q.Get("role"); raw != "" && raw != "all" {
		role, ok := models.ParseRole(raw)
		if !ok {
			return f, false
		}
		f.Role = &role
	}
	if raw := q.Get("status"); raw != "" && raw != "all" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			return f, false
		}
		f.Status = &status
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	return f, true
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	f, ok := profileFilter(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "unknown role or status filter")
		return
	}
	list, err := h.profiles.List(r.Context(), f)
	if err != nil {
		obs.LogError(r.Context(), "admin.list_users", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load users")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", list)
}

func (h *AdminHandler) handleExportUsers(w http.ResponseWriter, r *http.Request) {
	f, ok := profileFilter(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "unknown role or status filter")
		return
	}
	list, err := h.profiles.List(r.Context(), f)
	if err != nil {
		obs.LogError(r.Context(), "admin.export_users", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load users")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
	if err := export.WriteUsersCSV(w, list); err != nil {
		obs.LogError(r.Context(), "admin.export_users", err, nil)
	}
}

func (h *AdminHandler) handleModerate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := uuid.Parse(userID); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req dto.ModerateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Role == nil && req.Status == nil {
		respond.Error(w, http.StatusBadRequest, "role or status is required")
		return
	}
	updated, err := h.profiles.Moderate(r.Context(), userID, req.Moderation())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, "profile not found")
			return
		}
		obs.LogError(r.Context(), "admin.moderate", err, map[string]any{"user_id": userID})
		respond.Error(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	obs.LogEvent(r.Context(), "admin.moderate", map[string]any{
		"user_id": userID,
		"role":    string(updated.Role),
		"status":  string(updated.Status),
	})

	// An admin editing themselves sees the change immediately.
	if _, c, ok := currentController(w, r); ok {
		if snap := c.Snapshot(); snap.User != nil && snap.User.ID == userID {
			c.RefreshProfile(r.Context())
		}
	}
	respond.JSON(w, http.StatusOK, "User updated", updated)
}

func (h *AdminHandler) handleListLeads(w http.ResponseWriter, r *http.Request) {
	list, err := h.leads.ListPartnerLeads(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		obs.LogError(r.Context(), "admin.list_leads", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load leads")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", list)
}

func (h *AdminHandler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := h.leads.ListProjects(r.Context(), "")
	if err != nil {
		obs.LogError(r.Context(), "admin.list_projects", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load projects")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", list)
}
