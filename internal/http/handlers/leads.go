package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/access"
	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/models/dto"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/storage"
)

// accountPath is where members are sent to finish verification.
const accountPath = "/account"

// LeadHandler captures partnership inquiries and marina project briefs.
type LeadHandler struct {
	leads storage.LeadStore
}

func NewLeadHandler(leads storage.LeadStore) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// Register attaches lead routes.
func (h *LeadHandler) Register(r chi.Router) {
	r.Post("/leads/partners", h.handleCreatePartnerLead)
	r.Post("/projects", h.handleCreateProject)
	r.Get("/projects", h.handleListProjects)
}

func (h *LeadHandler) handleCreatePartnerLead(w http.ResponseWriter, r *http.Request) {
	var req dto.PartnerLeadRequest
	if !decode(w, r, &req) {
		return
	}
	lead, err := h.leads.CreatePartnerLead(r.Context(), req.Lead())
	if err != nil {
		obs.LogError(r.Context(), "leads.create_partner", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to save inquiry")
		return
	}
	obs.LogEvent(r.Context(), "leads.partner_created", map[string]any{"lead_id": lead.ID})
	respond.JSON(w, http.StatusCreated, "Thank you, we will be in touch.", lead)
}

func (h *LeadHandler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	_, c, ok := currentController(w, r)
	if !ok {
		return
	}
	snap := c.Snapshot()
	if !access.CanSubmitProject(snap.Profile) {
		respond.JSON(w, http.StatusForbidden, "Only verified marina operators can submit projects", map[string]string{"redirect": accountPath})
		return
	}
	var req dto.ProjectRequest
	if !decode(w, r, &req) {
		return
	}
	project, err := h.leads.CreateProject(r.Context(), req.Project(snap.User.ID))
	if err != nil {
		obs.LogError(r.Context(), "leads.create_project", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to save project")
		return
	}
	obs.LogEvent(r.Context(), "leads.project_created", map[string]any{"project_id": project.ID})
	respond.JSON(w, http.StatusCreated, "Project submitted", project)
}

func (h *LeadHandler) handleListProjects(w http.ResponseWriter, r *http.Request) {
	_, c, ok := currentController(w, r)
	if !ok {
		return
	}
	snap := c.Snapshot()
	if !snap.SignedIn() {
		respond.Error(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	list, err := h.leads.ListProjects(r.Context(), snap.User.ID)
	if err != nil {
		obs.LogError(r.Context(), "leads.list_projects", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load projects")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", list)
}
