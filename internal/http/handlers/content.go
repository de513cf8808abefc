package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/m3connect/portal/internal/access"
	"github.com/m3connect/portal/internal/export"
	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/storage"
	"github.com/m3connect/portal/internal/visitor"
)

// ContentHandler serves the resource library, event calendar and partner
// directory. Gated items are listed with their protected fields removed.
type ContentHandler struct {
	content storage.ContentStore
	now     func() time.Time
}

func NewContentHandler(content storage.ContentStore) *ContentHandler {
	return &ContentHandler{content: content, now: time.Now}
}

// Register attaches content routes.
func (h *ContentHandler) Register(r chi.Router) {
	r.Get("/resources", h.handleListResources)
	r.Get("/resources/{id}", h.handleGetResource)
	r.Get("/events", h.handleListEvents)
	r.Get("/events/{id}", h.handleGetEvent)
	r.Get("/events/{id}/ics", h.handleEventICS)
	r.Get("/partners", h.handleListPartners)
}

type resourceItem struct {
	models.Resource
	Locked     bool   `json:"locked"`
	LockReason string `json:"lock_reason,omitempty"`
}

type eventItem struct {
	models.Event
	Upcoming   bool   `json:"upcoming"`
	Locked     bool   `json:"locked"`
	LockReason string `json:"lock_reason,omitempty"`
}

func gateResource(profile *models.Profile, res models.Resource) resourceItem {
	item := resourceItem{Resource: res}
	if reason := access.Lock(profile, res.AccessLevel); reason != "" {
		item.Locked = true
		item.LockReason = reason
		item.Content = nil
		item.FileURL = nil
	}
	return item
}

func gateEvent(profile *models.Profile, ev models.Event, now time.Time) eventItem {
	item := eventItem{Event: ev, Upcoming: ev.Upcoming(now)}
	if reason := access.Lock(profile, ev.AccessLevel); reason != "" {
		item.Locked = true
		item.LockReason = reason
		item.ReplayURL = nil
	}
	return item
}

// viewer is the profile permissions are derived from for this request.
func viewer(r *http.Request) *models.Profile {
	v, ok := visitor.FromContext(r.Context())
	if !ok {
		return nil
	}
	c := v.Controller(r.Context())
	if c == nil {
		return nil
	}
	return c.Snapshot().Profile
}

func accessFilter(r *http.Request) *models.AccessLevel {
	raw := r.URL.Query().Get("access")
	if raw == "" {
		return nil
	}
	level, _ := models.ParseAccessLevel(raw)
	return &level
}

func (h *ContentHandler) handleListResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.content.ListResources(r.Context(), storage.ResourceFilter{
		Type:     q.Get("type"),
		Topic:    q.Get("topic"),
		Language: q.Get("language"),
		Access:   accessFilter(r),
	})
	if err != nil {
		obs.LogError(r.Context(), "content.list_resources", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load resources")
		return
	}
	profile := viewer(r)
	items := make([]resourceItem, 0, len(list))
	for _, res := range list {
		items = append(items, gateResource(profile, res))
	}
	respond.JSON(w, http.StatusOK, "ok", items)
}

func (h *ContentHandler) handleGetResource(w http.ResponseWriter, r *http.Request) {
	res, err := h.content.GetResource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOr500(w, r, "resource", err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", gateResource(viewer(r), res))
}

func (h *ContentHandler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.EventFilter{Language: q.Get("language"), Access: accessFilter(r)}
	switch q.Get("when") {
	case "upcoming":
		upcoming := true
		filter.Upcoming = &upcoming
	case "past":
		upcoming := false
		filter.Upcoming = &upcoming
	}
	list, err := h.content.ListEvents(r.Context(), filter)
	if err != nil {
		obs.LogError(r.Context(), "content.list_events", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	profile, now := viewer(r), h.now()
	items := make([]eventItem, 0, len(list))
	for _, ev := range list {
		items = append(items, gateEvent(profile, ev, now))
	}
	respond.JSON(w, http.StatusOK, "ok", items)
}

func (h *ContentHandler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := h.content.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOr500(w, r, "event", err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", gateEvent(viewer(r), ev, h.now()))
}

func (h *ContentHandler) handleEventICS(w http.ResponseWriter, r *http.Request) {
	ev, err := h.content.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.notFoundOr500(w, r, "event", err)
		return
	}
	if reason := access.Lock(viewer(r), ev.AccessLevel); reason != "" {
		respond.JSON(w, http.StatusForbidden, "event is restricted", map[string]string{"lock_reason": reason})
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.ICSFilename(ev)+`"`)
	if err := export.WriteICS(w, ev, h.now()); err != nil {
		obs.LogError(r.Context(), "content.ics", err, nil)
	}
}

func (h *ContentHandler) handleListPartners(w http.ResponseWriter, r *http.Request) {
	list, err := h.content.ListPartners(r.Context())
	if err != nil {
		obs.LogError(r.Context(), "content.list_partners", err, nil)
		respond.Error(w, http.StatusInternalServerError, "failed to load partners")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", list)
}

func (h *ContentHandler) notFoundOr500(w http.ResponseWriter, r *http.Request, kind string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		respond.Error(w, http.StatusNotFound, kind+" not found")
		return
	}
	obs.LogError(r.Context(), "content.get_"+kind, err, nil)
	respond.Error(w, http.StatusInternalServerError, "failed to load "+kind)
}
