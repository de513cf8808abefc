package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/m3connect/portal/internal/http/respond"
	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/models/dto"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/session"
	"github.com/m3connect/portal/internal/visitor"
)

const (
	maxBodyBytes = 1 << 20
	// settleTimeout bounds how long a response waits for a profile fetch.
	settleTimeout = 3 * time.Second
)

type validatable interface {
	Validate() error
}

// decode reads a JSON body into dst and runs its validation rules. It writes
// the error response itself and reports whether the handler may continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	if v, ok := dst.(validatable); ok {
		if err := v.Validate(); err != nil {
			respond.JSON(w, http.StatusBadRequest, "validation failed", err)
			return false
		}
	}
	return true
}

func currentVisitor(w http.ResponseWriter, r *http.Request) (*visitor.Visitor, bool) {
	v, ok := visitor.FromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusInternalServerError, "visitor not resolved")
	}
	return v, ok
}

func currentController(w http.ResponseWriter, r *http.Request) (*visitor.Visitor, *session.Controller, bool) {
	v, ok := currentVisitor(w, r)
	if !ok {
		return nil, nil, false
	}
	c := v.Controller(r.Context())
	if c == nil {
		respond.Error(w, http.StatusServiceUnavailable, "session unavailable, reload the page")
		return nil, nil, false
	}
	return v, c, true
}

// settled waits briefly for in-flight profile fetches so the response
// reflects them. A slow store just yields profile_loading=true.
func settled(ctx context.Context, c *session.Controller) dto.SessionResponse {
	wctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	_ = c.WaitIdle(wctx)
	return dto.NewSessionResponse(c.Snapshot())
}

// providerError maps an identity-provider failure to a status while keeping
// its message verbatim.
func providerError(w http.ResponseWriter, r *http.Request, err error) {
	if pe, ok := identity.AsError(err); ok && pe.Status >= 400 && pe.Status < 500 {
		respond.Error(w, pe.Status, pe.Error())
		return
	}
	obs.LogError(r.Context(), "identity.request", err, nil)
	respond.Error(w, http.StatusBadGateway, "identity provider unavailable")
}
