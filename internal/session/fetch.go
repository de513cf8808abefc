package session

import (
	"context"
	"errors"

	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/obs"
)

// fetchTicket fences a profile fetch: its result is applied only while seq
// is still the latest fetch and userID is still the signed-in user.
type fetchTicket struct {
	userID string
	seq    uint64
}

func (c *Controller) beginFetchLocked(userID string) *fetchTicket {
	c.fetchSeq++
	c.state.ProfileLoading = true
	c.inflight++
	return &fetchTicket{userID: userID, seq: c.fetchSeq}
}

// startFetch runs t in the background.
func (c *Controller) startFetch(t *fetchTicket) {
	if t == nil {
		return
	}
	go c.runFetch(c.ctx, t)
}

func (c *Controller) runFetch(ctx context.Context, t *fetchTicket) {
	defer c.fetchDone()

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()
	// Stop early if the controller is torn down mid-fetch.
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	var profile *models.Profile
	p, err := c.profiles.GetByUserID(ctx, t.userID)
	switch {
	case err == nil:
		profile = &p
	case isMissing(err):
		// Not an error: the row may not have been written yet.
	case errors.Is(err, context.DeadlineExceeded):
		obs.LogError(ctx, "session.profile_fetch.timeout", err, map[string]any{"user_id": t.userID})
	default:
		obs.LogError(ctx, "session.profile_fetch", err, map[string]any{"user_id": t.userID})
	}

	c.mu.Lock()
	if c.closed || t.seq != c.fetchSeq || c.state.User == nil || c.state.User.ID != t.userID {
		c.mu.Unlock()
		obs.ObserveProfileFetch("stale")
		return
	}
	c.state.Profile = profile
	c.state.ProfileLoading = false
	snap := c.publishLocked()
	c.mu.Unlock()

	obs.ObserveProfileFetch(fetchOutcome(profile, err))
	c.notify(snap)
}

func (c *Controller) fetchDone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight > 0 {
		return
	}
	for _, ch := range c.idleWaiters {
		close(ch)
	}
	c.idleWaiters = nil
}

func fetchOutcome(profile *models.Profile, err error) string {
	switch {
	case profile != nil:
		return "found"
	case err == nil || isMissing(err):
		return "missing"
	default:
		return "error"
	}
}
