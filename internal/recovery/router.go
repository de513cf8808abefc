package recovery

import (
	"context"
	"net/url"
	"sync"

	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/obs"
)

// DefaultPath is where recovery links are handled.
const DefaultPath = "/reset-password"

// Navigator performs a full navigation to target.
type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) { f(target) }

// Router tracks where one visitor is and forces recovery links onto the
// recovery page. It doubles as the visitor's Navigator so that every
// navigation updates the tracked location.
type Router struct {
	path string
	nav  Navigator

	mu      sync.Mutex
	current string
	marked  bool
	sub     identity.Subscription
	closed  bool
}

// NewRouter returns a router that handles recovery on path (DefaultPath when
// empty) and sends navigations to nav.
func NewRouter(path string, nav Navigator) *Router {
	if path == "" {
		path = DefaultPath
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &Router{path: path, nav: nav}
}

// Path is the recovery page path.
func (r *Router) Path() string { return r.path }

// Intercept records rawURL as the current location and, when it carries a
// recovery marker but is not the recovery page, navigates there with the
// token moved into the query. It returns the redirect target, if any.
// Calling it again on the recovery page does nothing.
func (r *Router) Intercept(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}

	r.mu.Lock()
	r.current = u.Path
	if u.Path == r.path {
		r.mu.Unlock()
		return "", false
	}
	r.mu.Unlock()

	tok, ok := Detect(rawURL)
	if !ok {
		return "", false
	}
	target := r.path
	if q := tok.Query(); q != "" {
		target += "?" + q
	}
	obs.LogEvent(context.Background(), "recovery.intercept", map[string]any{"from": u.Path})
	r.Navigate(target)
	return target, true
}

// Watch redirects to the recovery page whenever provider reports a
// PASSWORD_RECOVERY event outside of it. The exchanged session is already
// recovery-scoped, so the page is told via Marked instead of a token.
func (r *Router) Watch(provider identity.Provider) {
	sub := provider.OnAuthStateChange(func(ev identity.Event) {
		if ev.Kind != identity.EventPasswordRecovery {
			return
		}
		r.mu.Lock()
		if r.closed || r.current == r.path {
			r.mu.Unlock()
			return
		}
		r.marked = true
		r.mu.Unlock()
		obs.LogEvent(context.Background(), "recovery.live_event", nil)
		r.Navigate(r.path)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		sub.Unsubscribe()
		return
	}
	if r.sub != nil {
		r.sub.Unsubscribe()
	}
	r.sub = sub
}

// Navigate updates the tracked location and forwards to the underlying
// navigator.
func (r *Router) Navigate(target string) {
	if u, err := url.Parse(target); err == nil {
		r.mu.Lock()
		r.current = u.Path
		r.mu.Unlock()
	}
	r.nav.Navigate(target)
}

// OnRecoveryPage reports whether the visitor is currently on the recovery page.
func (r *Router) OnRecoveryPage() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current == r.path
}

// Marked reports whether a live recovery event sent the visitor here, and
// clears the mark.
func (r *Router) Marked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.marked
	r.marked = false
	return m
}

// Close stops watching the provider.
func (r *Router) Close() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	r.closed = true
	r.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}
