// Package visitor binds one browser (identified by a cookie) to its identity
// client, recovery router and the session controller of its current page load.
package visitor

import (
	"context"
	"sync"
	"time"

	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/recovery"
	"github.com/m3connect/portal/internal/session"
	"github.com/m3connect/portal/internal/storage"
)

// Settings are the per-load knobs handed to controllers and recovery pages.
type Settings struct {
	RecoveryPath      string
	HomePath          string
	FetchTimeout      time.Duration
	MinPasswordLength int
	RecoveryRedirect  time.Duration
}

// Load is the outcome of a page-load bootstrap.
type Load struct {
	// Redirect is set when the load must move elsewhere before rendering.
	Redirect string
	// OnRecoveryPage tells the UI to render the recovery page.
	OnRecoveryPage bool
	Session        session.Snapshot
	Recovery       *recovery.View
}

// Visitor is one browser's server-side state.
type Visitor struct {
	ID       string
	Provider identity.Provider

	profiles storage.ProfileStore
	guard    recovery.Guard
	settings Settings
	router   *recovery.Router

	navMu   sync.Mutex
	pending string

	mu         sync.Mutex
	controller *session.Controller
	page       *recovery.Page
	closed     bool
}

func newVisitor(id string, provider identity.Provider, profiles storage.ProfileStore, guard recovery.Guard, settings Settings) *Visitor {
	v := &Visitor{
		ID:       id,
		Provider: provider,
		profiles: profiles,
		guard:    guard,
		settings: settings,
	}
	v.router = recovery.NewRouter(settings.RecoveryPath, recovery.NavigatorFunc(v.record))
	v.router.Watch(provider)
	return v
}

func (v *Visitor) record(target string) {
	v.navMu.Lock()
	defer v.navMu.Unlock()
	v.pending = target
}

// TakeNavigation returns the last navigation requested since the previous
// call, if any.
func (v *Visitor) TakeNavigation() string {
	v.navMu.Lock()
	defer v.navMu.Unlock()
	t := v.pending
	v.pending = ""
	return t
}

// Bootstrap handles a full page load at href. The previous load's controller
// and recovery page are torn down first. A recovery link redirects without
// initializing a controller for this load.
func (v *Visitor) Bootstrap(ctx context.Context, href string) Load {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return Load{}
	}
	v.teardownLocked()
	v.TakeNavigation()

	if target, ok := v.router.Intercept(href); ok {
		return Load{Redirect: target}
	}

	// The recovery page needs a marker read before the controller sees events.
	marked := v.router.Marked()
	c := session.New(v.Provider, v.profiles,
		session.WithLocation(v.router),
		session.WithNavigator(v.router),
		session.WithHomePath(v.settings.HomePath),
		session.WithFetchTimeout(v.settings.FetchTimeout),
	)
	v.controller = c

	load := Load{}
	if v.router.OnRecoveryPage() {
		v.page = recovery.NewPage(v.Provider, v.router, recovery.Config{
			MinPasswordLength: v.settings.MinPasswordLength,
			RedirectDelay:     v.settings.RecoveryRedirect,
			HomePath:          v.settings.HomePath,
		}, recovery.WithGuard(v.guard))
		load.OnRecoveryPage = true
	}

	c.Initialize(ctx)
	if v.page != nil {
		view := v.page.Verify(ctx, href, marked)
		load.Recovery = &view
	}
	load.Session = c.Snapshot()
	load.Redirect = v.TakeNavigation()
	return load
}

// Controller returns the controller of the current load, bootstrapping the
// home page when the visitor has none yet. It is nil once the visitor is closed.
func (v *Visitor) Controller(ctx context.Context) *session.Controller {
	v.mu.Lock()
	c := v.controller
	v.mu.Unlock()
	if c != nil {
		return c
	}
	v.Bootstrap(ctx, v.settings.HomePath)
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.controller
}

// Page returns the recovery page of the current load, or nil off that page.
func (v *Visitor) Page() *recovery.Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// OnRecoveryPage reports whether the visitor's current location is the
// recovery page.
func (v *Visitor) OnRecoveryPage() bool {
	return v.router.OnRecoveryPage()
}

// Close releases the visitor's subscriptions and timers.
func (v *Visitor) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.teardownLocked()
	v.router.Close()
}

func (v *Visitor) teardownLocked() {
	if v.controller != nil {
		v.controller.Close()
		v.controller = nil
	}
	if v.page != nil {
		v.page.Close()
		v.page = nil
	}
}
