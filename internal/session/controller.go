// Package session owns one visitor's authentication state: who is signed in,
// their profile, and whether the first resolution has finished. Only the
// Controller mutates that state; everyone else reads a Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/obs"
	"github.com/m3connect/portal/internal/storage"
)

const defaultFetchTimeout = 10 * time.Second

// Controller is the per-visitor source of truth for authentication state.
// It is safe for concurrent use.
type Controller struct {
	provider     identity.Provider
	profiles     storage.ProfileStore
	location     Location
	nav          Navigator
	homePath     string
	fetchTimeout time.Duration

	// ctx scopes background profile fetches; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	initOnce sync.Once

	mu       sync.Mutex
	state    Snapshot
	epoch    uint64 // bumped by every credential transition
	fetchSeq uint64 // bumped by every profile fetch or invalidation
	closed   bool
	sub      identity.Subscription

	inflight    int
	idleWaiters []chan struct{}

	watchers    map[uint64]func(Snapshot)
	nextWatcher uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithLocation sets how the controller learns whether the visitor is on the
// recovery page.
func WithLocation(l Location) Option {
	return func(c *Controller) {
		if l != nil {
			c.location = l
		}
	}
}

// WithNavigator sets where full-page navigations are sent.
func WithNavigator(n Navigator) Option {
	return func(c *Controller) {
		if n != nil {
			c.nav = n
		}
	}
}

// WithHomePath overrides the sign-out destination.
func WithHomePath(path string) Option {
	return func(c *Controller) {
		if path != "" {
			c.homePath = path
		}
	}
}

// WithFetchTimeout bounds every profile fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// New creates a controller. Call Initialize once the visitor's location is known.
func New(provider identity.Provider, profiles storage.ProfileStore, opts ...Option) *Controller {
	c := &Controller{
		provider:     provider,
		profiles:     profiles,
		location:     LocationFunc(func() bool { return false }),
		nav:          NavigatorFunc(func(string) {}),
		homePath:     "/",
		fetchTimeout: defaultFetchTimeout,
		watchers:     make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Initialize subscribes to auth-state events and resolves the current
// session. It returns once AuthReady is set; the profile may still be
// loading (see WaitIdle). Only the first call has any effect.
func (c *Controller) Initialize(ctx context.Context) {
	c.initOnce.Do(func() { c.initialize(ctx) })
}

func (c *Controller) initialize(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	// Subscribe before asking for the session so no event can slip between
	// the two.
	c.sub = c.provider.OnAuthStateChange(c.handleEvent)
	if c.location.OnRecoveryPage() {
		c.state.AuthReady = true
		snap := c.publishLocked()
		c.mu.Unlock()
		c.notify(snap)
		return
	}
	epoch := c.epoch
	c.mu.Unlock()

	sess, err := getSessionSafely(ctx, c.provider)
	if err != nil {
		obs.LogError(ctx, "session.initialize", err, nil)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var ticket *fetchTicket
	// An event that arrived while GetSession was in flight is newer.
	if c.epoch == epoch {
		ticket = c.applySessionLocked(sess)
	}
	c.state.AuthReady = true
	snap := c.publishLocked()
	c.mu.Unlock()

	c.notify(snap)
	c.startFetch(ticket)
}

func (c *Controller) handleEvent(ev identity.Event) {
	if c.location.OnRecoveryPage() {
		return
	}
	obs.ObserveAuthEvent(string(ev.Kind))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.epoch++
	ticket := c.applySessionLocked(ev.Session)
	c.state.AuthReady = true
	snap := c.publishLocked()
	c.mu.Unlock()

	c.notify(snap)
	c.startFetch(ticket)
}

// applySessionLocked installs sess as the current credential and returns the
// profile fetch to run for it, if any.
func (c *Controller) applySessionLocked(sess *identity.Session) *fetchTicket {
	if sess == nil || sess.User.ID == "" {
		c.clearLocked()
		return nil
	}
	s := *sess
	user := s.User
	if c.state.User == nil || c.state.User.ID != user.ID {
		// A different person; never show the previous profile.
		c.state.Profile = nil
	}
	c.state.User = &user
	c.state.Session = &s
	return c.beginFetchLocked(user.ID)
}

func (c *Controller) clearLocked() {
	c.state.User = nil
	c.state.Session = nil
	c.state.Profile = nil
	c.state.ProfileLoading = false
	// Invalidate any fetch still in flight.
	c.fetchSeq++
}

// SignUp creates the credential and then the profile row. A credential
// failure is returned as the provider reported it. When the credential exists
// but the profile could not be stored, the error is a *PartialSignUpError.
func (c *Controller) SignUp(ctx context.Context, email, password string, fields models.ProfileFields) error {
	if c.isClosed() {
		return ErrClosed
	}
	user, err := c.provider.SignUp(ctx, email, password)
	if err != nil {
		return err
	}

	profile := newProfile(user.ID, email, fields)
	if _, err := c.profiles.Create(ctx, profile); err != nil {
		obs.LogError(ctx, "session.sign_up.profile", err, map[string]any{"user_id": user.ID})
		return &PartialSignUpError{UserID: user.ID, Err: err}
	}
	obs.LogEvent(ctx, "session.sign_up", map[string]any{"user_id": user.ID, "role": string(profile.Role)})

	// Providers that sign the user in on sign-up fire SIGNED_IN before the
	// profile row exists; pick it up now.
	if c.currentUserID() == user.ID {
		c.RefreshProfile(ctx)
	}
	return nil
}

// newProfile builds the initial row. Role and status always come from the
// sign-up rule, never from fields.
func newProfile(userID, email string, fields models.ProfileFields) models.Profile {
	orgType := strings.TrimSpace(fields.OrganizationType)
	role := models.RoleForOrganization(orgType)
	if orgType == "" {
		orgType = models.OrgOther
	}
	return models.Profile{
		UserID:             userID,
		Email:              email,
		FirstName:          fields.FirstName,
		LastName:           fields.LastName,
		JobTitle:           optional(fields.JobTitle),
		OrganizationType:   orgType,
		OrganizationName:   fields.OrganizationName,
		Country:            fields.Country,
		Website:            optional(fields.Website),
		Capacity:           optional(fields.Capacity),
		Role:               role,
		Status:             models.StatusPending,
		IsPublic:           false,
		SolutionCategories: []string{},
	}
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// SignIn delegates to the provider. State is populated by the SIGNED_IN
// event, not here.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	if c.isClosed() {
		return ErrClosed
	}
	if _, err := c.provider.SignInWithPassword(ctx, email, password); err != nil {
		return err
	}
	obs.LogEvent(ctx, "session.sign_in", map[string]any{"email_domain": emailDomain(email)})
	return nil
}

// SignOut asks the provider to end the session and then, whatever happened
// remotely, clears local state and navigates home.
func (c *Controller) SignOut(ctx context.Context) {
	if err := signOutSafely(ctx, c.provider); err != nil {
		obs.LogError(ctx, "session.sign_out.remote", err, nil)
	}

	c.mu.Lock()
	var snap Snapshot
	changed := !c.closed
	if changed {
		c.epoch++
		c.clearLocked()
		snap = c.publishLocked()
	}
	c.mu.Unlock()

	if changed {
		c.notify(snap)
	}
	obs.LogEvent(ctx, "session.sign_out", nil)
	c.nav.Navigate(c.homePath)
}

// UpdateProfile applies a self-service update to the signed-in user's
// profile and then re-reads it from the store.
func (c *Controller) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	if c.isClosed() {
		return ErrClosed
	}
	userID := c.currentUserID()
	if userID == "" {
		return ErrNotAuthenticated
	}
	if _, err := c.profiles.UpdateByUserID(ctx, userID, update); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	c.RefreshProfile(ctx)
	return nil
}

// RefreshProfile re-reads the profile of the signed-in user and waits for
// the result. Without a credential it does nothing.
func (c *Controller) RefreshProfile(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.state.User == nil {
		c.mu.Unlock()
		return
	}
	ticket := c.beginFetchLocked(c.state.User.ID)
	snap := c.publishLocked()
	c.mu.Unlock()

	c.notify(snap)
	c.runFetch(ctx, ticket)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots may arrive out of order across goroutines; compare Version.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextWatcher++
	id := c.nextWatcher
	c.watchers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
}

// WaitIdle blocks until no profile fetch is in flight or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.idleWaiters = append(c.idleWaiters, ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unsubscribes from the provider and cancels background fetches. No
// state change is published afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	c.watchers = map[uint64]func(Snapshot){}
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	c.cancel()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) currentUserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.User == nil {
		return ""
	}
	return c.state.User.ID
}

// publishLocked bumps the version and returns the snapshot to hand to watchers.
func (c *Controller) publishLocked() Snapshot {
	c.state.Version++
	return c.state.clone()
}

func (c *Controller) notify(snap Snapshot) {
	c.mu.Lock()
	fns := make([]func(Snapshot), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// getSessionSafely turns a panicking provider into an error so that
// initialization always completes.
func getSessionSafely(ctx context.Context, p identity.Provider) (sess *identity.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			sess, err = nil, fmt.Errorf("identity provider panicked: %v", r)
		}
	}()
	return p.GetSession(ctx)
}

func signOutSafely(ctx context.Context, p identity.Provider) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("identity provider panicked: %v", r)
		}
	}()
	return p.SignOut(ctx)
}

func emailDomain(email string) string {
	if at := strings.LastIndexByte(email, '@'); at >= 0 {
		return strings.ToLower(email[at+1:])
	}
	return ""
}

// isMissing reports whether err means "no profile row" rather than a failure.
func isMissing(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
