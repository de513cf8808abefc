package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/obs"
)

// State is a step of the recovery page.
type State string

const (
	StateVerifying   State = "verifying"
	StateVerified    State = "verified"
	StateSubmitting  State = "submitting"
	StateSucceeded   State = "succeeded"
	StateInvalidLink State = "invalid_link"
	StateExpired     State = "expired"
)

// Terminal reports whether the page can no longer change state on its own.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateInvalidLink, StateExpired:
		return true
	default:
		return false
	}
}

// User-facing messages.
const (
	MessageInvalidLink = "Invalid or missing reset link. Please request a new password reset."
	MessageExpiredLink = "This reset link has expired or is invalid. Please request a new one."
	MessageMismatch    = "Passwords do not match"
	MessageUnexpected  = "An error occurred. Please try again."
)

var (
	ErrPasswordMismatch = errors.New("recovery: passwords do not match")
	ErrPasswordTooShort = errors.New("recovery: password too short")
	// ErrNotVerified is returned by Submit outside the verified state.
	ErrNotVerified = errors.New("recovery: link is not verified")
)

const (
	DefaultMinPasswordLength = 6
	DefaultRedirectDelay     = 2 * time.Second
)

// Config tunes a Page.
type Config struct {
	MinPasswordLength int
	RedirectDelay     time.Duration
	HomePath          string
}

func (c Config) withDefaults() Config {
	if c.MinPasswordLength <= 0 {
		c.MinPasswordLength = DefaultMinPasswordLength
	}
	if c.RedirectDelay <= 0 {
		c.RedirectDelay = DefaultRedirectDelay
	}
	if c.HomePath == "" {
		c.HomePath = "/"
	}
	return c
}

// View is what the recovery page renders.
type View struct {
	State           State  `json:"state"`
	Error           string `json:"error,omitempty"`
	RedirectTo      string `json:"redirect_to,omitempty"`
	RedirectAfterMS int64  `json:"redirect_after_ms,omitempty"`
}

// Page runs one load of the recovery page.
type Page struct {
	provider  identity.Provider
	nav       Navigator
	guard     Guard
	cfg       Config
	afterFunc func(time.Duration, func()) (stop func() bool)

	verifyOnce sync.Once

	mu     sync.Mutex
	state  State
	errMsg string
	stop   func() bool
	closed bool
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithGuard shares token claims beyond this page load.
func WithGuard(g Guard) PageOption {
	return func(p *Page) { p.guard = g }
}

// WithAfterFunc replaces time.AfterFunc for the success redirect.
func WithAfterFunc(fn func(time.Duration, func()) func() bool) PageOption {
	return func(p *Page) {
		if fn != nil {
			p.afterFunc = fn
		}
	}
}

func NewPage(provider identity.Provider, nav Navigator, cfg Config, opts ...PageOption) *Page {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	p := &Page{
		provider: provider,
		nav:      nav,
		cfg:      cfg.withDefaults(),
		state:    StateVerifying,
		afterFunc: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify exchanges the token in rawURL for a recovery session. Only the
// first call does any work. marked tells the page that a live recovery
// event already produced the session, so a URL without a token is fine.
func (p *Page) Verify(ctx context.Context, rawURL string, marked bool) View {
	p.verifyOnce.Do(func() { p.verify(ctx, rawURL, marked) })
	return p.View()
}

func (p *Page) verify(ctx context.Context, rawURL string, marked bool) {
	tok := Extract(rawURL)
	if !tok.Valid() {
		if marked && tok == (Token{}) {
			p.finishVerify(ctx, StateVerified, "", "verified_live")
			return
		}
		p.finishVerify(ctx, StateInvalidLink, MessageInvalidLink, "invalid_link")
		return
	}

	if p.guard != nil {
		ok, err := p.guard.Acquire(ctx, tok.Hash)
		switch {
		case err != nil:
			// The provider still rejects a reused token.
			obs.LogError(ctx, "recovery.guard", err, nil)
		case !ok:
			p.finishVerify(ctx, StateExpired, MessageExpiredLink, "replayed")
			return
		}
	}

	if _, err := p.provider.VerifyOTP(ctx, tok.Hash, identity.OTPRecovery); err != nil {
		obs.LogError(ctx, "recovery.verify", err, nil)
		p.finishVerify(ctx, StateExpired, MessageExpiredLink, "expired")
		return
	}
	p.finishVerify(ctx, StateVerified, "", "verified")
}

func (p *Page) finishVerify(ctx context.Context, state State, msg, outcome string) {
	p.mu.Lock()
	p.state = state
	p.errMsg = msg
	p.mu.Unlock()
	obs.ObserveRecovery(outcome)
	obs.LogEvent(ctx, "recovery.verify", map[string]any{"outcome": outcome})
}

// Submit sets the new password. Validation failures and provider errors
// leave the page in StateVerified so the user can retry.
func (p *Page) Submit(ctx context.Context, password, confirm string) (View, error) {
	p.mu.Lock()
	if p.closed || p.state != StateVerified {
		p.mu.Unlock()
		return p.View(), ErrNotVerified
	}
	if password != confirm {
		p.errMsg = MessageMismatch
		p.mu.Unlock()
		return p.View(), ErrPasswordMismatch
	}
	if utf8.RuneCountInString(password) < p.cfg.MinPasswordLength {
		p.errMsg = fmt.Sprintf("Password must be at least %d characters", p.cfg.MinPasswordLength)
		p.mu.Unlock()
		return p.View(), ErrPasswordTooShort
	}
	p.state = StateSubmitting
	p.errMsg = ""
	p.mu.Unlock()

	if err := p.provider.UpdateUser(ctx, identity.UserAttributes{Password: password}); err != nil {
		msg := MessageUnexpected
		if pe, ok := identity.AsError(err); ok && pe.Message != "" {
			msg = pe.Message
		}
		p.mu.Lock()
		p.state = StateVerified
		p.errMsg = msg
		p.mu.Unlock()
		obs.ObserveRecovery("update_failed")
		obs.LogError(ctx, "recovery.update_password", err, nil)
		return p.View(), err
	}

	p.mu.Lock()
	p.state = StateSucceeded
	p.mu.Unlock()

	// The recovery session must not outlive the reset.
	if err := p.provider.SignOut(ctx); err != nil {
		obs.LogError(ctx, "recovery.sign_out", err, nil)
	}

	p.mu.Lock()
	if !p.closed {
		p.stop = p.afterFunc(p.cfg.RedirectDelay, p.redirectHome)
	}
	p.mu.Unlock()

	obs.ObserveRecovery("succeeded")
	obs.LogEvent(ctx, "recovery.update_password", nil)
	return p.View(), nil
}

func (p *Page) redirectHome() {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if !closed {
		p.nav.Navigate(p.cfg.HomePath)
	}
}

// View returns the current render state.
func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := View{State: p.state, Error: p.errMsg}
	if p.state == StateSucceeded {
		v.RedirectTo = p.cfg.HomePath
		v.RedirectAfterMS = p.cfg.RedirectDelay.Milliseconds()
	}
	return v
}

// Close cancels a pending redirect.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}
