package local

import (
	"context"
	"sync"

	"github.com/m3connect/portal/internal/identity"
)

// Client is one visitor's view of the local backend.
type Client struct {
	backend *Backend
	hub     identity.Hub

	mu      sync.Mutex
	session *identity.Session
}

var _ identity.Provider = (*Client)(nil)

func (c *Client) SignUp(_ context.Context, email, password string) (identity.User, error) {
	return c.backend.register(email, password)
}

func (c *Client) SignInWithPassword(_ context.Context, email, password string) (identity.Session, error) {
	sess, err := c.backend.authenticate(email, password)
	if err != nil {
		return identity.Session{}, err
	}
	c.set(&sess)
	c.hub.Emit(identity.Event{Kind: identity.EventSignedIn, Session: &sess})
	return sess, nil
}

func (c *Client) GetSession(_ context.Context) (*identity.Session, error) {
	cur := c.current()
	if cur == nil || !cur.Expired(c.backend.now()) {
		return cur, nil
	}
	next, err := c.backend.rotate(cur.RefreshToken)
	if err != nil {
		c.set(nil)
		c.hub.Emit(identity.Event{Kind: identity.EventSignedOut})
		return nil, nil
	}
	c.set(&next)
	c.hub.Emit(identity.Event{Kind: identity.EventTokenRefreshed, Session: &next})
	return &next, nil
}

func (c *Client) OnAuthStateChange(handler identity.Handler) identity.Subscription {
	return c.hub.Subscribe(handler)
}

func (c *Client) VerifyOTP(_ context.Context, tokenHash, otpType string) (identity.Session, error) {
	if otpType != identity.OTPRecovery {
		return identity.Session{}, &identity.Error{Status: 400, Code: "validation_failed", Message: "Verify requires a verification type"}
	}
	sess, err := c.backend.consumeRecovery(tokenHash)
	if err != nil {
		return identity.Session{}, err
	}
	c.set(&sess)
	c.hub.Emit(identity.Event{Kind: identity.EventPasswordRecovery, Session: &sess})
	return sess, nil
}

func (c *Client) UpdateUser(ctx context.Context, attrs identity.UserAttributes) error {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return identity.ErrNotAuthenticated
	}
	claims, err := c.backend.tokens.Parse(sess.AccessToken, c.backend.now())
	if err != nil {
		return identity.ErrNotAuthenticated
	}
	if attrs.Password != "" {
		if err := c.backend.setPassword(claims.Subject, attrs.Password); err != nil {
			return err
		}
	}
	c.hub.Emit(identity.Event{Kind: identity.EventUserUpdated, Session: sess})
	return nil
}

func (c *Client) SignOut(_ context.Context) error {
	if cur := c.current(); cur != nil {
		c.backend.revoke(cur.RefreshToken)
	}
	c.set(nil)
	c.hub.Emit(identity.Event{Kind: identity.EventSignedOut})
	return nil
}

func (c *Client) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	return c.backend.sendRecovery(email, redirectTo)
}

func (c *Client) current() *identity.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Client) set(s *identity.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}
