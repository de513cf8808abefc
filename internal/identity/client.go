package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// BaseURL is the project URL; auth endpoints live under /auth/v1.
	BaseURL string
	// APIKey is the public (anon) key sent with every request.
	APIKey string
	// StorageKey identifies the visitor whose session this client holds.
	StorageKey string
	Storage    Storage
	Tokens     *TokenManager
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client talks to a GoTrue-compatible auth API on behalf of one visitor.
type Client struct {
	base    string
	apiKey  string
	key     string
	storage Storage
	tokens  *TokenManager
	http    *http.Client
	now     func() time.Time

	// refreshMu serialises token refreshes so one refresh token is spent once.
	refreshMu sync.Mutex
	hub       Hub
}

var _ Provider = (*Client)(nil)

// NewClient builds a client from opts, filling defaults.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		base:    strings.TrimRight(opts.BaseURL, "/") + "/auth/v1",
		apiKey:  opts.APIKey,
		key:     opts.StorageKey,
		storage: opts.Storage,
		tokens:  opts.Tokens,
		http:    opts.HTTPClient,
		now:     opts.Now,
	}
	if c.key == "" {
		c.key = "default"
	}
	if c.storage == nil {
		c.storage = NewMemoryStorage()
	}
	if c.tokens == nil {
		c.tokens = NewTokenManager("", "", 0)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpResponse covers both shapes GoTrue answers with: a bare user when
// e-mail confirmation is pending, or a full session.
type signUpResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Session
}

func (c *Client) SignUp(ctx context.Context, email, password string) (User, error) {
	var out signUpResponse
	if err := c.do(ctx, http.MethodPost, "/signup", nil, credentials{email, password}, "", &out); err != nil {
		return User{}, err
	}
	if out.AccessToken != "" {
		sess := c.normalize(out.Session)
		if err := c.store(ctx, sess); err != nil {
			return User{}, err
		}
		c.hub.Emit(Event{Kind: EventSignedIn, Session: &sess})
		return sess.User, nil
	}
	if out.ID == "" {
		return User{}, ErrInvalidResponse
	}
	return User{ID: out.ID, Email: out.Email}, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	q := url.Values{"grant_type": {"password"}}
	sess, err := c.tokenRequest(ctx, q, credentials{email, password})
	if err != nil {
		return Session{}, err
	}
	c.hub.Emit(Event{Kind: EventSignedIn, Session: &sess})
	return sess, nil
}

// GetSession returns the stored session, refreshing it first when the access
// token has expired. A nil session means signed out.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	sess, err := c.load(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if !c.expired(*sess) {
		return sess, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	// Another caller may have refreshed while we waited.
	if cur, err := c.load(ctx); err != nil || cur == nil || !c.expired(*cur) {
		return cur, err
	}
	q := url.Values{"grant_type": {"refresh_token"}}
	refreshed, err := c.tokenRequest(ctx, q, map[string]string{"refresh_token": sess.RefreshToken})
	if err != nil {
		if _, rejected := AsError(err); rejected {
			_ = c.storage.Delete(ctx, c.key)
			c.hub.Emit(Event{Kind: EventSignedOut})
			return nil, nil
		}
		return nil, err
	}
	c.hub.Emit(Event{Kind: EventTokenRefreshed, Session: &refreshed})
	return &refreshed, nil
}

func (c *Client) OnAuthStateChange(handler Handler) Subscription {
	return c.hub.Subscribe(handler)
}

func (c *Client) VerifyOTP(ctx context.Context, tokenHash, otpType string) (Session, error) {
	body := map[string]string{"token_hash": tokenHash, "type": otpType}
	var out Session
	if err := c.do(ctx, http.MethodPost, "/verify", nil, body, "", &out); err != nil {
		return Session{}, err
	}
	if out.AccessToken == "" {
		return Session{}, ErrInvalidResponse
	}
	sess := c.normalize(out)
	if err := c.store(ctx, sess); err != nil {
		return Session{}, err
	}
	kind := EventSignedIn
	if otpType == OTPRecovery {
		kind = EventPasswordRecovery
	}
	c.hub.Emit(Event{Kind: kind, Session: &sess})
	return sess, nil
}

func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) error {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNotAuthenticated
	}
	var user User
	if err := c.do(ctx, http.MethodPut, "/user", nil, attrs, sess.AccessToken, &user); err != nil {
		return err
	}
	if user.ID != "" {
		sess.User = user
		if err := c.store(ctx, *sess); err != nil {
			return err
		}
	}
	c.hub.Emit(Event{Kind: EventUserUpdated, Session: sess})
	return nil
}

// SignOut revokes the session remotely and always forgets it locally.
func (c *Client) SignOut(ctx context.Context) error {
	sess, loadErr := c.load(ctx)
	var remoteErr error
	if sess != nil {
		remoteErr = c.do(ctx, http.MethodPost, "/logout", nil, nil, sess.AccessToken, nil)
	}
	delErr := c.storage.Delete(ctx, c.key)
	c.hub.Emit(Event{Kind: EventSignedOut})
	return errors.Join(loadErr, remoteErr, delErr)
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/recover", q, map[string]string{"email": email}, "", nil)
}

func (c *Client) tokenRequest(ctx context.Context, q url.Values, body any) (Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/token", q, body, "", &out); err != nil {
		return Session{}, err
	}
	if out.AccessToken == "" {
		return Session{}, ErrInvalidResponse
	}
	sess := c.normalize(out)
	if err := c.store(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// normalize fills ExpiresAt and the user from the token when the provider
// left them out.
func (c *Client) normalize(s Session) Session {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
	if s.User.ID == "" {
		if claims, err := c.tokens.Parse(s.AccessToken, c.now()); err == nil {
			s.User = User{ID: claims.Subject, Email: claims.Email}
		}
	}
	return s
}

func (c *Client) expired(s Session) bool {
	if s.Expired(c.now()) {
		return true
	}
	_, err := c.tokens.Parse(s.AccessToken, c.now().Add(expiryMargin))
	return errors.Is(err, jwt.ErrTokenExpired)
}

func (c *Client) load(ctx context.Context) (*Session, error) {
	data, err := c.storage.Load(ctx, c.key)
	if errors.Is(err, ErrStorageMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		_ = c.storage.Delete(ctx, c.key)
		return nil, nil
	}
	if _, err := c.tokens.Parse(sess.AccessToken, c.now()); err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		// Tampered or foreign token; treat as signed out.
		_ = c.storage.Delete(ctx, c.key)
		return nil, nil
	}
	return &sess, nil
}

func (c *Client) store(ctx context.Context, s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.storage.Save(ctx, c.key, data)
}

// errorBody covers the error shapes GoTrue has used across versions.
type errorBody struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body any, bearer string, out any) error {
	endpoint := c.base + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	e := &Error{Status: resp.StatusCode, Code: body.ErrorCode}
	if e.Code == "" {
		if s, ok := body.Code.(string); ok {
			e.Code = s
		} else if body.Error != "" {
			e.Code = body.Error
		}
	}
	for _, m := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	return e
}
