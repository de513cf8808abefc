// Package local is an in-process identity provider for development and
// tests. It keeps accounts in memory, hashes passwords with bcrypt and signs
// access tokens with the shared TokenManager.
package local

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/m3connect/portal/internal/identity"
)

const (
	minPasswordLength = 6
	// bcrypt only reads the first 72 bytes.
	maxPasswordBytes = 72
	recoveryTTL       = time.Hour
)

type account struct {
	id           string
	email        string
	passwordHash string
	createdAt    time.Time
}

type recovery struct {
	userID    string
	expiresAt time.Time
}

// Backend is the shared account database behind every local Client.
type Backend struct {
	tokens *identity.TokenManager
	now    func() time.Time
	logf   func(format string, args ...any)

	mu         sync.Mutex
	byEmail    map[string]*account
	byID       map[string]*account
	refresh    map[string]string
	recoveries map[string]recovery
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(b *Backend) {
		if fn != nil {
			b.now = fn
		}
	}
}

// WithLogf overrides where recovery links are written.
func WithLogf(fn func(format string, args ...any)) Option {
	return func(b *Backend) {
		if fn != nil {
			b.logf = fn
		}
	}
}

// NewBackend creates an empty account database.
func NewBackend(tokens *identity.TokenManager, opts ...Option) *Backend {
	b := &Backend{
		tokens:     tokens,
		now:        time.Now,
		logf:       log.Printf,
		byEmail:    make(map[string]*account),
		byID:       make(map[string]*account),
		refresh:    make(map[string]string),
		recoveries: make(map[string]recovery),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Client returns a new per-visitor client bound to this backend.
func (b *Backend) Client() *Client {
	return &Client{backend: b}
}

func (b *Backend) register(email, password string) (identity.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return identity.User{}, &identity.Error{Status: http.StatusBadRequest, Code: "validation_failed", Message: "Unable to validate email address: invalid format"}
	}
	if err := checkPassword(password); err != nil {
		return identity.User{}, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return identity.User{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.byEmail[email]; exists {
		return identity.User{}, &identity.Error{Status: http.StatusUnprocessableEntity, Code: "user_already_exists", Message: "User already registered"}
	}
	acct := &account{id: uuid.NewString(), email: email, passwordHash: hash, createdAt: b.now()}
	b.byEmail[email] = acct
	b.byID[acct.id] = acct
	return identity.User{ID: acct.id, Email: acct.email}, nil
}

func (b *Backend) authenticate(email, password string) (identity.Session, error) {
	b.mu.Lock()
	acct, ok := b.byEmail[normalizeEmail(email)]
	b.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword([]byte(acct.passwordHash), []byte(password)) != nil {
		return identity.Session{}, &identity.Error{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}
	return b.issue(acct)
}

func (b *Backend) issue(acct *account) (identity.Session, error) {
	user := identity.User{ID: acct.id, Email: acct.email}
	now := b.now()
	access, exp, err := b.tokens.Generate(user, now)
	if err != nil {
		return identity.Session{}, err
	}
	refresh, err := randomToken()
	if err != nil {
		return identity.Session{}, err
	}
	b.mu.Lock()
	b.refresh[refresh] = acct.id
	b.mu.Unlock()
	return identity.Session{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(b.tokens.TTL() / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: refresh,
		User:         user,
	}, nil
}

func (b *Backend) rotate(refreshToken string) (identity.Session, error) {
	b.mu.Lock()
	userID, ok := b.refresh[refreshToken]
	delete(b.refresh, refreshToken)
	acct := b.byID[userID]
	b.mu.Unlock()
	if !ok || acct == nil {
		return identity.Session{}, &identity.Error{Status: http.StatusBadRequest, Code: "refresh_token_not_found", Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	return b.issue(acct)
}

func (b *Backend) revoke(refreshToken string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, refreshToken)
}

// IssueRecovery creates a single-use recovery token for email and returns
// its hash, the value carried by the recovery link. Unknown addresses get
// an empty token and no error so callers cannot enumerate accounts.
func (b *Backend) IssueRecovery(email string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.byEmail[normalizeEmail(email)]
	if !ok {
		return "", nil
	}
	tokenHash, err := randomToken()
	if err != nil {
		return "", err
	}
	b.recoveries[tokenHash] = recovery{userID: acct.id, expiresAt: b.now().Add(recoveryTTL)}
	return tokenHash, nil
}

func (b *Backend) sendRecovery(email, redirectTo string) error {
	tokenHash, err := b.IssueRecovery(email)
	if err != nil || tokenHash == "" {
		return err
	}
	link := redirectTo
	if link == "" {
		link = "/"
	}
	q := url.Values{"token_hash": {tokenHash}, "type": {identity.OTPRecovery}}
	b.logf("local identity: recovery link for %s: %s#%s", email, link, q.Encode())
	return nil
}

func (b *Backend) consumeRecovery(tokenHash string) (identity.Session, error) {
	b.mu.Lock()
	rec, ok := b.recoveries[tokenHash]
	delete(b.recoveries, tokenHash)
	acct := b.byID[rec.userID]
	b.mu.Unlock()
	if !ok || acct == nil || !b.now().Before(rec.expiresAt) {
		return identity.Session{}, &identity.Error{Status: http.StatusForbidden, Code: "otp_expired", Message: "Email link is invalid or has expired"}
	}
	return b.issue(acct)
}

func (b *Backend) setPassword(userID, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.byID[userID]
	if !ok {
		return &identity.Error{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}
	acct.passwordHash = hash
	return nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return &identity.Error{Status: http.StatusUnprocessableEntity, Code: "weak_password", Message: "Password should be at least 6 characters."}
	}
	if len(password) > maxPasswordBytes {
		return &identity.Error{Status: http.StatusUnprocessableEntity, Code: "validation_failed", Message: "Password cannot be longer than 72 characters"}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return ""
	}
	return email
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
