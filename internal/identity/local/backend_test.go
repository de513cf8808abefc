package local

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3connect/portal/internal/identity"
)

func newBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	return NewBackend(identity.NewTokenManager("local-secret", "local", time.Hour), opts...)
}

func TestSignUpAndSignIn(t *testing.T) {
	b := newBackend(t)
	c := b.Client()
	ctx := context.Background()

	user, err := c.SignUp(ctx, "Harbour@Example.com", "secret-1")
	require.NoError(t, err)
	assert.Equal(t, "harbour@example.com", user.Email)

	_, err = c.SignUp(ctx, "harbour@example.com", "secret-1")
	pe, ok := identity.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "User already registered", pe.Message)

	_, err = c.SignInWithPassword(ctx, "harbour@example.com", "nope")
	pe, ok = identity.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_credentials", pe.Code)

	var events []identity.EventKind
	sub := c.OnAuthStateChange(func(ev identity.Event) { events = append(events, ev.Kind) })
	defer sub.Unsubscribe()

	sess, err := c.SignInWithPassword(ctx, "harbour@example.com", "secret-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, sess.User.ID)

	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.AccessToken, got.AccessToken)

	require.NoError(t, c.SignOut(ctx))
	got, err = c.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []identity.EventKind{identity.EventSignedIn, identity.EventSignedOut}, events)
}

func TestSessionsAreIsolatedPerClient(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	_, err := b.Client().SignUp(ctx, "a@example.com", "secret-1")
	require.NoError(t, err)

	first, second := b.Client(), b.Client()
	_, err = first.SignInWithPassword(ctx, "a@example.com", "secret-1")
	require.NoError(t, err)

	got, err := second.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpiredSessionIsRotated(t *testing.T) {
	now := time.Now()
	b := newBackend(t, WithClock(func() time.Time { return now }))
	c := b.Client()
	ctx := context.Background()
	_, err := c.SignUp(ctx, "a@example.com", "secret-1")
	require.NoError(t, err)
	first, err := c.SignInWithPassword(ctx, "a@example.com", "secret-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	got, err := c.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.NotEqual(t, first.RefreshToken, got.RefreshToken)
}

func TestRecoveryTokenIsSingleUse(t *testing.T) {
	var logged []string
	b := newBackend(t, WithLogf(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}))
	ctx := context.Background()
	_, err := b.Client().SignUp(ctx, "a@example.com", "secret-1")
	require.NoError(t, err)

	require.NoError(t, b.Client().ResetPasswordForEmail(ctx, "a@example.com", "http://portal.test/reset-password"))
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "http://portal.test/reset-password#")
	assert.Contains(t, logged[0], "type=recovery")

	require.NoError(t, b.Client().ResetPasswordForEmail(ctx, "ghost@example.com", ""))
	assert.Len(t, logged, 1)

	token, err := b.IssueRecovery("a@example.com")
	require.NoError(t, err)

	c := b.Client()
	var events []identity.EventKind
	sub := c.OnAuthStateChange(func(ev identity.Event) { events = append(events, ev.Kind) })
	defer sub.Unsubscribe()

	_, err = c.VerifyOTP(ctx, token, identity.OTPRecovery)
	require.NoError(t, err)
	assert.Equal(t, []identity.EventKind{identity.EventPasswordRecovery}, events)

	_, err = b.Client().VerifyOTP(ctx, token, identity.OTPRecovery)
	pe, ok := identity.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "otp_expired", pe.Code)

	require.NoError(t, c.UpdateUser(ctx, identity.UserAttributes{Password: "brand-new"}))
	_, err = b.Client().SignInWithPassword(ctx, "a@example.com", "brand-new")
	assert.NoError(t, err)
}

func TestUpdateUserRejectsWeakPassword(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	c := b.Client()
	_, err := c.SignUp(ctx, "a@example.com", "secret-1")
	require.NoError(t, err)
	_, err = c.SignInWithPassword(ctx, "a@example.com", "secret-1")
	require.NoError(t, err)

	err = c.UpdateUser(ctx, identity.UserAttributes{Password: "abc"})
	pe, ok := identity.AsError(err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(pe.Message, "Password should be at least 6"))
}

func TestSignUpRejectsPasswordOverBcryptLimit(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	// 72 runes, 144 bytes.
	_, err := b.Client().SignUp(ctx, "a@example.com", strings.Repeat("é", 72))
	pe, ok := identity.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 422, pe.Status)
	assert.Equal(t, "validation_failed", pe.Code)

	_, err = b.Client().SignUp(ctx, "a@example.com", strings.Repeat("a", 72))
	assert.NoError(t, err)
}

func TestUpdateUserWithoutSession(t *testing.T) {
	b := newBackend(t)
	err := b.Client().UpdateUser(context.Background(), identity.UserAttributes{Password: "secret-2"})
	assert.ErrorIs(t, err, identity.ErrNotAuthenticated)
}
