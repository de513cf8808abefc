package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3connect/portal/internal/access"
	"github.com/m3connect/portal/internal/identity"
	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/storage"
	"github.com/m3connect/portal/internal/storage/memory"
)

type fakeProvider struct {
	hub identity.Hub

	mu             sync.Mutex
	session        *identity.Session
	getSessionErr  error
	getSessionHook func()
	panicOn        string
	signUpErr      error
	signInErr      error
	signOutErr     error
	calls          map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: make(map[string]int)}
}

func sessionFor(userID string) *identity.Session {
	return &identity.Session{AccessToken: "token-" + userID, User: identity.User{ID: userID, Email: userID + "@example.com"}}
}

func (f *fakeProvider) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if f.panicOn == name {
		panic("simulated network failure")
	}
}

func (f *fakeProvider) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeProvider) SignUp(_ context.Context, email, _ string) (identity.User, error) {
	f.record("SignUp")
	if f.signUpErr != nil {
		return identity.User{}, f.signUpErr
	}
	return identity.User{ID: "id-" + email, Email: email}, nil
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, email, _ string) (identity.Session, error) {
	f.record("SignIn")
	if f.signInErr != nil {
		return identity.Session{}, f.signInErr
	}
	sess := sessionFor(email)
	f.mu.Lock()
	f.session = sess
	f.mu.Unlock()
	f.hub.Emit(identity.Event{Kind: identity.EventSignedIn, Session: sess})
	return *sess, nil
}

func (f *fakeProvider) GetSession(context.Context) (*identity.Session, error) {
	f.record("GetSession")
	f.mu.Lock()
	sess, err, hook := f.session, f.getSessionErr, f.getSessionHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return sess, err
}

func (f *fakeProvider) OnAuthStateChange(h identity.Handler) identity.Subscription {
	return f.hub.Subscribe(h)
}

func (f *fakeProvider) VerifyOTP(context.Context, string, string) (identity.Session, error) {
	return identity.Session{}, errors.New("not used")
}

func (f *fakeProvider) UpdateUser(context.Context, identity.UserAttributes) error { return nil }

func (f *fakeProvider) SignOut(context.Context) error {
	f.record("SignOut")
	f.mu.Lock()
	f.session = nil
	err := f.signOutErr
	f.mu.Unlock()
	f.hub.Emit(identity.Event{Kind: identity.EventSignedOut})
	return err
}

func (f *fakeProvider) ResetPasswordForEmail(context.Context, string, string) error { return nil }

// gatedStore delays GetByUserID for gated users until the gate is closed.
type gatedStore struct {
	*memory.Store

	mu        sync.Mutex
	gates     map[string]chan struct{}
	getErr    error
	createErr error
}

func newGatedStore() *gatedStore {
	return &gatedStore{Store: memory.New(), gates: make(map[string]chan struct{})}
}

func (s *gatedStore) gate(userID string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[userID] = ch
	return ch
}

func (s *gatedStore) GetByUserID(ctx context.Context, userID string) (models.Profile, error) {
	s.mu.Lock()
	gate, err := s.gates[userID], s.getErr
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.Profile{}, ctx.Err()
		}
	}
	if err != nil {
		return models.Profile{}, err
	}
	return s.Store.GetByUserID(ctx, userID)
}

func (s *gatedStore) Create(ctx context.Context, p models.Profile) (models.Profile, error) {
	if s.createErr != nil {
		return models.Profile{}, s.createErr
	}
	return s.Store.Create(ctx, p)
}

func seedProfile(t *testing.T, store storage.ProfileStore, userID string, role models.Role, status models.Status) {
	t.Helper()
	_, err := store.Create(context.Background(), models.Profile{UserID: userID, FirstName: userID, Email: userID + "@example.com", Role: role, Status: status})
	require.NoError(t, err)
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.WaitIdle(ctx))
}

func TestInitializeWithoutSession(t *testing.T) {
	p := newFakeProvider()
	c := New(p, newGatedStore())
	defer c.Close()

	assert.False(t, c.Snapshot().AuthReady)
	c.Initialize(context.Background())
	waitIdle(t, c)

	snap := c.Snapshot()
	assert.True(t, snap.AuthReady)
	assert.False(t, snap.SignedIn())
	assert.Nil(t, snap.Profile)
}

func TestInitializeLoadsProfile(t *testing.T) {
	p := newFakeProvider()
	p.session = sessionFor("alice")
	store := newGatedStore()
	seedProfile(t, store, "alice", models.RoleMarina, models.StatusVerified)

	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())
	waitIdle(t, c)

	snap := c.Snapshot()
	require.True(t, snap.SignedIn())
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "alice", snap.Profile.UserID)
	assert.False(t, snap.ProfileLoading)
	assert.Equal(t, 1, p.count("GetSession"))

	c.Initialize(context.Background())
	assert.Equal(t, 1, p.count("GetSession"), "initialize runs once")
}

func TestInitializeMissingProfileIsNotAnError(t *testing.T) {
	p := newFakeProvider()
	p.session = sessionFor("bob")
	c := New(p, newGatedStore())
	defer c.Close()

	c.Initialize(context.Background())
	waitIdle(t, c)

	snap := c.Snapshot()
	assert.True(t, snap.SignedIn())
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.ProfileLoading)
}

func TestInitializeToleratesProviderFailure(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		p := newFakeProvider()
		p.getSessionErr = errors.New("dial tcp: connection refused")
		c := New(p, newGatedStore())
		defer c.Close()

		c.Initialize(context.Background())
		snap := c.Snapshot()
		assert.True(t, snap.AuthReady)
		assert.False(t, snap.SignedIn())
	})
	t.Run("panic", func(t *testing.T) {
		p := newFakeProvider()
		p.panicOn = "GetSession"
		c := New(p, newGatedStore())
		defer c.Close()

		assert.NotPanics(t, func() { c.Initialize(context.Background()) })
		assert.True(t, c.Snapshot().AuthReady)
	})
}

func TestProfileStoreFailureTreatedAsAbsent(t *testing.T) {
	p := newFakeProvider()
	p.session = sessionFor("carol")
	store := newGatedStore()
	seedProfile(t, store, "carol", models.RoleUser, models.StatusPending)
	store.getErr = errors.New("relation \"profiles\" does not exist")

	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())
	waitIdle(t, c)

	snap := c.Snapshot()
	assert.True(t, snap.SignedIn())
	assert.Nil(t, snap.Profile)
}

func TestRecoveryPageSkipsBootstrapAndEvents(t *testing.T) {
	p := newFakeProvider()
	p.session = sessionFor("dave")
	var onRecovery atomic.Bool
	onRecovery.Store(true)

	c := New(p, newGatedStore(), WithLocation(LocationFunc(onRecovery.Load)))
	defer c.Close()
	c.Initialize(context.Background())

	assert.Zero(t, p.count("GetSession"))
	assert.True(t, c.Snapshot().AuthReady)

	p.hub.Emit(identity.Event{Kind: identity.EventPasswordRecovery, Session: sessionFor("dave")})
	assert.False(t, c.Snapshot().SignedIn(), "recovery session must not become a normal session")

	onRecovery.Store(false)
	p.hub.Emit(identity.Event{Kind: identity.EventSignedIn, Session: sessionFor("dave")})
	waitIdle(t, c)
	assert.True(t, c.Snapshot().SignedIn())
}

func TestEventDuringInitialResolutionWins(t *testing.T) {
	p := newFakeProvider()
	p.session = sessionFor("stale")
	store := newGatedStore()
	seedProfile(t, store, "stale", models.RoleUser, models.StatusPending)
	seedProfile(t, store, "fresh", models.RoleMarina, models.StatusVerified)
	// The event fires after the subscription exists but before GetSession returns.
	p.getSessionHook = func() {
		p.hub.Emit(identity.Event{Kind: identity.EventSignedIn, Session: sessionFor("fresh")})
	}

	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())
	waitIdle(t, c)

	snap := c.Snapshot()
	require.True(t, snap.SignedIn())
	assert.Equal(t, "fresh", snap.User.ID)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "fresh", snap.Profile.UserID)
}

func TestLateProfileFetchForSupersededCredentialIsDiscarded(t *testing.T) {
	p := newFakeProvider()
	store := newGatedStore()
	seedProfile(t, store, "a@example.com", models.RoleUser, models.StatusPending)
	seedProfile(t, store, "b@example.com", models.RoleAdmin, models.StatusVerified)

	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())

	releaseA := store.gate("a@example.com")
	require.NoError(t, c.SignIn(context.Background(), "a@example.com", "pw"))
	assert.True(t, c.Snapshot().ProfileLoading)

	require.NoError(t, c.SignIn(context.Background(), "b@example.com", "pw"))
	close(releaseA)
	waitIdle(t, c)

	snap := c.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, "b@example.com", snap.User.ID)
	assert.Equal(t, "b@example.com", snap.Profile.UserID)
	assert.Equal(t, models.RoleAdmin, snap.Profile.Role)
}

func TestSignUpDerivesRoleAndStatus(t *testing.T) {
	cases := []struct {
		name     string
		orgType  string
		wantRole models.Role
	}{
		{"marina operator", models.OrgMarinaPort, models.RoleMarina},
		{"supplier", models.OrgSupplier, models.RoleUser},
		{"institution", models.OrgInstitution, models.RoleUser},
		{"empty", "", models.RoleUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newGatedStore()
			c := New(newFakeProvider(), store)
			defer c.Close()

			err := c.SignUp(context.Background(), "new@example.com", "secret-1", models.ProfileFields{
				FirstName:        "Nina",
				OrganizationType: tc.orgType,
				Role:             models.RoleAdmin,
				Status:           models.StatusVerified,
			})
			require.NoError(t, err)

			profile, err := store.Store.GetByUserID(context.Background(), "id-new@example.com")
			require.NoError(t, err)
			assert.Equal(t, tc.wantRole, profile.Role)
			assert.Equal(t, models.StatusPending, profile.Status)
			assert.False(t, profile.IsPublic)
			if tc.orgType == "" {
				assert.Equal(t, models.OrgOther, profile.OrganizationType)
			}
		})
	}
}

func TestSignUpSupplierCannotSubmitProjects(t *testing.T) {
	store := newGatedStore()
	c := New(newFakeProvider(), store)
	defer c.Close()

	require.NoError(t, c.SignUp(context.Background(), "sup@example.com", "secret-1", models.ProfileFields{OrganizationType: models.OrgSupplier}))
	profile, err := store.Store.GetByUserID(context.Background(), "id-sup@example.com")
	require.NoError(t, err)
	assert.False(t, access.CanSubmitProject(&profile))
}

func TestSignUpCredentialFailureIsVerbatim(t *testing.T) {
	p := newFakeProvider()
	p.signUpErr = &identity.Error{Status: 422, Code: "user_already_exists", Message: "User already registered"}
	store := newGatedStore()
	c := New(p, store)
	defer c.Close()

	err := c.SignUp(context.Background(), "dup@example.com", "secret-1", models.ProfileFields{})
	require.Error(t, err)
	assert.Equal(t, "User already registered", err.Error())
	assert.NotErrorIs(t, err, ErrPartialSignUp)

	all, err := store.List(context.Background(), storage.ProfileFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSignUpPartialFailure(t *testing.T) {
	store := newGatedStore()
	store.createErr = errors.New("insert violates row-level security policy")
	c := New(newFakeProvider(), store)
	defer c.Close()

	err := c.SignUp(context.Background(), "half@example.com", "secret-1", models.ProfileFields{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPartialSignUp)

	var partial *PartialSignUpError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "id-half@example.com", partial.UserID)
	assert.ErrorIs(t, err, store.createErr)
}

func TestSignUpRefreshesProfileWhenProviderSignsIn(t *testing.T) {
	p := newFakeProvider()
	store := newGatedStore()
	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())

	// Simulate a provider that signs the new user in before the profile exists.
	p.hub.Emit(identity.Event{Kind: identity.EventSignedIn, Session: sessionFor("id-auto@example.com")})
	waitIdle(t, c)
	require.Nil(t, c.Snapshot().Profile)

	require.NoError(t, c.SignUp(context.Background(), "auto@example.com", "secret-1", models.ProfileFields{OrganizationType: models.OrgMarinaPort}))
	snap := c.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, models.RoleMarina, snap.Profile.Role)
}

func TestSignInErrorIsVerbatimAndLeavesStateAlone(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = &identity.Error{Status: 400, Code: "invalid_credentials", Message: "Invalid login credentials"}
	c := New(p, newGatedStore())
	defer c.Close()
	c.Initialize(context.Background())

	err := c.SignIn(context.Background(), "x@example.com", "bad")
	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", err.Error())
	assert.False(t, c.Snapshot().SignedIn())
}

func TestSignOutAlwaysClearsAndNavigatesHome(t *testing.T) {
	for _, mode := range []string{"ok", "error", "panic"} {
		t.Run(mode, func(t *testing.T) {
			p := newFakeProvider()
			switch mode {
			case "error":
				p.signOutErr = errors.New("network unreachable")
			case "panic":
				p.panicOn = "SignOut"
			}
			store := newGatedStore()
			seedProfile(t, store, "e@example.com", models.RoleUser, models.StatusVerified)

			var navigated []string
			c := New(p, store,
				WithHomePath("/home"),
				WithNavigator(NavigatorFunc(func(path string) { navigated = append(navigated, path) })))
			defer c.Close()
			c.Initialize(context.Background())
			require.NoError(t, c.SignIn(context.Background(), "e@example.com", "pw"))
			waitIdle(t, c)
			require.NotNil(t, c.Snapshot().Profile)

			assert.NotPanics(t, func() { c.SignOut(context.Background()) })

			snap := c.Snapshot()
			assert.Nil(t, snap.User)
			assert.Nil(t, snap.Session)
			assert.Nil(t, snap.Profile)
			assert.Equal(t, []string{"/home"}, navigated)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	p := newFakeProvider()
	store := newGatedStore()
	seedProfile(t, store, "f@example.com", models.RoleUser, models.StatusPending)
	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())

	title := "Harbour master"
	err := c.UpdateProfile(context.Background(), models.ProfileUpdate{JobTitle: &title})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, c.SignIn(context.Background(), "f@example.com", "pw"))
	waitIdle(t, c)
	before := c.Snapshot().Profile
	require.NotNil(t, before)

	require.NoError(t, c.UpdateProfile(context.Background(), models.ProfileUpdate{JobTitle: &title}))
	after := c.Snapshot().Profile
	require.NotNil(t, after)
	require.NotNil(t, after.JobTitle)
	assert.Equal(t, title, *after.JobTitle)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}

func TestUpdateProfileMissingRow(t *testing.T) {
	p := newFakeProvider()
	c := New(p, newGatedStore())
	defer c.Close()
	c.Initialize(context.Background())
	require.NoError(t, c.SignIn(context.Background(), "ghost@example.com", "pw"))
	waitIdle(t, c)

	name := "Ghost"
	err := c.UpdateProfile(context.Background(), models.ProfileUpdate{FirstName: &name})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefreshProfileAfterModeration(t *testing.T) {
	p := newFakeProvider()
	store := newGatedStore()
	seedProfile(t, store, "op@example.com", models.RoleMarina, models.StatusPending)
	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())

	c.RefreshProfile(context.Background())
	assert.Nil(t, c.Snapshot().Profile, "no credential, nothing to refresh")

	require.NoError(t, c.SignIn(context.Background(), "op@example.com", "pw"))
	waitIdle(t, c)
	assert.False(t, access.CanSubmitProject(c.Snapshot().Profile))

	verified := models.StatusVerified
	_, err := store.Moderate(context.Background(), "op@example.com", models.Moderation{Status: &verified})
	require.NoError(t, err)
	assert.False(t, access.CanSubmitProject(c.Snapshot().Profile), "local state is unchanged until refreshed")

	c.RefreshProfile(context.Background())
	assert.True(t, access.CanSubmitProject(c.Snapshot().Profile))
	assert.True(t, access.CanAccess(c.Snapshot().Profile, models.AccessMarina))
}

func TestProfileFetchTimeout(t *testing.T) {
	p := newFakeProvider()
	p.session = sessionFor("slow")
	store := newGatedStore()
	seedProfile(t, store, "slow", models.RoleUser, models.StatusPending)
	release := store.gate("slow")
	defer close(release)

	c := New(p, store, WithFetchTimeout(20*time.Millisecond))
	defer c.Close()
	c.Initialize(context.Background())
	waitIdle(t, c)

	snap := c.Snapshot()
	assert.True(t, snap.SignedIn())
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.ProfileLoading)
}

func TestCloseUnsubscribesAndFreezesState(t *testing.T) {
	p := newFakeProvider()
	store := newGatedStore()
	seedProfile(t, store, "g@example.com", models.RoleUser, models.StatusPending)
	c := New(p, store)
	c.Initialize(context.Background())
	require.Equal(t, 1, p.hub.Len())

	release := store.gate("g@example.com")
	require.NoError(t, c.SignIn(context.Background(), "g@example.com", "pw"))
	c.Close()
	close(release)
	waitIdle(t, c)

	assert.Zero(t, p.hub.Len())
	snap := c.Snapshot()
	assert.Nil(t, snap.Profile, "fetch finishing after close must not apply")

	p.hub.Emit(identity.Event{Kind: identity.EventSignedOut})
	assert.Equal(t, snap, c.Snapshot())
	assert.ErrorIs(t, c.SignIn(context.Background(), "g@example.com", "pw"), ErrClosed)
	c.Close()
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	p := newFakeProvider()
	store := newGatedStore()
	seedProfile(t, store, "h@example.com", models.RoleUser, models.StatusPending)
	c := New(p, store)
	defer c.Close()

	var mu sync.Mutex
	var versions []uint64
	var sawProfile bool
	cancel := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, s.Version)
		if s.Profile != nil {
			sawProfile = true
		}
	})

	c.Initialize(context.Background())
	require.NoError(t, c.SignIn(context.Background(), "h@example.com", "pw"))
	waitIdle(t, c)
	cancel()
	c.RefreshProfile(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawProfile)
	assert.GreaterOrEqual(t, len(versions), 3)
	assert.Less(t, versions[len(versions)-1], c.Snapshot().Version, "cancelled watchers get nothing")
}

func TestSnapshotIsACopy(t *testing.T) {
	p := newFakeProvider()
	p.session = sessionFor("i")
	store := newGatedStore()
	seedProfile(t, store, "i", models.RoleUser, models.StatusPending)
	c := New(p, store)
	defer c.Close()
	c.Initialize(context.Background())
	waitIdle(t, c)

	snap := c.Snapshot()
	require.NotNil(t, snap.Profile)
	snap.Profile.Role = models.RoleAdmin
	snap.User.ID = "mallory"

	again := c.Snapshot()
	assert.Equal(t, models.RoleUser, again.Profile.Role)
	assert.Equal(t, "i", again.User.ID)
}
