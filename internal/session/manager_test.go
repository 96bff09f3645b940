package session_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudamudi/mmdesk/internal/metrics"
	"github.com/mudamudi/mmdesk/internal/session"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// fakeAPI is a scripted session.API that counts calls.
type fakeAPI struct {
	mu sync.Mutex

	loginResult *session.LoginResult
	loginErr    error
	lastDevice  session.Device

	verifyValid bool
	verifyErr   error

	refreshResult *session.RefreshResult
	refreshErr    error

	perms    *session.PermissionSet
	permsErr error

	loginCalls, verifyCalls, refreshCalls, permsCalls int
}

func (f *fakeAPI) Login(_ context.Context, _, _ string, device session.Device) (*session.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	f.lastDevice = device
	return f.loginResult, f.loginErr
}

func (f *fakeAPI) Verify(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	return f.verifyValid, f.verifyErr
}

func (f *fakeAPI) Refresh(_ context.Context, _ string) (*session.RefreshResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshResult, f.refreshErr
}

func (f *fakeAPI) Permissions(_ context.Context, _ string) (*session.PermissionSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permsCalls++
	return f.perms, f.permsErr
}

func successfulAPI() *fakeAPI {
	s := sampleSession()
	return &fakeAPI{
		loginResult: &session.LoginResult{
			AccessToken:  s.AccessToken,
			RefreshToken: s.RefreshToken,
			User:         s.User,
		},
		perms: &session.PermissionSet{
			Permissions:     s.Permissions,
			AccessibleAreas: s.AccessibleAreas,
		},
	}
}

type harness struct {
	api     *fakeAPI
	cache   *session.TokenCache
	manager *session.Manager
	dir     string
}

func newHarness(t *testing.T, api *fakeAPI, opts ...session.Option) *harness {
	t.Helper()
	dir := t.TempDir()
	cache := session.NewTokenCache(filepath.Join(dir, "auth_tokens.dat"), newStore(t, dir),
		session.WithCacheMetrics(&metrics.Metrics{}))
	opts = append([]session.Option{session.WithClock(func() time.Time { return baseTime })}, opts...)
	return &harness{
		api:     api,
		cache:   cache,
		manager: session.NewManager(api, cache, opts...),
		dir:     dir,
	}
}

// loggedIn returns a harness whose manager holds sampleSession.
func loggedIn(t *testing.T, api *fakeAPI, opts ...session.Option) *harness {
	t.Helper()
	h := newHarness(t, api, opts...)
	require.NoError(t, h.cache.Save(sampleSession(), baseTime))
	h.manager = session.NewManager(api, h.cache, append([]session.Option{
		session.WithClock(func() time.Time { return baseTime }),
	}, opts...)...)
	require.Equal(t, session.StateAuthenticated, h.manager.State())
	return h
}

func TestManager_StartsLoggedOut(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAPI{})

	assert.Equal(t, session.StateLoggedOut, h.manager.State())
	assert.Nil(t, h.manager.CurrentUser())
	assert.False(t, h.manager.EnsureAuthenticated(context.Background()))
	assert.Zero(t, h.api.verifyCalls)
}

func TestManager_RestoresCachedSession(t *testing.T) {
	t.Parallel()
	h := loggedIn(t, &fakeAPI{})

	assert.Equal(t, sampleSession(), h.manager.Snapshot())
	assert.Equal(t, "budi", h.manager.CurrentUser().Username)
}

func TestManager_LoginSuccess(t *testing.T) {
	t.Parallel()
	api := successfulAPI()
	h := newHarness(t, api, session.WithDevice(session.Device{Info: "test rig"}))

	require.NoError(t, h.manager.Login(context.Background(), " budi ", "secret"))

	assert.Equal(t, session.StateAuthenticated, h.manager.State())
	assert.Equal(t, 1, api.loginCalls)
	assert.Equal(t, 1, api.permsCalls)
	assert.Equal(t, session.Device{Type: "desktop", Info: "test rig"}, api.lastDevice)

	snap := h.manager.Snapshot()
	assert.Equal(t, sampleSession(), snap)

	cached, ok := h.cache.Load(baseTime)
	require.True(t, ok, "cache must be written on login")
	assert.Equal(t, "budi", cached.User.Username)
	assert.Equal(t, snap, cached)
}

func TestManager_LoginRejected(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{loginErr: deskerr.Rejected("Username atau password salah", "login failed")}
	h := loggedIn(t, api)
	before := h.manager.Snapshot()

	err := h.manager.Login(context.Background(), "budi", "wrong")
	require.Error(t, err)
	require.ErrorIs(t, err, deskerr.ErrServerRejected)
	assert.Equal(t, "Username atau password salah", deskerr.UserMessage(err))

	assert.Equal(t, before, h.manager.Snapshot(), "failed login must not touch the session")
	assert.Zero(t, api.permsCalls)
}

func TestManager_LoginTransportErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
	}{
		{"timeout", deskerr.ErrNetworkTimeout},
		{"connection", deskerr.ErrConnectionFailure},
		{"malformed", deskerr.ErrMalformedResponse},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, &fakeAPI{loginErr: tc.err})

			err := h.manager.Login(context.Background(), "budi", "secret")
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, session.StateLoggedOut, h.manager.State())
			assert.False(t, fileExists(h.cache.Path()))
		})
	}
}

func TestManager_LoginBlankCredentials(t *testing.T) {
	t.Parallel()
	api := successfulAPI()
	h := newHarness(t, api)

	require.ErrorIs(t, h.manager.Login(context.Background(), "  ", "secret"), deskerr.ErrInvalidInput)
	require.ErrorIs(t, h.manager.Login(context.Background(), "budi", ""), deskerr.ErrInvalidInput)
	assert.Zero(t, api.loginCalls)
}

func TestManager_LoginToleratesPermissionsFailure(t *testing.T) {
	t.Parallel()
	api := successfulAPI()
	api.perms = nil
	api.permsErr = deskerr.ErrConnectionFailure
	h := newHarness(t, api)

	require.NoError(t, h.manager.Login(context.Background(), "budi", "secret"))

	snap := h.manager.Snapshot()
	assert.Equal(t, session.StateAuthenticated, h.manager.State())
	assert.Empty(t, snap.Permissions)
	assert.Empty(t, snap.AccessibleAreas.Desa)
	assert.Empty(t, snap.AccessibleAreas.Kelompok)
	assert.False(t, h.manager.HasPermission("Dashboard", session.ActionView))

	_, ok := h.cache.Load(baseTime)
	assert.True(t, ok, "cache is written even without permissions")
}

func TestManager_EnsureAuthenticated_VerifyOK(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{verifyValid: true}
	h := loggedIn(t, api)

	assert.True(t, h.manager.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 1, api.verifyCalls)
	assert.Zero(t, api.refreshCalls, "refresh must not run when verify succeeds")
}

func TestManager_EnsureAuthenticated_RefreshesWhenVerifyFails(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		verifyValid: false,
		refreshResult: &session.RefreshResult{
			AccessToken: "access-token-0002",
			User:        &session.User{Username: "budi", Role: session.RoleAdminDesa},
		},
	}
	h := loggedIn(t, api)

	assert.True(t, h.manager.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 1, api.verifyCalls)
	assert.Equal(t, 1, api.refreshCalls)

	snap := h.manager.Snapshot()
	assert.Equal(t, "access-token-0002", snap.AccessToken)
	assert.Equal(t, "refresh-token-0001", snap.RefreshToken)
	assert.Equal(t, sampleSession().Permissions, snap.Permissions)
	assert.Equal(t, sampleSession().AccessibleAreas, snap.AccessibleAreas)

	cached, ok := h.cache.Load(baseTime)
	require.True(t, ok)
	assert.Equal(t, "access-token-0002", cached.AccessToken)
}

func TestManager_EnsureAuthenticated_ClearsWhenBothFail(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{verifyErr: deskerr.ErrNetworkTimeout, refreshErr: deskerr.ErrServerRejected}
	h := loggedIn(t, api)

	assert.False(t, h.manager.EnsureAuthenticated(context.Background()))
	assert.Equal(t, 1, api.verifyCalls)
	assert.Equal(t, 1, api.refreshCalls)
	assert.Equal(t, session.StateLoggedOut, h.manager.State())
	assert.False(t, fileExists(h.cache.Path()))
}

func TestManager_RefreshIncompleteResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result *session.RefreshResult
	}{
		{"nil result", nil},
		{"missing access token", &session.RefreshResult{User: &session.User{Username: "budi"}}},
		{"missing user", &session.RefreshResult{AccessToken: "access-token-0002"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := loggedIn(t, &fakeAPI{refreshResult: tc.result})
			before := h.manager.Snapshot()

			assert.False(t, h.manager.Refresh(context.Background()))
			assert.Equal(t, before, h.manager.Snapshot())
		})
	}
}

func TestManager_LoginIncompleteResponse(t *testing.T) {
	t.Parallel()

	user := &session.User{Username: "budi"}
	tests := []struct {
		name   string
		result *session.LoginResult
	}{
		{"nil result", nil},
		{"missing access token", &session.LoginResult{RefreshToken: "refresh-token-0009", User: user}},
		{"missing refresh token", &session.LoginResult{AccessToken: "access-token-0009", User: user}},
		{"missing user", &session.LoginResult{AccessToken: "access-token-0009", RefreshToken: "refresh-token-0009"}},
	}

	for _, tc := range tests {
		t.Run(tc.name+"/logged out", func(t *testing.T) {
			t.Parallel()
			api := &fakeAPI{loginResult: tc.result}
			h := newHarness(t, api)

			err := h.manager.Login(context.Background(), "budi", "secret")
			require.ErrorIs(t, err, deskerr.ErrMalformedResponse)
			assert.Equal(t, session.StateLoggedOut, h.manager.State())
			assert.False(t, fileExists(h.cache.Path()))
			assert.Zero(t, api.permsCalls)
		})

		t.Run(tc.name+"/logged in", func(t *testing.T) {
			t.Parallel()
			h := loggedIn(t, &fakeAPI{loginResult: tc.result})
			before := h.manager.Snapshot()

			err := h.manager.Login(context.Background(), "budi", "secret")
			require.ErrorIs(t, err, deskerr.ErrMalformedResponse)
			assert.Equal(t, before, h.manager.Snapshot())

			cached, ok := h.cache.Load(baseTime)
			require.True(t, ok)
			assert.Equal(t, before.AccessToken, cached.AccessToken)
		})
	}
}

func TestManager_LoginNilPermissions(t *testing.T) {
	t.Parallel()
	api := successfulAPI()
	api.perms = nil
	h := newHarness(t, api)

	require.NoError(t, h.manager.Login(context.Background(), "budi", "secret"))

	snap := h.manager.Snapshot()
	assert.Equal(t, session.StateAuthenticated, h.manager.State())
	assert.Empty(t, snap.Permissions)
	assert.Empty(t, snap.AccessibleAreas.Desa)
	assert.False(t, h.manager.HasPermission("Dashboard", session.ActionView))
}

func TestManager_VerifyAndRefreshWithoutTokens(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{verifyValid: true}
	h := newHarness(t, api)

	assert.False(t, h.manager.Verify(context.Background()))
	assert.False(t, h.manager.Refresh(context.Background()))
	assert.Zero(t, api.verifyCalls)
	assert.Zero(t, api.refreshCalls)
}

func TestManager_Logout(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{verifyValid: true}
	h := loggedIn(t, api)

	h.manager.Logout()
	h.manager.Logout()

	assert.Equal(t, session.StateLoggedOut, h.manager.State())
	assert.False(t, fileExists(h.cache.Path()))
	assert.False(t, h.manager.EnsureAuthenticated(context.Background()))
	assert.Zero(t, api.verifyCalls)
}

func TestManager_HasPermission(t *testing.T) {
	t.Parallel()
	h := loggedIn(t, &fakeAPI{})

	assert.True(t, h.manager.HasPermission("Dashboard", session.ActionView))
	assert.False(t, h.manager.HasPermission("Dashboard", session.ActionDelete))
	assert.True(t, h.manager.HasPermission("Input Data Muda-Mudi", session.ActionEdit))
	assert.False(t, h.manager.HasPermission("Laporan", session.ActionView))
}

func TestManager_AreaQueries(t *testing.T) {
	t.Parallel()
	h := loggedIn(t, &fakeAPI{}, session.WithCatalog(session.Catalog{Desa: []string{"X"}}))

	assert.True(t, h.manager.CanAccessDesa("Desa A"))
	assert.False(t, h.manager.CanAccessDesa("Desa Z"))
	assert.True(t, h.manager.CanAccessKelompok("Kelompok 1"))
	assert.False(t, h.manager.CanAccessKelompok("Kelompok 9"))
	assert.Equal(t, []string{"Desa A", "Desa B"}, h.manager.AccessibleDesa())
	assert.Equal(t, []string{"Kelompok 1"}, h.manager.AccessibleKelompok())
	assert.False(t, h.manager.IsSuperAdmin())

	// Returned lists are copies.
	h.manager.AccessibleDesa()[0] = "mutated"
	assert.Equal(t, "Desa A", h.manager.AccessibleDesa()[0])
}

func TestManager_SuperAdminScope(t *testing.T) {
	t.Parallel()
	api := successfulAPI()
	api.loginResult.User = &session.User{Username: "root", Role: session.RoleSuperAdmin}
	api.perms = &session.PermissionSet{}

	catalog := session.Catalog{Desa: []string{"Desa A", "Desa B", "Desa C"}, Kelompok: []string{"K1", "K2"}}
	h := newHarness(t, api, session.WithCatalog(catalog))
	require.NoError(t, h.manager.Login(context.Background(), "root", "secret"))

	assert.True(t, h.manager.IsSuperAdmin())
	for _, name := range []string{"Desa A", "nowhere", ""} {
		assert.True(t, h.manager.CanAccessDesa(name), name)
		assert.True(t, h.manager.CanAccessKelompok(name), name)
	}
	assert.Equal(t, catalog.Desa, h.manager.AccessibleDesa())
	assert.Equal(t, catalog.Kelompok, h.manager.AccessibleKelompok())
}

func TestManager_NoUserDeniesAreas(t *testing.T) {
	t.Parallel()
	h := newHarness(t, &fakeAPI{})

	assert.False(t, h.manager.CanAccessDesa("Desa A"))
	assert.False(t, h.manager.CanAccessKelompok("Kelompok 1"))
	assert.Empty(t, h.manager.AccessibleDesa())
	assert.False(t, h.manager.HasPermission("Dashboard", session.ActionView))
}

func TestManager_AccessTokenExpiry(t *testing.T) {
	t.Parallel()
	exp := baseTime.Add(15 * time.Minute)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("server-secret"))
	require.NoError(t, err)

	api := successfulAPI()
	api.loginResult.AccessToken = token
	h := newHarness(t, api)

	_, ok := h.manager.AccessTokenExpiry()
	assert.False(t, ok, "no token before login")

	require.NoError(t, h.manager.Login(context.Background(), "budi", "secret"))
	got, ok := h.manager.AccessTokenExpiry()
	require.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestManager_AccessTokenExpiryOpaqueToken(t *testing.T) {
	t.Parallel()
	h := loggedIn(t, &fakeAPI{})

	_, ok := h.manager.AccessTokenExpiry()
	assert.False(t, ok)
}

func TestManager_ConcurrentTransitions(t *testing.T) {
	t.Parallel()
	api := successfulAPI()
	api.verifyValid = true
	h := newHarness(t, api)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = h.manager.Login(context.Background(), "budi", "secret")
		}()
		go func() {
			defer wg.Done()
			h.manager.EnsureAuthenticated(context.Background())
		}()
		go func() {
			defer wg.Done()
			h.manager.Logout()
		}()
	}
	wg.Wait()

	snap := h.manager.Snapshot()
	assert.Equal(t, snap.AccessToken == "", snap.RefreshToken == "", "tokens must be set or cleared together")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
