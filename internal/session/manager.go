package session

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mudamudi/mmdesk/internal/config"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// DefaultDevice is sent with every login unless overridden.
//
//nolint:gochecknoglobals // Immutable default
var DefaultDevice = Device{Type: "desktop", Info: "mmdesk CLI"}

// Manager owns the single session of a client process. All transitions are
// serialized; queries read a consistent snapshot and never touch the network.
type Manager struct {
	mu      sync.Mutex
	api     API
	cache   *TokenCache
	catalog Catalog
	device  Device
	logger  *config.Logger
	now     func() time.Time
	state   Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithCatalog sets the reference lists returned for unrestricted users.
func WithCatalog(c Catalog) Option {
	return func(m *Manager) {
		m.catalog = Catalog{
			Desa:     slices.Clone(c.Desa),
			Kelompok: slices.Clone(c.Kelompok),
		}
	}
}

// WithDevice sets the device descriptor sent at login.
func WithDevice(d Device) Option {
	return func(m *Manager) {
		if d.Type != "" {
			m.device.Type = d.Type
		}
		if d.Info != "" {
			m.device.Info = d.Info
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *config.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager and restores any valid cached session.
func NewManager(api API, cache *TokenCache, opts ...Option) *Manager {
	m := &Manager{
		api:    api,
		cache:  cache,
		device: DefaultDevice,
		logger: config.NullLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if cached, ok := m.cache.Load(m.now()); ok {
		m.state = cached
		m.logger.Debug("restored session for %s", m.usernameLocked())
	}

	return m
}

// Login authenticates with the server. On success the session, its
// permissions and the token cache are replaced. On failure the previous
// session is left untouched and a classified error is returned whose
// UserMessage is fit for display.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return deskerr.WithSuggestion(deskerr.ErrInvalidInput, "username and password are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.api.Login(ctx, username, password, m.device)
	if err != nil {
		m.logger.Error("login failed for %s: %v", username, err)
		return err
	}
	if res == nil || res.AccessToken == "" || res.RefreshToken == "" || res.User == nil {
		m.logger.Error("login response for %s is incomplete", username)
		return deskerr.WithDetails(deskerr.ErrMalformedResponse, map[string]string{"operation": "login"})
	}

	next := Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         res.User,
		Permissions:  Permissions{},
	}

	perms, err := m.api.Permissions(ctx, next.AccessToken)
	switch {
	case err != nil:
		m.logger.Error("loading permissions for %s: %v", username, err)
	case perms == nil:
		m.logger.Error("loading permissions for %s: empty response", username)
	default:
		next.Permissions = perms.Permissions
		next.AccessibleAreas = perms.AccessibleAreas
	}

	m.state = next
	m.persistLocked()
	m.logger.Debug("logged in as %s (access %s)", username, config.MaskToken(next.AccessToken))

	return nil
}

// Verify asks the server whether the access token is still valid.
// Every failure counts as invalid.
func (m *Manager) Verify(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyLocked(ctx)
}

// Refresh exchanges the refresh token for a new access token. It returns
// false, leaving the session unchanged, on any failure.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshLocked(ctx)
}

// EnsureAuthenticated is the single check for "is the user usable now". It
// verifies the access token, falls back to a refresh, and clears the session
// when both fail.
func (m *Manager) EnsureAuthenticated(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.AccessToken == "" {
		return false
	}
	if m.verifyLocked(ctx) {
		return true
	}
	if m.refreshLocked(ctx) {
		return true
	}

	m.logger.Debug("session for %s could not be renewed, clearing", m.usernameLocked())
	m.clearLocked()
	return false
}

// Logout drops the session and its cache.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Authenticated() {
		return StateAuthenticated
	}
	return StateLoggedOut
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (m *Manager) CurrentUser() *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.User.Clone()
}

// IsSuperAdmin reports whether the current user has unrestricted scope.
func (m *Manager) IsSuperAdmin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isSuperAdminLocked()
}

// HasPermission reports whether the stored flags grant action on menu.
func (m *Manager) HasPermission(menu string, action Action) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.state.Permissions) == 0 {
		return false
	}
	return m.state.Permissions[menu].Allows(action)
}

// CanAccessDesa reports whether the user may act on desa. A super admin may
// act on any desa, including names absent from the catalog.
func (m *Manager) CanAccessDesa(desa string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.User == nil {
		return false
	}
	if m.isSuperAdminLocked() {
		return true
	}
	return slices.Contains(m.state.AccessibleAreas.Desa, desa)
}

// CanAccessKelompok reports whether the user may act on kelompok.
func (m *Manager) CanAccessKelompok(kelompok string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.User == nil {
		return false
	}
	if m.isSuperAdminLocked() {
		return true
	}
	return slices.Contains(m.state.AccessibleAreas.Kelompok, kelompok)
}

// AccessibleDesa returns the full catalog for a super admin, otherwise the
// assigned desa list.
func (m *Manager) AccessibleDesa() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isSuperAdminLocked() {
		return slices.Clone(m.catalog.Desa)
	}
	return slices.Clone(m.state.AccessibleAreas.Desa)
}

// AccessibleKelompok returns the full catalog for a super admin, otherwise
// the assigned kelompok list.
func (m *Manager) AccessibleKelompok() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isSuperAdminLocked() {
		return slices.Clone(m.catalog.Kelompok)
	}
	return slices.Clone(m.state.AccessibleAreas.Kelompok)
}

// AccessTokenExpiry reads the exp claim of the access token. The signature is
// not checked; the result is for display only.
func (m *Manager) AccessTokenExpiry() (time.Time, bool) {
	m.mu.Lock()
	token := m.state.AccessToken
	m.mu.Unlock()

	if token == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// CachePath returns where the session is persisted.
func (m *Manager) CachePath() string {
	return m.cache.Path()
}

func (m *Manager) verifyLocked(ctx context.Context) bool {
	if m.state.AccessToken == "" {
		return false
	}

	valid, err := m.api.Verify(ctx, m.state.AccessToken)
	if err != nil {
		m.logger.Debug("verify failed: %v", err)
		return false
	}
	return valid
}

func (m *Manager) refreshLocked(ctx context.Context) bool {
	if m.state.RefreshToken == "" {
		return false
	}

	res, err := m.api.Refresh(ctx, m.state.RefreshToken)
	if err != nil {
		m.logger.Debug("refresh failed: %v", err)
		return false
	}
	if res == nil || res.AccessToken == "" || res.User == nil {
		m.logger.Debug("refresh response incomplete")
		return false
	}

	next := m.state.Clone()
	next.AccessToken = res.AccessToken
	next.User = res.User
	m.state = next
	m.persistLocked()
	m.logger.Debug("refreshed access token (%s)", config.MaskToken(next.AccessToken))

	return true
}

func (m *Manager) clearLocked() {
	m.state = Session{}
	if err := m.cache.Clear(); err != nil {
		m.logger.Error("clearing token cache: %v", err)
	}
}

// persistLocked saves the session. A failed save only costs the next
// startup a login, so it is logged rather than returned.
func (m *Manager) persistLocked() {
	if err := m.cache.Save(m.state, m.now()); err != nil {
		m.logger.Error("saving token cache: %v", err)
	}
}

func (m *Manager) isSuperAdminLocked() bool {
	return m.state.User != nil && m.state.User.Role == RoleSuperAdmin
}

func (m *Manager) usernameLocked() string {
	if m.state.User == nil {
		return "<unknown>"
	}
	return m.state.User.Username
}
