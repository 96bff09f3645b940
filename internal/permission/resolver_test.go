package permission_test

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mudamudi/mmdesk/internal/permission"
	"github.com/mudamudi/mmdesk/internal/session"
)

// fakeAuthority answers from fixed fields and counts ensure calls.
type fakeAuthority struct {
	authenticated bool
	user          *session.User
	perms         session.Permissions
	desa          []string
	kelompok      []string
	catalog       session.Catalog
	ensureCalls   int
}

func (f *fakeAuthority) EnsureAuthenticated(context.Context) bool {
	f.ensureCalls++
	return f.authenticated
}

func (f *fakeAuthority) HasPermission(menu string, action session.Action) bool {
	return f.perms[menu].Allows(action)
}

func (f *fakeAuthority) CanAccessDesa(desa string) bool {
	return f.IsSuperAdmin() || slices.Contains(f.desa, desa)
}

func (f *fakeAuthority) CanAccessKelompok(kelompok string) bool {
	return f.IsSuperAdmin() || slices.Contains(f.kelompok, kelompok)
}

func (f *fakeAuthority) AccessibleDesa() []string {
	if f.IsSuperAdmin() {
		return f.catalog.Desa
	}
	return f.desa
}

func (f *fakeAuthority) AccessibleKelompok() []string {
	if f.IsSuperAdmin() {
		return f.catalog.Kelompok
	}
	return f.kelompok
}

func (f *fakeAuthority) CurrentUser() *session.User { return f.user }

func (f *fakeAuthority) IsSuperAdmin() bool {
	return f.user != nil && f.user.Role == session.RoleSuperAdmin
}

func adminDesa() *fakeAuthority {
	return &fakeAuthority{
		authenticated: true,
		user:          &session.User{Username: "budi", Role: session.RoleAdminDesa},
		perms: session.Permissions{
			"Dashboard":            {CanView: true},
			"Input Data Muda-Mudi": {CanView: true, CanCreate: true},
			"Laporan":              {CanView: false},
		},
		desa:     []string{"Desa A", "Desa C"},
		kelompok: []string{"Kelompok 2"},
	}
}

func TestResolver_MenuCapabilities(t *testing.T) {
	t.Parallel()
	r := permission.NewResolver(adminDesa())
	ctx := context.Background()

	assert.True(t, r.CanAccessMenu(ctx, "dashboard"))
	assert.False(t, r.CanAccessMenu(ctx, "laporan"))
	assert.False(t, r.CanAccessMenu(ctx, "scan_qr"), "mapped but absent from permissions")
	assert.True(t, r.CanCreate(ctx, "input_data"))
	assert.False(t, r.CanEdit(ctx, "input_data"))
	assert.False(t, r.CanDelete(ctx, "input_data"))
	assert.True(t, r.Can(ctx, "input_data", session.ActionView))
}

func TestResolver_UnmappedMenuIsAllowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := permission.NewResolver(adminDesa())
	assert.True(t, r.CanAccessMenu(ctx, "pengaturan"))
	assert.True(t, r.CanDelete(ctx, "pengaturan"))

	anon := permission.NewResolver(&fakeAuthority{})
	assert.False(t, anon.CanAccessMenu(ctx, "pengaturan"))
}

func TestResolver_UnauthenticatedDeniesEverything(t *testing.T) {
	t.Parallel()
	auth := adminDesa()
	auth.authenticated = false
	r := permission.NewResolver(auth)
	ctx := context.Background()

	assert.False(t, r.CanAccessMenu(ctx, "dashboard"))
	assert.Empty(t, r.FilterDesaOptions(ctx, []string{"Desa A"}))
	assert.NotNil(t, r.FilterDesaOptions(ctx, []string{"Desa A"}))
	assert.Empty(t, r.FilterKelompokOptions(ctx, []string{"Kelompok 2"}))
	assert.Equal(t, permission.ModeDenyAll, r.DataFilter(ctx).Mode)
	assert.False(t, r.CanAccessParticipant(ctx, "", ""))
	assert.Equal(t, "Not logged in", r.UserInfoDisplay(ctx))
	assert.Empty(t, r.AccessibleAreasDisplay(ctx))
}

func TestResolver_FilterOptions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		accessible []string
		input      []string
		expected   []string
	}{
		{"intersection keeps input order", []string{"Desa C", "Desa A"}, []string{"Desa A", "Desa B", "Desa C"}, []string{"Desa A", "Desa C"}},
		{"empty accessible is unrestricted", nil, []string{"Desa B", "Desa A"}, []string{"Desa B", "Desa A"}},
		{"no overlap", []string{"Desa Z"}, []string{"Desa A"}, []string{}},
		{"empty input", []string{"Desa A"}, nil, []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			auth := adminDesa()
			auth.desa = tc.accessible
			r := permission.NewResolver(auth)
			assert.Equal(t, tc.expected, r.FilterDesaOptions(ctx, tc.input))
		})
	}
}

func TestResolver_FilterKelompokOptions(t *testing.T) {
	t.Parallel()
	r := permission.NewResolver(adminDesa())

	got := r.FilterKelompokOptions(context.Background(), []string{"Kelompok 1", "Kelompok 2", "Kelompok 3"})
	assert.Equal(t, []string{"Kelompok 2"}, got)
}

func TestResolver_FilterDoesNotAliasInput(t *testing.T) {
	t.Parallel()
	auth := adminDesa()
	auth.desa = nil
	r := permission.NewResolver(auth)

	input := []string{"Desa A"}
	got := r.FilterDesaOptions(context.Background(), input)
	got[0] = "changed"
	assert.Equal(t, "Desa A", input[0])
}

func TestResolver_SuperAdminFiltersAgainstCatalog(t *testing.T) {
	t.Parallel()
	auth := &fakeAuthority{
		authenticated: true,
		user:          &session.User{Username: "root", Role: session.RoleSuperAdmin},
		catalog:       session.Catalog{Desa: []string{"Desa A", "Desa B"}},
	}
	r := permission.NewResolver(auth)
	ctx := context.Background()

	assert.Equal(t, []string{"Desa A"}, r.FilterDesaOptions(ctx, []string{"Desa A", "Desa Luar"}))
	assert.Equal(t, []string{"K9"}, r.FilterKelompokOptions(ctx, []string{"K9"}), "empty kelompok catalog is unrestricted")
	assert.Equal(t, permission.AllowAll(), r.DataFilter(ctx))
	assert.True(t, r.CanAccessParticipant(ctx, "Desa Luar", "K9"))
	assert.Equal(t, "Access: all areas", r.AccessibleAreasDisplay(ctx))
	assert.Equal(t, "root (Super Admin)", r.UserInfoDisplay(ctx))
}

func TestResolver_DataFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := permission.NewResolver(adminDesa())
	p := r.DataFilter(ctx)
	assert.Equal(t, permission.ModeRestricted, p.Mode)
	assert.Equal(t, []string{"Desa A", "Desa C"}, p.Desa)
	assert.Equal(t, []string{"Kelompok 2"}, p.Kelompok)

	noAreas := adminDesa()
	noAreas.desa, noAreas.kelompok = nil, nil
	assert.Equal(t, permission.DenyAll(), permission.NewResolver(noAreas).DataFilter(ctx))
}

func TestResolver_CanAccessParticipant(t *testing.T) {
	t.Parallel()
	r := permission.NewResolver(adminDesa())
	ctx := context.Background()

	tests := []struct {
		desa, kelompok string
		expected       bool
	}{
		{"Desa A", "Kelompok 2", true},
		{"Desa A", "", true},
		{"", "Kelompok 2", true},
		{"", "", true},
		{"Desa B", "Kelompok 2", false},
		{"Desa A", "Kelompok 9", false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, r.CanAccessParticipant(ctx, tc.desa, tc.kelompok), "%q/%q", tc.desa, tc.kelompok)
	}
}

func TestResolver_UserInfoDisplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	assert.Equal(t, "budi (Admin Desa)", permission.NewResolver(adminDesa()).UserInfoDisplay(ctx))

	custom := adminDesa()
	custom.user = &session.User{Username: "sari", Role: "operator"}
	assert.Equal(t, "sari (operator)", permission.NewResolver(custom).UserInfoDisplay(ctx))

	noUser := adminDesa()
	noUser.user = nil
	assert.Equal(t, "Not logged in", permission.NewResolver(noUser).UserInfoDisplay(ctx))
}

func TestResolver_AccessibleAreasDisplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name     string
		desa     []string
		kelompok []string
		expected string
	}{
		{"both short", []string{"A", "B"}, []string{"K1"}, "Access: Desa: A, B | Kelompok: K1"},
		{"desa truncated", []string{"A", "B", "C", "D", "E"}, nil, "Access: Desa: A, B, C (+2 more)"},
		{"kelompok truncated", nil, []string{"K1", "K2", "K3"}, "Access: Kelompok: K1, K2 (+1 more)"},
		{"exact limits", []string{"A", "B", "C"}, []string{"K1", "K2"}, "Access: Desa: A, B, C | Kelompok: K1, K2"},
		{"nothing", nil, nil, "Access: restricted"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			auth := adminDesa()
			auth.desa, auth.kelompok = tc.desa, tc.kelompok
			assert.Equal(t, tc.expected, permission.NewResolver(auth).AccessibleAreasDisplay(ctx))
		})
	}
}

func TestResolver_SummariesStayOffline(t *testing.T) {
	t.Parallel()
	auth := adminDesa()
	r := permission.NewResolver(auth)

	assert.Equal(t, "budi (Admin Desa)", r.UserInfo())
	assert.Equal(t, "Access: Desa: Desa A, Desa C | Kelompok: Kelompok 2", r.AreasSummary())
	assert.Zero(t, auth.ensureCalls)

	auth.user = nil
	assert.Equal(t, "Not logged in", r.UserInfo())
	assert.Empty(t, r.AreasSummary())
	assert.Zero(t, auth.ensureCalls)
}

func TestResolver_ChecksSessionEveryCall(t *testing.T) {
	t.Parallel()
	auth := adminDesa()
	r := permission.NewResolver(auth)
	ctx := context.Background()

	r.CanAccessMenu(ctx, "dashboard")
	r.FilterDesaOptions(ctx, nil)
	r.DataFilter(ctx)
	assert.Equal(t, 3, auth.ensureCalls)
}
