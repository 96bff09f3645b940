// Package session owns the authenticated state of the desktop client.
//
// A Manager drives login, verification, refresh and logout against the
// membership API and answers permission and area queries from memory. The
// state is mirrored to an encrypted TokenCache so a restart within the
// retention window does not require a fresh login.
package session

import (
	"context"
	"encoding/json"
	"slices"
)

// Role is a user's role tag as issued by the server.
type Role string

// Known roles.
const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdmin         Role = "admin"
	RoleAdminDesa     Role = "admin_desa"
	RoleAdminKelompok Role = "admin_kelompok"
)

// Label returns the display name for the role. Unknown roles are shown verbatim.
func (r Role) Label() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin Regional"
	case RoleAdminDesa:
		return "Admin Desa"
	case RoleAdminKelompok:
		return "Admin Kelompok"
	default:
		return string(r)
	}
}

// Action is a capability on a menu.
type Action string

// Menu actions.
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

// ParseAction returns the Action named by s.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionView, ActionCreate, ActionEdit, ActionDelete:
		return a, true
	default:
		return "", false
	}
}

// MenuPermission holds the action flags granted on one menu.
type MenuPermission struct {
	CanView   bool `json:"can_view"`
	CanCreate bool `json:"can_create"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// Allows reports whether the flag for action is set.
func (p MenuPermission) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.CanView
	case ActionCreate:
		return p.CanCreate
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	default:
		return false
	}
}

// Permissions maps a menu display name to its flags.
type Permissions map[string]MenuPermission

// Areas lists the desa and kelompok scopes assigned to a user, in server order.
type Areas struct {
	Desa     []string `json:"desa"`
	Kelompok []string `json:"kelompok"`
}

// User is the profile returned by the server. Fields the client does not
// model are kept in Extra so they survive the token cache.
type User struct {
	ID               any      `json:"id,omitempty"`
	Username         string   `json:"username"`
	Email            string   `json:"email,omitempty"`
	Role             Role     `json:"role"`
	AssignedDesa     []string `json:"assigned_desa,omitempty"`
	AssignedKelompok []string `json:"assigned_kelompok,omitempty"`

	Extra map[string]any `json:"-"`
}

// userFields is User without its JSON methods.
type userFields User

// knownUserKeys are the JSON keys decoded into named User fields.
//
//nolint:gochecknoglobals // Lookup table
var knownUserKeys = []string{"id", "username", "email", "role", "assigned_desa", "assigned_kelompok"}

// UnmarshalJSON decodes the named fields and collects the rest into Extra.
func (u *User) UnmarshalJSON(data []byte) error {
	var fields userFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownUserKeys {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}

	*u = User(fields)
	u.Extra = all
	return nil
}

// MarshalJSON writes the named fields and the Extra fields side by side.
func (u User) MarshalJSON() ([]byte, error) {
	named, err := json.Marshal(userFields(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return named, nil
	}

	merged := make(map[string]any, len(u.Extra)+len(knownUserKeys))
	for k, v := range u.Extra {
		merged[k] = v
	}
	var fields map[string]any
	if err := json.Unmarshal(named, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Clone returns a deep copy of the user's named fields. Extra values are
// shared; they are treated as read-only.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.AssignedDesa = slices.Clone(u.AssignedDesa)
	c.AssignedKelompok = slices.Clone(u.AssignedKelompok)
	if u.Extra != nil {
		c.Extra = make(map[string]any, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Session is the complete authenticated state. Both tokens are set or both
// are empty.
type Session struct {
	AccessToken     string
	RefreshToken    string
	User            *User
	Permissions     Permissions
	AccessibleAreas Areas
}

// Authenticated reports whether both tokens are present.
func (s Session) Authenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Clone returns a deep copy that shares nothing mutable with s.
func (s Session) Clone() Session {
	c := Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         s.User.Clone(),
		AccessibleAreas: Areas{
			Desa:     slices.Clone(s.AccessibleAreas.Desa),
			Kelompok: slices.Clone(s.AccessibleAreas.Kelompok),
		},
	}
	if s.Permissions != nil {
		c.Permissions = make(Permissions, len(s.Permissions))
		for k, v := range s.Permissions {
			c.Permissions[k] = v
		}
	}
	return c
}

// State is the Manager's lifecycle state.
type State int

// Manager states.
const (
	StateLoggedOut State = iota
	StateAuthenticated
)

// String returns the state name.
func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "logged_out"
}

// Device describes the client to the server at login.
type Device struct {
	Type string
	Info string
}

// LoginResult is a successful login response.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// RefreshResult is a successful refresh response.
type RefreshResult struct {
	AccessToken string
	User        *User
}

// PermissionSet is a successful permissions response.
type PermissionSet struct {
	Permissions     Permissions
	AccessibleAreas Areas
}

// API is the remote membership service as seen by the Manager.
type API interface {
	// Login exchanges credentials for a token pair.
	Login(ctx context.Context, username, password string, device Device) (*LoginResult, error)

	// Verify reports whether the access token is currently accepted.
	Verify(ctx context.Context, accessToken string) (bool, error)

	// Refresh mints a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)

	// Permissions fetches menu flags and assigned areas for the token's user.
	Permissions(ctx context.Context, accessToken string) (*PermissionSet, error)
}

// Catalog is the reference list of every desa and kelompok.
type Catalog struct {
	Desa     []string
	Kelompok []string
}
