// Package permission derives menu capabilities and data scopes from the
// session. It holds no state of its own and reads everything through an
// Authority, normally a *session.Manager.
package permission

import (
	"context"
	"slices"

	"github.com/mudamudi/mmdesk/internal/session"
)

// Authority is the part of the session manager the resolver depends on.
type Authority interface {
	EnsureAuthenticated(ctx context.Context) bool
	HasPermission(menu string, action session.Action) bool
	CanAccessDesa(desa string) bool
	CanAccessKelompok(kelompok string) bool
	AccessibleDesa() []string
	AccessibleKelompok() []string
	CurrentUser() *session.User
	IsSuperAdmin() bool
}

var _ Authority = (*session.Manager)(nil)

// Resolver answers capability and scope questions for the current user.
type Resolver struct {
	auth Authority
}

// NewResolver creates a resolver over auth.
func NewResolver(auth Authority) *Resolver {
	return &Resolver{auth: auth}
}

// CanAccessMenu reports whether the user may open the menu.
func (r *Resolver) CanAccessMenu(ctx context.Context, menuKey string) bool {
	return r.can(ctx, menuKey, session.ActionView)
}

// CanCreate reports whether the user may create records in the menu.
func (r *Resolver) CanCreate(ctx context.Context, menuKey string) bool {
	return r.can(ctx, menuKey, session.ActionCreate)
}

// CanEdit reports whether the user may edit records in the menu.
func (r *Resolver) CanEdit(ctx context.Context, menuKey string) bool {
	return r.can(ctx, menuKey, session.ActionEdit)
}

// CanDelete reports whether the user may delete records in the menu.
func (r *Resolver) CanDelete(ctx context.Context, menuKey string) bool {
	return r.can(ctx, menuKey, session.ActionDelete)
}

// Can reports whether the user may perform action on the menu.
//
// A menu key missing from the menu table is allowed for any authenticated
// user. Callers relying on a deny default must check IsKnownMenu first.
func (r *Resolver) Can(ctx context.Context, menuKey string, action session.Action) bool {
	return r.can(ctx, menuKey, action)
}

func (r *Resolver) can(ctx context.Context, menuKey string, action session.Action) bool {
	if !r.auth.EnsureAuthenticated(ctx) {
		return false
	}

	name, ok := MenuName(menuKey)
	if !ok {
		return true
	}
	return r.auth.HasPermission(name, action)
}

// FilterDesaOptions narrows options to the desa the user may see, keeping
// input order. An empty accessible list means unrestricted.
func (r *Resolver) FilterDesaOptions(ctx context.Context, options []string) []string {
	if !r.auth.EnsureAuthenticated(ctx) {
		return []string{}
	}
	return filterOptions(options, r.auth.AccessibleDesa())
}

// FilterKelompokOptions narrows options to the kelompok the user may see,
// keeping input order. An empty accessible list means unrestricted.
func (r *Resolver) FilterKelompokOptions(ctx context.Context, options []string) []string {
	if !r.auth.EnsureAuthenticated(ctx) {
		return []string{}
	}
	return filterOptions(options, r.auth.AccessibleKelompok())
}

func filterOptions(options, accessible []string) []string {
	if len(accessible) == 0 {
		return slices.Clone(options)
	}

	out := make([]string, 0, len(options))
	for _, o := range options {
		if slices.Contains(accessible, o) {
			out = append(out, o)
		}
	}
	return out
}

// DataFilter returns the predicate selecting the participant records the
// user may see.
func (r *Resolver) DataFilter(ctx context.Context) Predicate {
	if !r.auth.EnsureAuthenticated(ctx) {
		return DenyAll()
	}
	if r.auth.IsSuperAdmin() {
		return AllowAll()
	}
	return Restrict(r.auth.AccessibleDesa(), r.auth.AccessibleKelompok())
}

// CanAccessParticipant reports whether a record in desa/kelompok is within
// the user's scope. Empty fields are not checked.
func (r *Resolver) CanAccessParticipant(ctx context.Context, desa, kelompok string) bool {
	if !r.auth.EnsureAuthenticated(ctx) {
		return false
	}
	if desa != "" && !r.auth.CanAccessDesa(desa) {
		return false
	}
	if kelompok != "" && !r.auth.CanAccessKelompok(kelompok) {
		return false
	}
	return true
}
