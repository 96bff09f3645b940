package permission

import (
	"context"
	"fmt"
	"strings"
)

// Display limits for AccessibleAreasDisplay.
const (
	displayDesaLimit     = 3
	displayKelompokLimit = 2
)

// UserInfoDisplay returns "username (Role Label)", or "Not logged in".
func (r *Resolver) UserInfoDisplay(ctx context.Context) string {
	if !r.auth.EnsureAuthenticated(ctx) {
		return "Not logged in"
	}
	return r.UserInfo()
}

// AccessibleAreasDisplay summarizes the user's scope on one line. It is empty
// when nobody is logged in.
func (r *Resolver) AccessibleAreasDisplay(ctx context.Context) string {
	if !r.auth.EnsureAuthenticated(ctx) {
		return ""
	}
	return r.AreasSummary()
}

// UserInfo is UserInfoDisplay over the session as it stands, without
// checking it with the server first.
func (r *Resolver) UserInfo() string {
	user := r.auth.CurrentUser()
	if user == nil {
		return "Not logged in"
	}
	return fmt.Sprintf("%s (%s)", user.Username, user.Role.Label())
}

// AreasSummary is AccessibleAreasDisplay over the session as it stands. The
// caller is expected to have checked the session already.
func (r *Resolver) AreasSummary() string {
	if r.auth.CurrentUser() == nil {
		return ""
	}
	if r.auth.IsSuperAdmin() {
		return "Access: all areas"
	}

	var parts []string
	if desa := r.auth.AccessibleDesa(); len(desa) > 0 {
		parts = append(parts, "Desa: "+truncatedList(desa, displayDesaLimit))
	}
	if kelompok := r.auth.AccessibleKelompok(); len(kelompok) > 0 {
		parts = append(parts, "Kelompok: "+truncatedList(kelompok, displayKelompokLimit))
	}
	if len(parts) == 0 {
		return "Access: restricted"
	}
	return "Access: " + strings.Join(parts, " | ")
}

func truncatedList(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(items[:limit], ", "), len(items)-limit)
}
