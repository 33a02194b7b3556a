package users

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/doj-records/records/internal/shared"
)

// ErrNotFound indicates the user id is unknown.
var ErrNotFound = fmt.Errorf("users: %w", shared.ErrNotFound)

// User is an account as stored in the users collection. Role, RoleID and
// Roles are the legacy role fields; authorization reads Ref instead.
type User struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Role     string   `json:"role"`
	RoleID   string   `json:"role_id"`
	Roles    []string `json:"roles"`
	IsAdmin  bool     `json:"is_admin"`
	Status   string   `json:"status"`

	Ref RoleRef `json:"-"`
}

// RoleRef is the normalized role reference of a user, computed once when the
// user is loaded.
type RoleRef struct {
	// Candidates lists the role ids to test, most specific first.
	Candidates []string
	// FullAccess is set for admin-flagged users and sentinel role ids.
	FullAccess bool
}

// ResolveRoleRef derives the role reference from the legacy fields: the
// explicit role_id, then every entry of roles, then the single role name.
// The historical "administrator" id additionally maps onto the admin role.
func ResolveRoleRef(u User) RoleRef {
	ref := RoleRef{FullAccess: u.IsAdmin || shared.IsFullAccessRole(u.RoleID)}
	seen := make(map[string]struct{})
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ref.Candidates = append(ref.Candidates, id)
	}

	add(u.RoleID)
	for _, name := range u.Roles {
		add(Slug(name))
	}
	add(Slug(u.Role))
	if _, ok := seen[shared.LegacyAdminAlias]; ok {
		add(shared.RoleAdmin)
	}
	return ref
}

// Slug turns a role display name into its id form: lower case with spaces
// replaced by underscores. "Chief Justice" becomes "chief_justice".
func Slug(name string) string {
	if name == "" {
		return ""
	}
	return cases.Lower(language.Und).String(strings.ReplaceAll(name, " ", "_"))
}

// HasRole reports whether any candidate equals id.
func (r RoleRef) HasRole(id string) bool {
	for _, c := range r.Candidates {
		if c == id {
			return true
		}
	}
	return false
}
