package roles

import (
	"errors"
	"fmt"
	"sort"

	"github.com/doj-records/records/internal/shared"
)

var (
	// ErrNotFound indicates the role id is unknown.
	ErrNotFound = fmt.Errorf("roles: %w", shared.ErrNotFound)
	// ErrInvalidRole indicates a role failed validation.
	ErrInvalidRole = fmt.Errorf("roles: %w", shared.ErrValidation)
)

// errSentinelRole rejects edits to the permissions of a full-access role.
var errSentinelRole = errors.New("full-access role permissions are fixed")

// Role is a named permission bundle. Permissions maps module keys to action
// names as stored; Grants folds them into the tri-state model.
type Role struct {
	ID          string              `json:"id" validate:"required,max=64,role_id"`
	Name        string              `json:"name" validate:"required,max=128"`
	Description string              `json:"description,omitempty" validate:"max=512"`
	Category    string              `json:"category,omitempty" validate:"max=64"`
	Permissions map[string][]string `json:"permissions"`
}

// Grants returns the permissions restricted to catalog modules with every
// action normalized. Modules whose action list is empty are kept with an
// empty set.
func (r Role) Grants() map[string]shared.ActionSet {
	out := make(map[string]shared.ActionSet, len(r.Permissions))
	for module, actions := range r.Permissions {
		if !shared.IsKnownModule(module) {
			continue
		}
		out[module] = shared.NewActionSet(actions...)
	}
	return out
}

// CanonicalPermissions rewrites raw permissions into canonical action names,
// dropping unknown modules and modules that grant nothing.
func CanonicalPermissions(raw map[string][]string) map[string][]string {
	out := make(map[string][]string, len(raw))
	for module, set := range (Role{Permissions: raw}).Grants() {
		if set == 0 {
			continue
		}
		out[module] = set.Strings()
	}
	return out
}

// UnknownModules lists the module keys of raw outside the catalog, sorted.
func UnknownModules(raw map[string][]string) []string {
	var out []string
	for module := range raw {
		if !shared.IsKnownModule(module) {
			out = append(out, module)
		}
	}
	sort.Strings(out)
	return out
}
