package roles

import "github.com/doj-records/records/internal/shared"

// inheritedModules lists modules that historically shared the grants of
// another module. A role granting the source but not the target inherits
// the source's actions during normalization.
var inheritedModules = []struct {
	from, to string
}{
	{shared.ModuleCases, shared.ModuleCivilCases},
	{shared.ModuleCases, shared.ModuleRevisions},
}

// Defaults returns the roles seeded into an empty installation.
func Defaults() []Role {
	return []Role{
		{
			ID:          shared.RoleAdmin,
			Name:        "Administrator",
			Description: "System administrator with full access",
			Permissions: map[string][]string{},
		},
		{
			ID:          "prosecutor",
			Name:        "Prosecutor",
			Description: "Department prosecutor responsible for cases",
			Permissions: map[string][]string{},
		},
		{
			ID:          "judge",
			Name:        "Judge",
			Description: "Judicial official who presides over cases",
			Permissions: map[string][]string{},
		},
		{
			ID:          "clerk",
			Name:        "Clerk",
			Description: "Administrative staff who manages records",
			Permissions: map[string][]string{},
		},
	}
}
