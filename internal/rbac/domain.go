package rbac

import (
	"sort"

	"github.com/doj-records/records/internal/shared"
)

// Matrix maps role id to module key to the actions that role may perform.
// A Matrix returned by the Builder may be shared between callers and must
// be treated as read-only.
type Matrix map[string]map[string]shared.ActionSet

// Allows reports whether roleID may perform action on module.
func (m Matrix) Allows(roleID, module string, action shared.Action) bool {
	return m[roleID][module].Has(action)
}

// Roles returns the role ids in the matrix, sorted.
func (m Matrix) Roles() []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m Matrix) grant(roleID, module string, set shared.ActionSet) {
	if set == 0 {
		return
	}
	modules, ok := m[roleID]
	if !ok {
		modules = make(map[string]shared.ActionSet)
		m[roleID] = modules
	}
	modules[module] |= set
}

// State is the outcome class of an access decision.
type State int

const (
	StateUnauthenticated State = iota
	StateDenied
	StateAllowed
)

func (s State) String() string {
	switch s {
	case StateAllowed:
		return "allowed"
	case StateDenied:
		return "denied"
	default:
		return "unauthenticated"
	}
}

// Decision is the result of one access check.
type Decision struct {
	State  State
	UserID string
	Module string
	Action shared.Action
	// Role is the candidate role id that granted access, empty for
	// full-access users and denials.
	Role   string
	Reason string
}

// Allowed reports whether access was granted.
func (d Decision) Allowed() bool {
	return d.State == StateAllowed
}
