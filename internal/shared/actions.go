package shared

import "strings"

// Action is one element of the tri-state permission model.
type Action uint8

const (
	ActionView Action = 1 << iota
	ActionEdit
	ActionDelete
)

// Actions lists the tri-state universe in canonical order.
func Actions() []Action {
	return []Action{ActionView, ActionEdit, ActionDelete}
}

func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// NormalizeAction folds a legacy action synonym into the tri-state model.
// Anything unrecognised, legacy numeric codes included, is treated as edit.
func NormalizeAction(raw string) Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "view", "read", "list", "index", "show":
		return ActionView
	case "delete", "remove", "destroy":
		return ActionDelete
	default:
		return ActionEdit
	}
}

// ActionSet is a subset of the tri-state universe.
type ActionSet uint8

// AllActions grants every action.
const AllActions = ActionSet(ActionView | ActionEdit | ActionDelete)

// NewActionSet folds raw action strings into a set.
func NewActionSet(raw ...string) ActionSet {
	var set ActionSet
	for _, r := range raw {
		set = set.With(NormalizeAction(r))
	}
	return set
}

// Has reports whether a is in the set.
func (s ActionSet) Has(a Action) bool {
	return s&ActionSet(a) != 0
}

// With returns the set including a.
func (s ActionSet) With(a Action) ActionSet {
	return s | ActionSet(a)
}

// Slice returns the members in canonical order.
func (s ActionSet) Slice() []Action {
	out := make([]Action, 0, 3)
	for _, a := range Actions() {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// Strings returns the member names in canonical order.
func (s ActionSet) Strings() []string {
	acts := s.Slice()
	out := make([]string, len(acts))
	for i, a := range acts {
		out[i] = a.String()
	}
	return out
}

func (s ActionSet) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Strings(), "|")
}
