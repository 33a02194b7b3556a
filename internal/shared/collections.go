package shared

// Collections read directly by the access-control core.
const (
	CollectionUsers = "users"
	CollectionRoles = "roles"
)
