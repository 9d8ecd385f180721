package domain

// Built-in role labels.
const (
	RoleSuperAdmin = "admin"
	RoleUser       = "user"
	RoleTest       = "test"
)

// Role aggregates permissions. Label is the stable identifier checked in code.
type Role struct {
	ID       int64
	Label    string
	Name     string
	Disabled bool
}

// Permission is one capability identifier, e.g. "system:online:list".
type Permission struct {
	ID    int64
	Perms string
	Name  string
}
