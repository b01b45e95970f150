package enums

import "fmt"

// ActorRole identifies the authenticated caller's role.
type ActorRole string

const (
	RoleBuyer     ActorRole = "buyer"
	RoleOrganizer ActorRole = "organizer"
	RoleAdmin     ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	RoleBuyer,
	RoleOrganizer,
	RoleAdmin,
}

// IsValid reports whether the value matches the canonical enum.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}
