package auth

import "strings"

type Role string

const (
	// RoleOrganizer is granted to signed-in users. It may manage events and
	// issue certificates.
	RoleOrganizer Role = "organizer"
	// RoleAnon is carried by the public key shipped with the web client. It
	// may call signup, login and verify only.
	RoleAnon Role = "anon"
)

// NormalizeRole maps unknown roles to RoleAnon.
func NormalizeRole(role string) Role {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(RoleOrganizer):
		return RoleOrganizer
	default:
		return RoleAnon
	}
}

// HasRole reports whether role is one of allowed. An empty allowed list
// accepts every role.
func HasRole(role string, allowed ...Role) bool {
	if len(allowed) == 0 {
		return true
	}
	current := NormalizeRole(role)
	for _, candidate := range allowed {
		if current == candidate {
			return true
		}
	}
	return false
}
