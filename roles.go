package auth

// Role is the closed set of account roles. Each role signs with its own secret.
type Role string

const (
	// RoleUser is the standard, non privileged shopper role
	RoleUser Role = "user"
	// RoleAdmin manages the store
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// RoleSecrets maps every role to its signing secret.
type RoleSecrets map[Role][]byte

// NewRoleSecrets builds the lookup table from the configured secrets.
func NewRoleSecrets(cfg Config) RoleSecrets {
	return RoleSecrets{
		RoleUser:  []byte(cfg.GetUserSigningKey()),
		RoleAdmin: []byte(cfg.GetAdminSigningKey()),
	}
}

// Secret returns the key for role. Unknown roles and empty keys are not usable.
func (s RoleSecrets) Secret(role Role) ([]byte, bool) {
	if !role.IsValid() {
		return nil, false
	}
	key, ok := s[role]
	if !ok || len(key) == 0 {
		return nil, false
	}
	return key, true
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}
