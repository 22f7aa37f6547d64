package membership

import (
	"fmt"
	"strings"
)

// Role is ordered by privilege: Employee < Manager < Admin.
type Role int

const (
	RoleEmployee Role = iota + 1
	RoleManager
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleEmployee: "Employee",
	RoleManager:  "Manager",
	RoleAdmin:    "Admin",
}

// ApproverRoles may approve, reject and review organization timesheets.
var ApproverRoles = []Role{RoleAdmin, RoleManager}

func ParseRole(value string) (Role, error) {
	normalized := strings.TrimSpace(value)
	for role, name := range roleNames {
		if strings.EqualFold(name, normalized) {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", value)
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Unknown"
}

// AtLeast reports whether r is as privileged as min.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r >= min
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
