package constants

import "strings"

// Roles stored in users.role.
const (
	Admin  = "ADMIN"
	Client = "CLIENT"
)

var roleLabels = map[string]string{
	Admin:  "Administrador",
	Client: "Cliente",
}

// ValidRoles lists every accepted role, admin first.
var ValidRoles = []string{Admin, Client}

// IsValidRole reports whether role is exactly one of ValidRoles.
func IsValidRole(role string) bool {
	_, ok := roleLabels[role]
	return ok
}

// NormalizeRole upper-cases and trims user input such as "client ".
func NormalizeRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

// RoleLabel is the display name used on receipts and in the back office.
func RoleLabel(role string) string {
	if l, ok := roleLabels[role]; ok {
		return l
	}
	return role
}
