package constants

import roles "siglo-backend/internal/pkg/constants"

// PermissionRoles maps each permission to roles allowed to perform it.
var PermissionRoles = map[string][]string{
	BuyLot:          {roles.Client, roles.Admin},
	ViewPurchase:    {roles.Client, roles.Admin},
	RecordPayment:   {roles.Client, roles.Admin},
	ManagePurchases: {roles.Admin},
	ManagePayments:  {roles.Admin},
	SyncLots:        {roles.Admin},
	ManageUsers:     {roles.Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Configured reports whether permission has any role mapped to it.
func Configured(permission string) bool {
	return len(PermissionRoles[permission]) > 0
}
