package access

// Permission is an atomic capability string, e.g. "account:write".
// Permissions are never assigned to users directly, only inherited through
// the role held in an account membership.
type Permission string

const (
	PermAccountRead   Permission = "account:read"
	PermAccountWrite  Permission = "account:write"
	PermAccountDelete Permission = "account:delete"

	PermMembersRead  Permission = "members:read"
	PermMembersWrite Permission = "members:write"

	PermInvitationsRead  Permission = "invitations:read"
	PermInvitationsWrite Permission = "invitations:write"

	PermSettingsRead  Permission = "settings:read"
	PermSettingsWrite Permission = "settings:write"

	PermLegalRead  Permission = "legal:read"
	PermLegalWrite Permission = "legal:write"

	PermFinanceRead  Permission = "finance:read"
	PermFinanceWrite Permission = "finance:write"
)

// permissionCatalog is the total, static role → permission mapping. The
// hierarchical roles are strictly monotonic: owner ⊇ admin ⊇ editor ⊇
// viewer. Advisor roles carry read access plus their specialty resource.
var permissionCatalog = map[Role][]Permission{
	RoleViewer: {
		PermAccountRead,
		PermMembersRead,
		PermSettingsRead,
	},
	RoleEditor: {
		PermAccountRead,
		PermMembersRead,
		PermSettingsRead,
		PermAccountWrite,
		PermSettingsWrite,
		PermInvitationsRead,
	},
	RoleAdmin: {
		PermAccountRead,
		PermMembersRead,
		PermSettingsRead,
		PermAccountWrite,
		PermSettingsWrite,
		PermInvitationsRead,
		PermMembersWrite,
		PermInvitationsWrite,
		PermLegalRead,
		PermFinanceRead,
	},
	RoleOwner: {
		PermAccountRead,
		PermMembersRead,
		PermSettingsRead,
		PermAccountWrite,
		PermSettingsWrite,
		PermInvitationsRead,
		PermMembersWrite,
		PermInvitationsWrite,
		PermLegalRead,
		PermFinanceRead,
		PermAccountDelete,
		PermLegalWrite,
		PermFinanceWrite,
	},
	RoleLegalAdvisor: {
		PermAccountRead,
		PermMembersRead,
		PermLegalRead,
		PermLegalWrite,
	},
	RoleFinancialAdvisor: {
		PermAccountRead,
		PermMembersRead,
		PermFinanceRead,
		PermFinanceWrite,
	},
}

// PermissionsFor returns a copy of the permission set carried by role.
// Invalid roles yield nil; gate construction with ParseRole.
func PermissionsFor(role Role) []Permission {
	perms, ok := permissionCatalog[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// AllPermissions returns every permission present in the catalog.
func AllPermissions() []Permission {
	return PermissionsFor(RoleOwner)
}

// Can checks if the role carries a specific permission.
func (r Role) Can(permission Permission) bool {
	for _, p := range permissionCatalog[r] {
		if p == permission {
			return true
		}
	}
	return false
}

// CanAll checks if the role carries every listed permission.
func (r Role) CanAll(permissions ...Permission) bool {
	for _, p := range permissions {
		if !r.Can(p) {
			return false
		}
	}
	return true
}

// CanAny checks if the role carries at least one of the listed permissions.
func (r Role) CanAny(permissions ...Permission) bool {
	for _, p := range permissions {
		if r.Can(p) {
			return true
		}
	}
	return false
}
