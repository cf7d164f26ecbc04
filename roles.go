package access

// Role is the closed enumeration of account roles. Exactly one role exists
// per (account, user) pair; unknown roles are a construction-time error, not
// a silent empty-permission fallthrough.
type Role string

const (
	// RoleOwner has every permission in the catalog.
	RoleOwner Role = "owner"
	// RoleAdmin manages members and invitations.
	RoleAdmin Role = "admin"
	// RoleEditor can modify account content and settings.
	RoleEditor Role = "editor"
	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"
	// RoleLegalAdvisor is a specialty role scoped to legal resources.
	RoleLegalAdvisor Role = "legal_advisor"
	// RoleFinancialAdvisor is a specialty role scoped to financial resources.
	RoleFinancialAdvisor Role = "financial_advisor"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer, RoleLegalAdvisor, RoleFinancialAdvisor:
		return true
	default:
		return false
	}
}

// IsAdministrative reports whether the role may manage members and
// invitations on behalf of the account.
func (r Role) IsAdministrative() bool {
	return r == RoleOwner || r == RoleAdmin
}

// AllRoles returns all predefined roles, hierarchical roles first.
func AllRoles() []Role {
	return []Role{
		RoleOwner,
		RoleAdmin,
		RoleEditor,
		RoleViewer,
		RoleLegalAdvisor,
		RoleFinancialAdvisor,
	}
}

// ParseRole safely parses a string into a Role type
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}
