package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleIntake submits and reads leads (web forms, partner integrations).
	RoleIntake = "intake"
	// RoleAnalyst reads leads and audit monitoring data.
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
	// RoleSuperAdmin bypasses all role checks.
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsKnown reports whether role is one this service issues tokens for.
func IsKnown(role string) bool {
	switch role {
	case RoleIntake, RoleAnalyst, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// AuditReaders may read the API audit trail.
var AuditReaders = []string{RoleAnalyst, RoleAdmin}
