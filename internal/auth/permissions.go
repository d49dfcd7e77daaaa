package auth

// Permission represents a named capability.
type Permission string

const (
	PermTimelineRead   Permission = "timeline:read"
	PermRunOperate     Permission = "run:operate"
	PermEventManage    Permission = "event:manage"
	PermOperatorManage Permission = "operator:manage"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermTimelineRead,
	},
	RoleOperator: {
		PermTimelineRead,
		PermRunOperate,
	},
	RoleAdmin: {
		PermTimelineRead,
		PermRunOperate,
		PermEventManage,
		PermOperatorManage,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role, or nil for
// an unknown role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
