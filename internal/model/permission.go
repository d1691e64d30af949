package model

// Permission represents a string code for a specific system action.
type Permission string

const (
	// PermissionQuizzesRead allows listing and viewing quizzes.
	PermissionQuizzesRead Permission = "quizzes:read"

	// PermissionQuizzesAttempt allows starting and submitting attempts and reading own results.
	PermissionQuizzesAttempt Permission = "quizzes:attempt"

	// PermissionQuizzesWrite allows authoring quizzes the caller owns.
	PermissionQuizzesWrite Permission = "quizzes:write"

	// PermissionQuizzesWriteAll allows authoring any quiz regardless of owner.
	PermissionQuizzesWriteAll Permission = "quizzes:write_all"

	// PermissionQuizzesMonitor allows subscribing to the live attempt feed.
	PermissionQuizzesMonitor Permission = "quizzes:monitor"
)

// AllPermissions is a slice of all available permissions.
var AllPermissions = []Permission{
	PermissionQuizzesRead,
	PermissionQuizzesAttempt,
	PermissionQuizzesWrite,
	PermissionQuizzesWriteAll,
	PermissionQuizzesMonitor,
}

// RolePermissions maps each role to the permissions it grants.
var RolePermissions = map[Role][]Permission{
	RoleStudent: {
		PermissionQuizzesRead,
		PermissionQuizzesAttempt,
	},
	RoleInstructor: {
		PermissionQuizzesRead,
		PermissionQuizzesAttempt,
		PermissionQuizzesWrite,
		PermissionQuizzesMonitor,
	},
	RoleAdmin: {
		PermissionQuizzesRead,
		PermissionQuizzesAttempt,
		PermissionQuizzesWrite,
		PermissionQuizzesWriteAll,
		PermissionQuizzesMonitor,
	},
}

// PermissionsFor returns the permission codes granted to role as strings.
func PermissionsFor(role Role) []string {
	perms := RolePermissions[role]
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
