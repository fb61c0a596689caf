package models

// Permission is a single capability flag. Flags are powers of two and are
// combined with bitwise OR into a role's permission mask.
type Permission int

const (
	PermFollow   Permission = 1
	PermReview   Permission = 2
	PermPublish  Permission = 4
	PermModerate Permission = 8
	PermAdmin    Permission = 16
)

// AllPermissions lists every flag in ascending order.
var AllPermissions = []Permission{PermFollow, PermReview, PermPublish, PermModerate, PermAdmin}

func (p Permission) String() string {
	switch p {
	case PermFollow:
		return "Follow"
	case PermReview:
		return "Review"
	case PermPublish:
		return "Publish"
	case PermModerate:
		return "Moderate"
	case PermAdmin:
		return "Admin"
	}
	return "Unknown"
}

// Has reports whether every bit of perm is set in the mask.
func (p Permission) Has(perm Permission) bool {
	return p&perm == perm
}

func (r *Role) HasPermission(perm Permission) bool {
	return r.Permissions.Has(perm)
}

func (r *Role) AddPermission(perm Permission) {
	if !r.HasPermission(perm) {
		r.Permissions |= perm
	}
}

func (r *Role) RemovePermission(perm Permission) {
	if r.HasPermission(perm) {
		r.Permissions &^= perm
	}
}

func (r *Role) ResetPermissions() {
	r.Permissions = 0
}

// PermissionNames returns the names of the flags held by the role, in flag
// order.
func (r *Role) PermissionNames() []string {
	var names []string
	for _, p := range AllPermissions {
		if r.HasPermission(p) {
			names = append(names, p.String())
		}
	}
	return names
}
