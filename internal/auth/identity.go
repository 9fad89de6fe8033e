package auth

import "context"

// Roles
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleUser    = "user"
)

// Permissions
const (
	PermRead   = "read"
	PermWrite  = "write"
	PermDelete = "delete"
	PermBackup = "backup"
)

// SystemUserID is recorded for work done without a signed-in user
const SystemUserID = "system"

// Identity is the signed-in user behind a request
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
	Role          string `json:"role"`
}

// Can reports whether the identity holds perm
func (i *Identity) Can(perm string) bool {
	if i == nil {
		return false
	}
	return HasPermission(i.Role, perm)
}

// HasPermission: admins hold every permission, managers may also write,
// everyone may read.
func HasPermission(role, perm string) bool {
	if role == RoleAdmin {
		return true
	}
	switch perm {
	case PermRead:
		return true
	case PermWrite:
		return role == RoleManager
	default:
		return false
	}
}

type identityKey struct{}

// WithIdentity attaches id to ctx
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity attached to ctx, if any
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// UserID is the uid behind ctx, or SystemUserID for background work
func UserID(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok && id.UID != "" {
		return id.UID
	}
	return SystemUserID
}
