package domain

// Role описывает права автора команды на сервере.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// ResolveRole определяет роль: владелец бота важнее администратора сервера.
func ResolveRole(authorID, ownerID string, isAdmin bool) Role {
	if ownerID != "" && authorID == ownerID {
		return RoleOwner
	}
	if isAdmin {
		return RoleAdmin
	}
	return RoleMember
}

// CanChangePrefix сообщает, может ли роль менять префикс сервера.
func (r Role) CanChangePrefix() bool {
	return r == RoleOwner || r == RoleAdmin
}

// BypassesRecsCooldown сообщает, что роль не ограничена кулдауном построения списков.
func (r Role) BypassesRecsCooldown() bool {
	return r == RoleOwner
}
