package domain

import "time"

type (
	FamilyID int64
	MemberID int64
	UserID   int64
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleChild  Role = "child"
)

// Member is the Directory Service's view of a (family, user) pairing.
// This core reads it but never writes it.
type Member struct {
	ID       MemberID
	FamilyID FamilyID
	UserID   UserID
	Role     Role
	IsActive bool
	JoinedAt time.Time
}

// IsAdmin reports whether the member can act on other members' content.
func (m Member) IsAdmin() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// Profile is the Profile Service's view of a user: what other room
// members see next to a message.
type Profile struct {
	DisplayName string
	PhotoURL    *string
}
