// Package domain contains core concepts of the family messaging system.
// No runtime, network, or storage logic should be added here.
package domain

import "time"

type RoomID int64

// Room is a persistent conversation owned by exactly one family.
// Members always hold member ids of the owning family; the creator is
// part of the member set from creation.
type Room struct {
	ID        RoomID
	FamilyID  FamilyID
	Name      string
	CreatedBy MemberID
	Members   []MemberID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Room) HasMember(id MemberID) bool {
	for _, m := range r.Members {
		if m == id {
			return true
		}
	}
	return false
}
