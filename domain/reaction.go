package domain

import "time"

// Reaction links one emoji from one member to one message.
// The (message, member, emoji) triple is unique.
type Reaction struct {
	Message   MessageID
	Member    MemberID
	Emoji     string
	CreatedAt time.Time
}
