package domain

import "time"

type MessageID int64

// Message is an opaque encrypted payload plus routing metadata.
// Ciphertext and IV are client-produced bytes; the server never
// decrypts or inspects them.
type Message struct {
	ID         MessageID
	Room       RoomID
	Sender     MemberID
	Ciphertext []byte
	IV         []byte
	CreatedAt  time.Time
	EditedAt   *time.Time
	IsEdited   bool
}
