package event

import (
	"time"

	"hearthchat/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
}

// SenderInfo is the hydrated identity attached to outbound frames:
// member id plus whatever the Profile Service knows about the user.
type SenderInfo struct {
	Member   domain.MemberID
	UserID   domain.UserID
	Email    string
	Username string
	PhotoURL *string
}

// MessageStored is emitted once a message has been durably persisted.
// Order of these events is the order of persistence.
type MessageStored struct {
	Message domain.Message
	Sender  SenderInfo
}

func (m MessageStored) RoomID() domain.RoomID {
	return m.Message.Room
}

// RoomNotification is the lightweight cross-room event delivered to the
// notification channel of every room member except the sender. It never
// carries ciphertext.
type RoomNotification struct {
	Room      domain.RoomID
	MessageID domain.MessageID
	Sender    SenderInfo
	At        time.Time
}

func (n RoomNotification) RoomID() domain.RoomID {
	return n.Room
}

// SendRejected is routed back to the originating connection only.
type SendRejected struct {
	Room       domain.RoomID
	Connection string
	Reason     string
}

func (r SendRejected) RoomID() domain.RoomID {
	return r.Room
}
