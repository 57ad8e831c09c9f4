package domain

import "time"

type Command interface {
	RoomID() RoomID
}

// SendMessageCommand is the only command the live protocol produces.
// Connection identifies the originating actor so rejections can be
// routed back to it alone.
type SendMessageCommand struct {
	Room       int64
	Sender     Principal
	Ciphertext []byte
	IV         []byte
	Connection string
	ReceivedAt time.Time
}

func (c SendMessageCommand) RoomID() RoomID {
	return RoomID(c.Room)
}
