package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrRoomNotFound     = fmt.Errorf("room not found")
	ErrMessageNotFound  = fmt.Errorf("message not found")
	ErrNotAMember       = fmt.Errorf("sender is not a member of the room")
	ErrForbidden        = fmt.Errorf("operation not allowed for this member")
	ErrReactionExists   = fmt.Errorf("reaction already exists")
	ErrReactionNotFound = fmt.Errorf("reaction not found")
	ErrInvalidPayload   = fmt.Errorf("invalid message payload")
	ErrInvalidJSON      = fmt.Errorf("frame is not valid json")
	ErrUnsupportedFrame = fmt.Errorf("unsupported message type")
	ErrUserNotFound     = fmt.Errorf("user not found")
)
