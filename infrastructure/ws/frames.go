package ws

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"hearthchat/domain/event"
	"hearthchat/errors"
)

var validate = validator.New()

// inboundFrame is what a client writes on a room connection. Payloads
// stay opaque: ciphertext and iv are base64 strings decoded to raw
// bytes and never inspected further.
type inboundFrame struct {
	Type       string `json:"type"`
	Ciphertext string `json:"ciphertext" validate:"required,base64"`
	IV         string `json:"iv" validate:"required,base64"`
}

type messageFrame struct {
	Type           string  `json:"type"`
	ID             int64   `json:"id"`
	Room           int64   `json:"room"`
	Ciphertext     string  `json:"ciphertext"`
	IV             string  `json:"iv"`
	Sender         int64   `json:"sender"`
	SenderEmail    string  `json:"sender_email"`
	SenderUsername string  `json:"sender_username"`
	SenderPhotoURL *string `json:"sender_photo_url"`
	CreatedAt      string  `json:"created_at"`
	IsEdited       bool    `json:"is_edited,omitempty"`
}

type notificationFrame struct {
	Type           string `json:"type"`
	RoomID         int64  `json:"room_id"`
	MessageID      int64  `json:"message_id"`
	Sender         int64  `json:"sender"`
	SenderEmail    string `json:"sender_email"`
	SenderUsername string `json:"sender_username"`
	CreatedAt      string `json:"created_at"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// decodeInbound parses and validates one client frame. A missing type
// defaults to "message"; anything else is unsupported.
func decodeInbound(raw []byte) (ciphertext, iv []byte, err error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, nil, errors.ErrInvalidJSON
	}
	if frame.Type != "" && frame.Type != "message" {
		return nil, nil, errors.ErrUnsupportedFrame
	}
	if err := validate.Struct(frame); err != nil {
		return nil, nil, errors.ErrInvalidPayload
	}
	ciphertext, err = base64.StdEncoding.DecodeString(frame.Ciphertext)
	if err != nil {
		return nil, nil, errors.ErrInvalidPayload
	}
	iv, err = base64.StdEncoding.DecodeString(frame.IV)
	if err != nil {
		return nil, nil, errors.ErrInvalidPayload
	}
	return ciphertext, iv, nil
}

// encodeEvent renders a domain event as the wire frame its channel
// expects. Stored payload bytes are re-encoded to base64, so a client
// reading the broadcast sees the exact bytes that were persisted.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.MessageStored:
		return json.Marshal(messageFrame{
			Type:           "message",
			ID:             int64(evt.Message.ID),
			Room:           int64(evt.Message.Room),
			Ciphertext:     base64.StdEncoding.EncodeToString(evt.Message.Ciphertext),
			IV:             base64.StdEncoding.EncodeToString(evt.Message.IV),
			Sender:         int64(evt.Sender.Member),
			SenderEmail:    evt.Sender.Email,
			SenderUsername: evt.Sender.Username,
			SenderPhotoURL: evt.Sender.PhotoURL,
			CreatedAt:      evt.Message.CreatedAt.Format(time.RFC3339Nano),
			IsEdited:       evt.Message.IsEdited,
		})
	case event.RoomNotification:
		return json.Marshal(notificationFrame{
			Type:           "room_message",
			RoomID:         int64(evt.Room),
			MessageID:      int64(evt.MessageID),
			Sender:         int64(evt.Sender.Member),
			SenderEmail:    evt.Sender.Email,
			SenderUsername: evt.Sender.Username,
			CreatedAt:      evt.At.Format(time.RFC3339Nano),
		})
	case event.SendRejected:
		return json.Marshal(errorFrame{Type: "error", Message: evt.Reason})
	default:
		return nil, fmt.Errorf("no frame for event %T", e)
	}
}

func encodeError(message string) []byte {
	raw, _ := json.Marshal(errorFrame{Type: "error", Message: message})
	return raw
}
