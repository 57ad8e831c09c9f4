package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"hearthchat/domain"
	"hearthchat/domain/event"
	"hearthchat/errors"
	"hearthchat/observability"
)

// fakeStore hands out increasing ids, or fails every write with a
// configured error.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	failWith error
	room     domain.Room
	roomErr  error
}

func (f *fakeStore) Create(_ context.Context, roomID domain.RoomID, sender domain.Principal, ciphertext, iv []byte) (domain.Message, event.SenderInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return domain.Message{}, event.SenderInfo{}, f.failWith
	}
	f.nextID++
	message := domain.Message{
		ID:         domain.MessageID(f.nextID),
		Room:       roomID,
		Sender:     1,
		Ciphertext: ciphertext,
		IV:         iv,
		CreatedAt:  time.Now().UTC(),
	}
	return message, event.SenderInfo{Member: 1, UserID: sender.UserID, Email: sender.Email}, nil
}

func (f *fakeStore) RoomByID(_ context.Context, _ domain.RoomID) (domain.Room, error) {
	return f.room, f.roomErr
}

func TestStoreWriter_Events_Leave_In_Dispatch_Order(t *testing.T) {
	req := require.New(t)
	commands := make(chan domain.Command, 64)
	events := make(chan event.DomainEvent, 64)
	writer := NewStoreWriter(&fakeStore{}, commands, events, observability.NewStats(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = writer.Run(ctx) }()

	// Given fifty commands dispatched in a known order
	for i := 0; i < 50; i++ {
		commands <- domain.SendMessageCommand{
			Room:       1,
			Sender:     domain.Principal{UserID: 101},
			Ciphertext: []byte{byte(i)},
			IV:         []byte{0x00},
			Connection: uuid.NewString(),
		}
	}

	// Then events arrive with strictly increasing ids, in that order
	var lastID domain.MessageID
	for i := 0; i < 50; i++ {
		select {
		case evt := <-events:
			stored, ok := evt.(event.MessageStored)
			req.True(ok)
			req.Greater(stored.Message.ID, lastID)
			req.Equal([]byte{byte(i)}, stored.Message.Ciphertext)
			lastID = stored.Message.ID
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestStoreWriter_Membership_Violation_Becomes_Rejection(t *testing.T) {
	req := require.New(t)
	commands := make(chan domain.Command, 8)
	events := make(chan event.DomainEvent, 8)
	stats := observability.NewStats()
	writer := NewStoreWriter(&fakeStore{failWith: errors.ErrNotAMember}, commands, events, stats, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = writer.Run(ctx) }()

	connection := uuid.NewString()
	commands <- domain.SendMessageCommand{
		Room:       1,
		Sender:     domain.Principal{UserID: 102},
		Ciphertext: []byte{0x01},
		IV:         []byte{0x00},
		Connection: connection,
	}

	select {
	case evt := <-events:
		rejected, ok := evt.(event.SendRejected)
		req.True(ok)
		// The rejection is routed back to the exact origin connection
		req.Equal(connection, rejected.Connection)
		req.Equal("Not a member of this room", rejected.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rejection")
	}
	req.Equal(uint64(1), stats.Snapshot()["rejected_sends"])
}

func TestStoreWriter_Storage_Failure_Becomes_Rejection(t *testing.T) {
	req := require.New(t)
	commands := make(chan domain.Command, 8)
	events := make(chan event.DomainEvent, 8)
	writer := NewStoreWriter(&fakeStore{failWith: errors.ErrRoomNotFound}, commands, events, observability.NewStats(), slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = writer.Run(ctx) }()

	commands <- domain.SendMessageCommand{Room: 99, Connection: "c1", Ciphertext: []byte{0x01}, IV: []byte{0x00}}

	select {
	case evt := <-events:
		rejected, ok := evt.(event.SendRejected)
		req.True(ok)
		req.Equal("Room not found", rejected.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rejection")
	}
}
