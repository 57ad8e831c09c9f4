package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hearthchat/directory"
	"hearthchat/domain"
	"hearthchat/domain/event"
	"hearthchat/observability"
	"hearthchat/runtime/workers"
)

type stubStore struct{}

func (stubStore) Create(_ context.Context, roomID domain.RoomID, sender domain.Principal, ciphertext, iv []byte) (domain.Message, event.SenderInfo, error) {
	return domain.Message{ID: 1, Room: roomID, Ciphertext: ciphertext, IV: iv, CreatedAt: time.Now().UTC()},
		event.SenderInfo{UserID: sender.UserID}, nil
}

func (stubStore) RoomByID(_ context.Context, roomID domain.RoomID) (domain.Room, error) {
	return domain.Room{ID: roomID, FamilyID: 1}, nil
}

func newTestOrchestrator(bufferSize int) *Orchestrator {
	log := slog.Default()
	return NewOrchestrator(
		log,
		workers.NewSupervisor(log, 10*time.Millisecond),
		NewRegistry(),
		NewNotifier(log),
		directory.NewMemory(),
		stubStore{},
		observability.NewStats(),
		bufferSize,
		time.Second,
	)
}

func TestOrchestrator_Dispatch_Reports_Saturation(t *testing.T) {
	req := require.New(t)
	// Given a pipeline with room for a single queued command and no
	// running workers to drain it
	orchestrator := newTestOrchestrator(1)

	cmd := domain.SendMessageCommand{Room: 1, Connection: "c1"}
	req.True(orchestrator.Dispatch(cmd))
	req.False(orchestrator.Dispatch(cmd), "a full pipeline refuses instead of blocking")
}

func TestOrchestrator_Register_And_Unregister_Participant(t *testing.T) {
	req := require.New(t)
	orchestrator := newTestOrchestrator(8)
	sink := Sink{}

	orchestrator.RegisterParticipant("conn-1", 1, sink)
	req.Len(orchestrator.registry.GetSinksForRoom(1), 1)

	orchestrator.UnregisterParticipant("conn-1", 1)
	req.Empty(orchestrator.registry.GetSinksForRoom(1))
}

func TestOrchestrator_Start_Runs_Pipeline_End_To_End(t *testing.T) {
	req := require.New(t)
	orchestrator := newTestOrchestrator(8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orchestrator.Start(ctx, time.Minute)
	defer orchestrator.Stop()

	// Given a subscribed connection
	sink := &recordingSink{}
	orchestrator.RegisterParticipant("conn-1", 1, sink)

	// When a command is dispatched
	req.True(orchestrator.Dispatch(domain.SendMessageCommand{
		Room:       1,
		Sender:     domain.Principal{UserID: 101},
		Ciphertext: []byte{0x01},
		IV:         []byte{0x02},
		Connection: "conn-1",
	}))

	// Then the stored event flows back to the room's sink
	req.Eventually(func() bool { return len(sink.Events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	stored, ok := sink.Events()[0].(event.MessageStored)
	req.True(ok)
	req.Equal([]byte{0x01}, stored.Message.Ciphertext)

	// And the timeline observed it too
	req.Eventually(func() bool { return len(orchestrator.Timeline().Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	req.Equal(domain.MessageID(1), orchestrator.Timeline().Messages()[0].ID)
}
