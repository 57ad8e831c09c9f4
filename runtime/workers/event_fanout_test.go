package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hearthchat/contract"
	"hearthchat/directory"
	"hearthchat/domain"
	"hearthchat/domain/event"
	"hearthchat/observability"
)

type recordingSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (s *recordingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Events() []event.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.DomainEvent, len(s.events))
	copy(out, s.events)
	return out
}

type fakeRegistry struct {
	sinks map[string]contract.EventSink
	rooms map[domain.RoomID][]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		sinks: make(map[string]contract.EventSink),
		rooms: make(map[domain.RoomID][]string),
	}
}

func (r *fakeRegistry) GetSinksForRoom(roomID domain.RoomID) []contract.EventSink {
	var out []contract.EventSink
	for _, id := range r.rooms[roomID] {
		out = append(out, r.sinks[id])
	}
	return out
}

func (r *fakeRegistry) SinkFor(participantID string) (contract.EventSink, bool) {
	sink, ok := r.sinks[participantID]
	return sink, ok
}

func (r *fakeRegistry) Subscribe(participantID string, roomID domain.RoomID, sink contract.EventSink) {
	r.sinks[participantID] = sink
	r.rooms[roomID] = append(r.rooms[roomID], participantID)
}

func (r *fakeRegistry) Unsubscribe(participantID string, roomID domain.RoomID) {}

type notified struct {
	user domain.UserID
	evt  event.DomainEvent
}

type fakeNotifier struct {
	mu      sync.Mutex
	records []notified
}

func (n *fakeNotifier) Attach(domain.UserID, string, contract.EventSink) {}
func (n *fakeNotifier) Detach(domain.UserID, string)                    {}

func (n *fakeNotifier) Publish(_ context.Context, userID domain.UserID, e event.DomainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, notified{user: userID, evt: e})
}

func (n *fakeNotifier) Records() []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notified, len(n.records))
	copy(out, n.records)
	return out
}

type fanoutFixture struct {
	registry *fakeRegistry
	notifier *fakeNotifier
	observer *recordingSink
	events   chan event.DomainEvent
	cancel   context.CancelFunc
}

// newFanoutFixture stages family 1 with three users: Alice (member 1)
// and Bob (member 2) in the room, Carol (member 3) in the family but
// off the room's member list.
func newFanoutFixture(t *testing.T) fanoutFixture {
	t.Helper()

	dir := directory.NewMemory()
	dir.AddMember(domain.Member{ID: 1, FamilyID: 1, UserID: 101, Role: domain.RoleOwner, IsActive: true})
	dir.AddMember(domain.Member{ID: 2, FamilyID: 1, UserID: 102, Role: domain.RoleMember, IsActive: true})
	dir.AddMember(domain.Member{ID: 3, FamilyID: 1, UserID: 103, Role: domain.RoleMember, IsActive: true})

	store := &fakeStore{room: domain.Room{
		ID:       1,
		FamilyID: 1,
		Members:  []domain.MemberID{1, 2},
	}}

	registry := newFakeRegistry()
	notifier := &fakeNotifier{}
	observer := &recordingSink{}
	events := make(chan event.DomainEvent, 16)
	fanout := NewEventFanout(registry, notifier, dir, store,
		[]contract.EventSink{observer}, events,
		observability.NewStats(), time.Second, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = fanout.Run(ctx) }()
	t.Cleanup(cancel)

	return fanoutFixture{registry: registry, notifier: notifier, observer: observer, events: events, cancel: cancel}
}

func storedEvent(id int64, senderUser domain.UserID, senderMember domain.MemberID) event.MessageStored {
	return event.MessageStored{
		Message: domain.Message{
			ID:         domain.MessageID(id),
			Room:       1,
			Sender:     senderMember,
			Ciphertext: []byte{0x01},
			IV:         []byte{0x02},
			CreatedAt:  time.Now().UTC(),
		},
		Sender: event.SenderInfo{Member: senderMember, UserID: senderUser},
	}
}

func eventually(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func TestEventFanout_Broadcast_Includes_Sender_Connection(t *testing.T) {
	req := require.New(t)
	f := newFanoutFixture(t)

	aliceConn := &recordingSink{}
	bobConn := &recordingSink{}
	f.registry.Subscribe("alice-conn", 1, aliceConn)
	f.registry.Subscribe("bob-conn", 1, bobConn)

	f.events <- storedEvent(1, 101, 1)

	// Every room subscriber receives the broadcast, Alice's own
	// connection included
	eventually(t, func() bool { return len(bobConn.Events()) == 1 })
	eventually(t, func() bool { return len(aliceConn.Events()) == 1 })
	req.IsType(event.MessageStored{}, aliceConn.Events()[0])
}

func TestEventFanout_Notifies_Other_Room_Members_Only(t *testing.T) {
	req := require.New(t)
	f := newFanoutFixture(t)

	f.events <- storedEvent(1, 101, 1)

	// Bob (user 102) is in the room: notified. Alice is the sender and
	// Carol is off the room list: neither is notified.
	eventually(t, func() bool { return len(f.notifier.Records()) == 1 })
	records := f.notifier.Records()
	req.Equal(domain.UserID(102), records[0].user)

	notification, ok := records[0].evt.(event.RoomNotification)
	req.True(ok)
	req.Equal(domain.MessageID(1), notification.MessageID)
}

func TestEventFanout_Observers_See_Every_Stored_Message(t *testing.T) {
	req := require.New(t)
	f := newFanoutFixture(t)

	// No room subscribers at all: observers still receive the event.
	f.events <- storedEvent(1, 101, 1)
	f.events <- storedEvent(2, 102, 2)

	eventually(t, func() bool { return len(f.observer.Events()) == 2 })
	first, ok := f.observer.Events()[0].(event.MessageStored)
	req.True(ok)
	req.Equal(domain.MessageID(1), first.Message.ID)

	// Rejections are connection-scoped and never reach observers.
	f.events <- event.SendRejected{Room: 1, Connection: "nobody", Reason: "Room not found"}
	time.Sleep(50 * time.Millisecond)
	req.Len(f.observer.Events(), 2)
}

func TestEventFanout_Rejection_Reaches_Origin_Only(t *testing.T) {
	req := require.New(t)
	f := newFanoutFixture(t)

	origin := &recordingSink{}
	bystander := &recordingSink{}
	f.registry.Subscribe("origin-conn", 1, origin)
	f.registry.Subscribe("bystander-conn", 1, bystander)

	f.events <- event.SendRejected{Room: 1, Connection: "origin-conn", Reason: "Not a member of this room"}

	eventually(t, func() bool { return len(origin.Events()) == 1 })
	rejected, ok := origin.Events()[0].(event.SendRejected)
	req.True(ok)
	req.Equal("Not a member of this room", rejected.Reason)
	req.Empty(bystander.Events())
}
