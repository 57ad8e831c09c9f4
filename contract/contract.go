//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"hearthchat/domain"
	"hearthchat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the room broadcast group: every sink subscribed to a room
// receives every event published to that room.
type IRegistry interface {
	GetSinksForRoom(roomID domain.RoomID) []EventSink
	SinkFor(participantID string) (EventSink, bool)
	Subscribe(participantID string, roomID domain.RoomID, sink EventSink)
	Unsubscribe(participantID string, roomID domain.RoomID)
}

// INotifier is the per-user broadcast group for cross-room notifications.
// Delivery is best-effort and at-most-once: users with no active
// notification connection simply miss the event.
type INotifier interface {
	Attach(userID domain.UserID, connectionID string, sink EventSink)
	Detach(userID domain.UserID, connectionID string)
	Publish(ctx context.Context, userID domain.UserID, e event.DomainEvent)
}

// IMessageStore is the persistence boundary the runtime writes through.
// Create re-checks membership at write time; the connection-time check
// is never trusted.
type IMessageStore interface {
	Create(ctx context.Context, roomID domain.RoomID, sender domain.Principal, ciphertext, iv []byte) (domain.Message, event.SenderInfo, error)
	RoomByID(ctx context.Context, roomID domain.RoomID) (domain.Room, error)
}

// IDirectory abstracts the external Directory and Profile services.
// This core only reads: families, members, roles, and display profiles
// are owned elsewhere.
type IDirectory interface {
	UserByID(ctx context.Context, id domain.UserID) (domain.Principal, error)
	ActiveMembers(ctx context.Context, familyID domain.FamilyID) ([]domain.Member, error)
	MemberOf(ctx context.Context, familyID domain.FamilyID, userID domain.UserID) (domain.Member, error)
	Profile(ctx context.Context, id domain.UserID) (domain.Profile, error)
}
