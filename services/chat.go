package services

import (
	"context"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/runtime"
)

type IChatService interface {
	JoinRoom(ctx context.Context, principal domain.Principal, roomID domain.RoomID, connectionID string, sink contract.EventSink) (bool, error)
	LeaveRoom(connectionID string, roomID domain.RoomID)
	Send(cmd domain.SendMessageCommand) bool
	AttachNotifications(userID domain.UserID, connectionID string, sink contract.EventSink)
	DetachNotifications(userID domain.UserID, connectionID string)
}

// ChatService is the single surface the transport layer talks to:
// access decisions, room subscription, and command dispatch.
type ChatService struct {
	orchestrator *runtime.Orchestrator
	guard        *AccessGuard
}

func NewChatService(o *runtime.Orchestrator, guard *AccessGuard) *ChatService {
	return &ChatService{orchestrator: o, guard: guard}
}

// JoinRoom subscribes a connection to the room's broadcast group when
// the principal passes the access check. The boolean is the access
// decision; the error reports infrastructure failures only.
func (s *ChatService) JoinRoom(ctx context.Context, principal domain.Principal, roomID domain.RoomID, connectionID string, sink contract.EventSink) (bool, error) {
	allowed, err := s.guard.CanJoin(ctx, principal, roomID)
	if err != nil || !allowed {
		return false, err
	}
	s.orchestrator.RegisterParticipant(connectionID, roomID, sink)
	return true, nil
}

func (s *ChatService) LeaveRoom(connectionID string, roomID domain.RoomID) {
	s.orchestrator.UnregisterParticipant(connectionID, roomID)
}

// Send queues a message command onto the persistence pipeline. Returns
// false when the pipeline is saturated.
func (s *ChatService) Send(cmd domain.SendMessageCommand) bool {
	return s.orchestrator.Dispatch(cmd)
}

func (s *ChatService) AttachNotifications(userID domain.UserID, connectionID string, sink contract.EventSink) {
	s.orchestrator.AttachNotifications(userID, connectionID, sink)
}

func (s *ChatService) DetachNotifications(userID domain.UserID, connectionID string) {
	s.orchestrator.DetachNotifications(userID, connectionID)
}
