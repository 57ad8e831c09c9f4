package services

import (
	"context"
	stderrors "errors"
	"log/slog"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/errors"
	"hearthchat/repositories"
)

// AccessGuard decides whether a principal may join or send to a room.
//
// The check is deliberately tenant-level: "is this user an active
// member of the family that owns the room", not "is this user on the
// room's member list". Room member sets are seeded from family members
// at creation, so the original system gates on family membership and
// uses the room list only for notification fan-out. Tightening this to
// room-level would be an observable behavior change; the write path in
// MessageStore is where room-level membership is enforced.
type AccessGuard struct {
	rooms     repositories.IRoomRepository
	directory contract.IDirectory
	log       *slog.Logger
}

func NewAccessGuard(rooms repositories.IRoomRepository, directory contract.IDirectory, log *slog.Logger) *AccessGuard {
	return &AccessGuard{rooms: rooms, directory: directory, log: log}
}

// CanJoin reports whether the principal may subscribe to the room.
// The returned error is non-nil only for infrastructure failures;
// "no" answers (unknown room, not a family member) are (false, nil).
func (g *AccessGuard) CanJoin(ctx context.Context, principal domain.Principal, roomID domain.RoomID) (bool, error) {
	if principal.IsAnonymous() {
		return false, nil
	}
	room, err := g.rooms.FindByID(roomID)
	if stderrors.Is(err, errors.ErrRoomNotFound) {
		g.log.Debug("Join refused: room does not exist", "room_id", roomID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = g.directory.MemberOf(ctx, room.FamilyID, principal.UserID)
	if stderrors.Is(err, errors.ErrNotAMember) {
		g.log.Debug("Join refused: not a family member",
			"user_id", principal.UserID, "room_id", roomID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CanSend re-evaluates the same tenant-level check per outbound message:
// membership can change between connect time and send time.
func (g *AccessGuard) CanSend(ctx context.Context, principal domain.Principal, roomID domain.RoomID) (bool, error) {
	return g.CanJoin(ctx, principal, roomID)
}
