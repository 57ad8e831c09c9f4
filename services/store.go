package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"hearthchat/contract"
	"hearthchat/domain"
	"hearthchat/domain/event"
	"hearthchat/errors"
	"hearthchat/repositories"
)

var _ contract.IMessageStore = (*MessageStore)(nil)

// MessageStore owns durable persistence of rooms, encrypted messages,
// and reactions, and the referential integrity between them. It never
// decrypts or inspects payloads.
type MessageStore struct {
	messages  repositories.IMessageRepository
	rooms     repositories.IRoomRepository
	reactions repositories.IReactionRepository
	directory contract.IDirectory
	log       *slog.Logger
}

func NewMessageStore(
	messages repositories.IMessageRepository,
	rooms repositories.IRoomRepository,
	reactions repositories.IReactionRepository,
	directory contract.IDirectory,
	log *slog.Logger) *MessageStore {
	return &MessageStore{
		messages:  messages,
		rooms:     rooms,
		reactions: reactions,
		directory: directory,
		log:       log,
	}
}

// Create persists one message. The sender must be, at write time, an
// active member of the owning family AND on the room's member list.
// The connection-time check is not trusted, closing the race where
// membership is revoked mid-session. Violations return ErrNotAMember,
// distinct from ordinary validation errors.
func (s *MessageStore) Create(ctx context.Context, roomID domain.RoomID, sender domain.Principal, ciphertext, iv []byte) (domain.Message, event.SenderInfo, error) {
	room, err := s.rooms.FindByID(roomID)
	if err != nil {
		return domain.Message{}, event.SenderInfo{}, err
	}

	member, err := s.directory.MemberOf(ctx, room.FamilyID, sender.UserID)
	if err != nil {
		return domain.Message{}, event.SenderInfo{}, err
	}
	if !room.HasMember(member.ID) {
		return domain.Message{}, event.SenderInfo{}, errors.ErrNotAMember
	}

	record, err := s.messages.Create(repositories.StoredMessage{
		Room:       int64(roomID),
		Sender:     int64(member.ID),
		Ciphertext: ciphertext,
		IV:         iv,
	})
	if err != nil {
		return domain.Message{}, event.SenderInfo{}, err
	}

	return fromStoredMessage(record), s.senderInfo(ctx, member, sender), nil
}

// senderInfo hydrates the identity shown next to a message. Profile
// lookups are cosmetic: on failure the email stands in for the display
// name, never failing a message that is already persisted.
func (s *MessageStore) senderInfo(ctx context.Context, member domain.Member, sender domain.Principal) event.SenderInfo {
	info := event.SenderInfo{
		Member:   member.ID,
		UserID:   sender.UserID,
		Email:    sender.Email,
		Username: sender.Email,
	}
	profile, err := s.directory.Profile(ctx, sender.UserID)
	if err != nil {
		s.log.Debug("Profile lookup failed, falling back to email", "user_id", sender.UserID, "error", err)
		return info
	}
	if profile.DisplayName != "" {
		info.Username = profile.DisplayName
	}
	info.PhotoURL = profile.PhotoURL
	return info
}

// ListByRoom returns a room's messages ordered by creation time ascending.
func (s *MessageStore) ListByRoom(roomID domain.RoomID) ([]domain.Message, error) {
	records, err := s.messages.ListByRoom(roomID)
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(r repositories.StoredMessage, _ int) domain.Message {
		return fromStoredMessage(r)
	}), nil
}

// Delete removes a message. Only the original sender or a family
// admin/owner may delete; reactions cascade.
func (s *MessageStore) Delete(ctx context.Context, id domain.MessageID, requester domain.Principal) error {
	record, err := s.messages.FindByID(id)
	if err != nil {
		return err
	}
	room, err := s.rooms.FindByID(domain.RoomID(record.Room))
	if err != nil {
		return err
	}
	member, err := s.directory.MemberOf(ctx, room.FamilyID, requester.UserID)
	if err != nil {
		return err
	}
	if domain.MemberID(record.Sender) != member.ID && !member.IsAdmin() {
		return errors.ErrForbidden
	}
	if err := s.reactions.DeleteByMessage(id); err != nil {
		return err
	}
	return s.messages.Delete(id)
}

// Edit replaces the opaque payload of a message. Only the original
// sender may edit; the edited flag and timestamp are stamped here.
func (s *MessageStore) Edit(ctx context.Context, id domain.MessageID, requester domain.Principal, ciphertext, iv []byte) (domain.Message, error) {
	record, err := s.messages.FindByID(id)
	if err != nil {
		return domain.Message{}, err
	}
	room, err := s.rooms.FindByID(domain.RoomID(record.Room))
	if err != nil {
		return domain.Message{}, err
	}
	member, err := s.directory.MemberOf(ctx, room.FamilyID, requester.UserID)
	if err != nil {
		return domain.Message{}, err
	}
	if domain.MemberID(record.Sender) != member.ID {
		return domain.Message{}, errors.ErrForbidden
	}

	now := time.Now().UTC()
	record.Ciphertext = ciphertext
	record.IV = iv
	record.EditedAt = &now
	record.IsEdited = true
	if err := s.messages.Update(record); err != nil {
		return domain.Message{}, err
	}
	return fromStoredMessage(record), nil
}

// RoomByID exposes room lookups to the fan-out path.
func (s *MessageStore) RoomByID(_ context.Context, roomID domain.RoomID) (domain.Room, error) {
	return s.rooms.FindByID(roomID)
}

// CreateRoom persists a new room for a family. Every listed member must
// be an active member of the owning family; the creator is always part
// of the member set whether listed or not.
func (s *MessageStore) CreateRoom(ctx context.Context, familyID domain.FamilyID, name string, creator domain.Principal, members []domain.MemberID) (domain.Room, error) {
	creatorMember, err := s.directory.MemberOf(ctx, familyID, creator.UserID)
	if err != nil {
		return domain.Room{}, err
	}
	active, err := s.directory.ActiveMembers(ctx, familyID)
	if err != nil {
		return domain.Room{}, err
	}
	activeIDs := lo.SliceToMap(active, func(m domain.Member) (domain.MemberID, struct{}) {
		return m.ID, struct{}{}
	})
	for _, member := range members {
		if _, ok := activeIDs[member]; !ok {
			return domain.Room{}, errors.ErrNotAMember
		}
	}

	return s.rooms.Create(domain.Room{
		FamilyID:  familyID,
		Name:      name,
		CreatedBy: creatorMember.ID,
		Members:   members,
	})
}

// AddRoomMember appends a family member to a room's member set.
func (s *MessageStore) AddRoomMember(ctx context.Context, roomID domain.RoomID, requester domain.Principal, newMember domain.MemberID) (domain.Room, error) {
	room, err := s.rooms.FindByID(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if _, err := s.directory.MemberOf(ctx, room.FamilyID, requester.UserID); err != nil {
		return domain.Room{}, err
	}
	active, err := s.directory.ActiveMembers(ctx, room.FamilyID)
	if err != nil {
		return domain.Room{}, err
	}
	if !lo.ContainsBy(active, func(m domain.Member) bool { return m.ID == newMember }) {
		return domain.Room{}, errors.ErrNotAMember
	}
	return s.rooms.AddMember(roomID, newMember)
}

// DeleteRoom removes a room and cascades to its messages and their
// reactions. Allowed for the creator or a family admin/owner.
func (s *MessageStore) DeleteRoom(ctx context.Context, roomID domain.RoomID, requester domain.Principal) error {
	room, err := s.rooms.FindByID(roomID)
	if err != nil {
		return err
	}
	member, err := s.directory.MemberOf(ctx, room.FamilyID, requester.UserID)
	if err != nil {
		return err
	}
	if room.CreatedBy != member.ID && !member.IsAdmin() {
		return errors.ErrForbidden
	}

	records, err := s.messages.ListByRoom(roomID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := s.reactions.DeleteByMessage(domain.MessageID(record.ID)); err != nil {
			return err
		}
	}
	if err := s.messages.DeleteByRoom(roomID); err != nil {
		return err
	}
	return s.rooms.Delete(roomID)
}

// AddReaction records a (message, member, emoji) triple. Applying the
// same emoji twice returns ErrReactionExists.
func (s *MessageStore) AddReaction(ctx context.Context, messageID domain.MessageID, requester domain.Principal, emoji string) (domain.Reaction, error) {
	member, err := s.memberForMessage(ctx, messageID, requester)
	if err != nil {
		return domain.Reaction{}, err
	}
	return s.reactions.Add(domain.Reaction{
		Message: messageID,
		Member:  member.ID,
		Emoji:   emoji,
	})
}

func (s *MessageStore) RemoveReaction(ctx context.Context, messageID domain.MessageID, requester domain.Principal, emoji string) error {
	member, err := s.memberForMessage(ctx, messageID, requester)
	if err != nil {
		return err
	}
	return s.reactions.Remove(messageID, member.ID, emoji)
}

func (s *MessageStore) ListReactions(messageID domain.MessageID) ([]domain.Reaction, error) {
	return s.reactions.ListByMessage(messageID)
}

func (s *MessageStore) memberForMessage(ctx context.Context, messageID domain.MessageID, requester domain.Principal) (domain.Member, error) {
	record, err := s.messages.FindByID(messageID)
	if err != nil {
		return domain.Member{}, err
	}
	room, err := s.rooms.FindByID(domain.RoomID(record.Room))
	if err != nil {
		return domain.Member{}, err
	}
	return s.directory.MemberOf(ctx, room.FamilyID, requester.UserID)
}

func fromStoredMessage(r repositories.StoredMessage) domain.Message {
	return domain.Message{
		ID:         domain.MessageID(r.ID),
		Room:       domain.RoomID(r.Room),
		Sender:     domain.MemberID(r.Sender),
		Ciphertext: r.Ciphertext,
		IV:         r.IV,
		CreatedAt:  r.CreatedAt,
		EditedAt:   r.EditedAt,
		IsEdited:   r.IsEdited,
	}
}
