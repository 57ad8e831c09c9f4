//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"hearthchat/domain"
	"hearthchat/errors"
)

type IRoomRepository interface {
	Create(room domain.Room) (domain.Room, error)
	FindByID(id domain.RoomID) (domain.Room, error)
	AddMember(id domain.RoomID, member domain.MemberID) (domain.Room, error)
	Delete(id domain.RoomID) error
	Close() error
}

type storedRoom struct {
	ID        int64     `json:"id"`
	Family    int64     `json:"family"`
	Name      string    `json:"name,omitempty"`
	CreatedBy int64     `json:"created_by"`
	Members   []int64   `json:"members"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RoomRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewRoomRepository(db *badger.DB) (*RoomRepository, error) {
	seq, err := db.GetSequence([]byte("seq:room"), 16)
	if err != nil {
		return nil, fmt.Errorf("room sequence: %w", err)
	}
	return &RoomRepository{db: db, seq: seq}, nil
}

func roomKey(id int64) []byte {
	return []byte(fmt.Sprintf("room:%019d", id))
}

// Create persists a new room. The creator is forced into the member set
// regardless of what the caller passed.
func (r *RoomRepository) Create(room domain.Room) (domain.Room, error) {
	next, err := r.seq.Next()
	if err != nil {
		return domain.Room{}, fmt.Errorf("room id allocation: %w", err)
	}
	room.ID = domain.RoomID(next + 1)
	room.CreatedAt = time.Now().UTC()
	room.UpdatedAt = room.CreatedAt
	if !room.HasMember(room.CreatedBy) {
		room.Members = append(room.Members, room.CreatedBy)
	}

	value, err := json.Marshal(toStoredRoom(room))
	if err != nil {
		return domain.Room{}, err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(int64(room.ID)), value)
	})
	return room, err
}

func (r *RoomRepository) FindByID(id domain.RoomID) (domain.Room, error) {
	var stored storedRoom
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(int64(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return fromStoredRoom(stored), nil
}

// AddMember appends a member inside a single read-modify-write
// transaction; concurrent joins of the same room cannot lose updates.
func (r *RoomRepository) AddMember(id domain.RoomID, member domain.MemberID) (domain.Room, error) {
	var updated domain.Room
	err := r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(int64(id)))
		if err == badger.ErrKeyNotFound {
			return errors.ErrRoomNotFound
		}
		if err != nil {
			return err
		}
		var stored storedRoom
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &stored) }); err != nil {
			return err
		}
		room := fromStoredRoom(stored)
		if !room.HasMember(member) {
			room.Members = append(room.Members, member)
			room.UpdatedAt = time.Now().UTC()
		}
		value, err := json.Marshal(toStoredRoom(room))
		if err != nil {
			return err
		}
		updated = room
		return txn.Set(roomKey(int64(id)), value)
	})
	return updated, err
}

func (r *RoomRepository) Delete(id domain.RoomID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(int64(id))); err != nil {
			return err
		}
		return txn.Delete(roomKey(int64(id)))
	})
	if err == badger.ErrKeyNotFound {
		return errors.ErrRoomNotFound
	}
	return err
}

func (r *RoomRepository) Close() error {
	return r.seq.Release()
}

func toStoredRoom(room domain.Room) storedRoom {
	return storedRoom{
		ID:        int64(room.ID),
		Family:    int64(room.FamilyID),
		Name:      room.Name,
		CreatedBy: int64(room.CreatedBy),
		Members:   lo.Map(room.Members, func(m domain.MemberID, _ int) int64 { return int64(m) }),
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func fromStoredRoom(stored storedRoom) domain.Room {
	return domain.Room{
		ID:        domain.RoomID(stored.ID),
		FamilyID:  domain.FamilyID(stored.Family),
		Name:      stored.Name,
		CreatedBy: domain.MemberID(stored.CreatedBy),
		Members:   lo.Map(stored.Members, func(m int64, _ int) domain.MemberID { return domain.MemberID(m) }),
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}
}
