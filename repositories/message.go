//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"hearthchat/domain"
	"hearthchat/errors"
)

type IMessageRepository interface {
	Create(record StoredMessage) (StoredMessage, error)
	FindByID(id domain.MessageID) (StoredMessage, error)
	ListByRoom(room domain.RoomID) ([]StoredMessage, error)
	Update(record StoredMessage) error
	Delete(id domain.MessageID) error
	DeleteByRoom(room domain.RoomID) error
	Close() error
}

// StoredMessage is the repository-level representation of a message,
// the exact JSON shape written to disk.
type StoredMessage struct {
	ID         int64      `json:"id"`
	Room       int64      `json:"room"`
	Sender     int64      `json:"sender"`
	Ciphertext []byte     `json:"ciphertext"`
	IV         []byte     `json:"iv"`
	CreatedAt  time.Time  `json:"created_at"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
	IsEdited   bool       `json:"is_edited,omitempty"`
}

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:message"), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// The primary key is "msg:{room_id}:{timestamp_padded}:{id_padded}" to:
//  1. Ensure chronological sorting per room using 19-digit zero padding
//     (lexicographical order).
//  2. Disambiguate two messages persisted at the same nanosecond by id.
//
// A secondary "msgref:{id}" entry points back to the primary key so
// lookups and deletions by id stay O(1).
func primaryKey(room, id int64, at time.Time) []byte {
	return []byte(fmt.Sprintf("msg:%d:%019d:%019d", room, at.UnixNano(), id))
}

func refKey(id int64) []byte {
	return []byte(fmt.Sprintf("msgref:%019d", id))
}

// Create assigns the next message id, stamps the creation time, and
// persists the record in a single atomic write. The id sequence is the
// store's ordering authority for equal timestamps.
func (m *MessageRepository) Create(record StoredMessage) (StoredMessage, error) {
	next, err := m.seq.Next()
	if err != nil {
		return StoredMessage{}, fmt.Errorf("message id allocation: %w", err)
	}
	record.ID = int64(next) + 1
	record.CreatedAt = time.Now().UTC()

	value, err := json.Marshal(record)
	if err != nil {
		return StoredMessage{}, err
	}
	key := primaryKey(record.Room, record.ID, record.CreatedAt)

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(refKey(record.ID), key)
	})
	if err != nil {
		return StoredMessage{}, err
	}
	return record, nil
}

func (m *MessageRepository) FindByID(id domain.MessageID) (StoredMessage, error) {
	var record StoredMessage
	err := m.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get(refKey(int64(id)))
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err == badger.ErrKeyNotFound {
		return StoredMessage{}, errors.ErrMessageNotFound
	}
	return record, err
}

// ListByRoom retrieves every message of a room ordered by creation time
// ascending. Unbounded: family rooms are small by construction.
func (m *MessageRepository) ListByRoom(room domain.RoomID) ([]StoredMessage, error) {
	var records []StoredMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%d:", room))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record StoredMessage
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

// Update rewrites a record in place. The key embeds the original
// creation time, which edits never change.
func (m *MessageRepository) Update(record StoredMessage) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		key := primaryKey(record.Room, record.ID, record.CreatedAt)
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return errors.ErrMessageNotFound
		} else if err != nil {
			return err
		}
		return txn.Set(key, value)
	})
}

func (m *MessageRepository) Delete(id domain.MessageID) error {
	err := m.db.Update(func(txn *badger.Txn) error {
		ref, err := txn.Get(refKey(int64(id)))
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(refKey(int64(id)))
	})
	if err == badger.ErrKeyNotFound {
		return errors.ErrMessageNotFound
	}
	return err
}

// DeleteByRoom drops every message of a room, used by the room-deletion
// cascade.
func (m *MessageRepository) DeleteByRoom(room domain.RoomID) error {
	records, err := m.ListByRoom(room)
	if err != nil {
		return err
	}
	keys := lo.Map(records, func(r StoredMessage, _ int) []byte {
		return primaryKey(r.Room, r.ID, r.CreatedAt)
	})
	return m.db.Update(func(txn *badger.Txn) error {
		for i, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			if err := txn.Delete(refKey(records[i].ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the id sequence so unused ids return to the pool.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}
