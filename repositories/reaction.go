//go:generate go run go.uber.org/mock/mockgen -source=reaction.go -destination=../mocks/mock_reaction_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"hearthchat/domain"
	"hearthchat/errors"
)

type IReactionRepository interface {
	Add(reaction domain.Reaction) (domain.Reaction, error)
	Remove(message domain.MessageID, member domain.MemberID, emoji string) error
	ListByMessage(message domain.MessageID) ([]domain.Reaction, error)
	DeleteByMessage(message domain.MessageID) error
}

type storedReaction struct {
	Message   int64     `json:"message"`
	Member    int64     `json:"member"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type ReactionRepository struct {
	db *badger.DB
}

func NewReactionRepository(db *badger.DB) *ReactionRepository {
	return &ReactionRepository{db: db}
}

// The key embeds the whole (message, member, emoji) triple, so the
// store's uniqueness invariant is the key space itself.
func reactionKey(message, member int64, emoji string) []byte {
	return []byte(fmt.Sprintf("react:%019d:%019d:%s", message, member, emoji))
}

func (r *ReactionRepository) Add(reaction domain.Reaction) (domain.Reaction, error) {
	reaction.CreatedAt = time.Now().UTC()
	key := reactionKey(int64(reaction.Message), int64(reaction.Member), reaction.Emoji)
	value, err := json.Marshal(storedReaction{
		Message:   int64(reaction.Message),
		Member:    int64(reaction.Member),
		Emoji:     reaction.Emoji,
		CreatedAt: reaction.CreatedAt,
	})
	if err != nil {
		return domain.Reaction{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return errors.ErrReactionExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return domain.Reaction{}, err
	}
	return reaction, nil
}

func (r *ReactionRepository) Remove(message domain.MessageID, member domain.MemberID, emoji string) error {
	key := reactionKey(int64(message), int64(member), emoji)
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return errors.ErrReactionNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

func (r *ReactionRepository) ListByMessage(message domain.MessageID) ([]domain.Reaction, error) {
	var reactions []domain.Reaction
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("react:%019d:", message))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var stored storedReaction
				if err := json.Unmarshal(val, &stored); err != nil {
					return err
				}
				reactions = append(reactions, domain.Reaction{
					Message:   domain.MessageID(stored.Message),
					Member:    domain.MemberID(stored.Member),
					Emoji:     stored.Emoji,
					CreatedAt: stored.CreatedAt,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return reactions, err
}

// DeleteByMessage drops every reaction of a message, used by the
// message-deletion cascade.
func (r *ReactionRepository) DeleteByMessage(message domain.MessageID) error {
	reactions, err := r.ListByMessage(message)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		for _, reaction := range reactions {
			key := reactionKey(int64(reaction.Message), int64(reaction.Member), reaction.Emoji)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
