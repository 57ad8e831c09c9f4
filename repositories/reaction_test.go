package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hearthchat/domain"
	"hearthchat/errors"
)

func TestReactionRepository_Add_Is_Unique_Per_Member_And_Emoji(t *testing.T) {
	req := require.New(t)
	repo := NewReactionRepository(openTestDB(t))

	// Given a first reaction
	created, err := repo.Add(domain.Reaction{Message: 1, Member: 2, Emoji: "👍"})
	req.NoError(err)
	req.False(created.CreatedAt.IsZero())

	// When the same member applies the same emoji again
	_, err = repo.Add(domain.Reaction{Message: 1, Member: 2, Emoji: "👍"})
	req.ErrorIs(err, errors.ErrReactionExists)

	// Then a different emoji or member is still fine
	_, err = repo.Add(domain.Reaction{Message: 1, Member: 2, Emoji: "❤️"})
	req.NoError(err)
	_, err = repo.Add(domain.Reaction{Message: 1, Member: 3, Emoji: "👍"})
	req.NoError(err)

	reactions, err := repo.ListByMessage(1)
	req.NoError(err)
	req.Len(reactions, 3)
}

func TestReactionRepository_Remove(t *testing.T) {
	req := require.New(t)
	repo := NewReactionRepository(openTestDB(t))

	_, err := repo.Add(domain.Reaction{Message: 1, Member: 2, Emoji: "👍"})
	req.NoError(err)

	req.NoError(repo.Remove(1, 2, "👍"))
	req.ErrorIs(repo.Remove(1, 2, "👍"), errors.ErrReactionNotFound)

	reactions, err := repo.ListByMessage(1)
	req.NoError(err)
	req.Empty(reactions)
}

func TestReactionRepository_DeleteByMessage_Scopes_To_One_Message(t *testing.T) {
	req := require.New(t)
	repo := NewReactionRepository(openTestDB(t))

	_, err := repo.Add(domain.Reaction{Message: 1, Member: 2, Emoji: "👍"})
	req.NoError(err)
	_, err = repo.Add(domain.Reaction{Message: 1, Member: 3, Emoji: "❤️"})
	req.NoError(err)
	_, err = repo.Add(domain.Reaction{Message: 2, Member: 2, Emoji: "👍"})
	req.NoError(err)

	req.NoError(repo.DeleteByMessage(1))

	gone, err := repo.ListByMessage(1)
	req.NoError(err)
	req.Empty(gone)

	kept, err := repo.ListByMessage(2)
	req.NoError(err)
	req.Len(kept, 1)
}
