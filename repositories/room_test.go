package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"

	"hearthchat/domain"
	"hearthchat/errors"
)

func newTestRoomRepository(t *testing.T) *RoomRepository {
	t.Helper()
	repo, err := NewRoomRepository(openTestDB(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRoomRepository_Create_Forces_Creator_Into_Members(t *testing.T) {
	req := require.New(t)
	repo := newTestRoomRepository(t)

	// Given a room whose member list omits the creator
	created, err := repo.Create(domain.Room{
		FamilyID:  1,
		Name:      "Kitchen",
		CreatedBy: 7,
		Members:   []domain.MemberID{2, 3},
	})
	req.NoError(err)
	req.NotZero(created.ID)

	// Then the creator is on the list anyway
	fetched, err := repo.FindByID(created.ID)
	req.NoError(err)
	req.Equal(created.ID, fetched.ID)
	req.True(fetched.HasMember(7))
	req.Len(fetched.Members, 3)
}

func TestRoomRepository_FindByID_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repo := newTestRoomRepository(t)

	_, err := repo.FindByID(99)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomRepository_AddMember_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := newTestRoomRepository(t)

	created, err := repo.Create(domain.Room{FamilyID: 1, CreatedBy: 1})
	req.NoError(err)

	// When adding the same member twice
	_, err = repo.AddMember(created.ID, 5)
	req.NoError(err)
	updated, err := repo.AddMember(created.ID, 5)
	req.NoError(err)

	// Then the member appears once
	req.Equal([]domain.MemberID{1, 5}, updated.Members)

	// And the write survives a fresh read
	fetched, err := repo.FindByID(created.ID)
	req.NoError(err)
	req.True(fetched.HasMember(5))
}

func TestRoomRepository_AddMember_Unknown_Room(t *testing.T) {
	req := require.New(t)
	repo := newTestRoomRepository(t)

	_, err := repo.AddMember(99, 5)
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestRoomRepository_Delete(t *testing.T) {
	req := require.New(t)
	repo := newTestRoomRepository(t)

	created, err := repo.Create(domain.Room{FamilyID: 1, CreatedBy: 1})
	req.NoError(err)

	req.NoError(repo.Delete(created.ID))

	_, err = repo.FindByID(created.ID)
	req.ErrorIs(err, errors.ErrRoomNotFound)
	req.ErrorIs(repo.Delete(created.ID), errors.ErrRoomNotFound)
}
