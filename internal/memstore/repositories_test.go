package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pilab-dev/shadow-crest/domain"
	"github.com/pilab-dev/shadow-crest/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacters_UpsertKeepsOneRecord(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	first, err := store.Characters.Save(ctx, &domain.Character{ID: 42, Name: "Pilot", CorporationID: 1000})
	require.NoError(t, err)
	second, err := store.Characters.Save(ctx, &domain.Character{ID: 42, Name: "Pilot", CorporationID: 2000})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Characters.Len())
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := store.Characters.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.CorporationID)
}

func TestCharacters_NotFoundAndInvalid(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	_, err := store.Characters.GetByID(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = store.Characters.Save(ctx, &domain.Character{})
	assert.Error(t, err)
}

func TestUsers_CreateAssignsID(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	user := &domain.User{Name: "Pilot"}
	require.NoError(t, store.Users.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.Error(t, store.Users.Create(ctx, user), "duplicate id")

	got, err := store.Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pilot", got.Name)
}

func TestUserCharacters_Relink(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()

	require.NoError(t, store.UserCharacters.Save(ctx, &domain.UserCharacter{CharacterID: 42, UserID: "a"}))
	require.NoError(t, store.UserCharacters.Save(ctx, &domain.UserCharacter{CharacterID: 42, UserID: "b"}))

	link, err := store.UserCharacters.GetByCharacterID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "b", link.UserID)
}
