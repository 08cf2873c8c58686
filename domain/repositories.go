package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by repositories when no entity has the requested id.
var ErrNotFound = errors.New("entity not found")

// CharacterRepository stores characters. Save inserts or replaces by ID and returns the
// stored entity.
type CharacterRepository interface {
	GetByID(ctx context.Context, id int64) (*Character, error)
	Save(ctx context.Context, character *Character) (*Character, error)
}

// CorporationRepository stores corporations.
type CorporationRepository interface {
	GetByID(ctx context.Context, id int64) (*Corporation, error)
	Save(ctx context.Context, corporation *Corporation) (*Corporation, error)
}

// AllianceRepository stores alliances.
type AllianceRepository interface {
	GetByID(ctx context.Context, id int64) (*Alliance, error)
	Save(ctx context.Context, alliance *Alliance) (*Alliance, error)
}

// UserRepository stores users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) error
}

// UserCharacterRepository stores character to user links.
type UserCharacterRepository interface {
	GetByCharacterID(ctx context.Context, characterID int64) (*UserCharacter, error)
	Save(ctx context.Context, link *UserCharacter) error
}

// Repositories bundles the stores a login needs.
type Repositories struct {
	Characters     CharacterRepository
	Corporations   CorporationRepository
	Alliances      AllianceRepository
	Users          UserRepository
	UserCharacters UserCharacterRepository
}

// AuthorizationPolicy decides whether a character may log in.
type AuthorizationPolicy interface {
	IsAuthorized(ctx context.Context, character *Character) (bool, error)
}
