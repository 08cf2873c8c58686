// Package auth holds the login authorization policies.
package auth

import (
	"context"

	"github.com/pilab-dev/shadow-crest/domain"
)

// AllowList admits a character when its id, corporation or alliance is listed.
// With all three lists empty every character is admitted.
type AllowList struct {
	characters   map[int64]struct{}
	corporations map[int64]struct{}
	alliances    map[int64]struct{}
}

var _ domain.AuthorizationPolicy = (*AllowList)(nil)

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id > 0 {
			set[id] = struct{}{}
		}
	}
	return set
}

// NewAllowList creates an AllowList from the configured id lists.
func NewAllowList(characterIDs, corporationIDs, allianceIDs []int64) *AllowList {
	return &AllowList{
		characters:   toSet(characterIDs),
		corporations: toSet(corporationIDs),
		alliances:    toSet(allianceIDs),
	}
}

// Open reports whether the list admits everyone.
func (a *AllowList) Open() bool {
	return len(a.characters) == 0 && len(a.corporations) == 0 && len(a.alliances) == 0
}

// IsAuthorized implements domain.AuthorizationPolicy.
func (a *AllowList) IsAuthorized(_ context.Context, character *domain.Character) (bool, error) {
	if character == nil {
		return false, nil
	}
	if a.Open() {
		return true, nil
	}
	if _, ok := a.characters[character.ID]; ok {
		return true, nil
	}
	if _, ok := a.corporations[character.CorporationID]; ok && character.CorporationID != 0 {
		return true, nil
	}
	if _, ok := a.alliances[character.AllianceID]; ok && character.AllianceID != 0 {
		return true, nil
	}
	return false, nil
}
