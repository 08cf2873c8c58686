package crest

import (
	"context"
	"fmt"

	"github.com/pilab-dev/shadow-crest/log"
)

// CharacterPath leads from the CREST root to the authenticated character.
var CharacterPath = []string{"decode", "character"}

// CharacterData is what a login needs from CREST.
type CharacterData struct {
	Character   *Character
	Corporation *Corporation // nil when the resource carries none
	Alliance    *Alliance    // nil when the resource carries none
}

// CharacterService loads character resources.
type CharacterService struct {
	walker *Walker
	logger log.Logger
}

// NewCharacterService creates a CharacterService.
func NewCharacterService(walker *Walker, logger log.Logger) *CharacterService {
	return &CharacterService{walker: walker, logger: logger}
}

// GetCharacterData walks to the character behind accessToken and maps it together with
// its embedded corporation and alliance.
func (s *CharacterService) GetCharacterData(ctx context.Context, accessToken string) (*CharacterData, error) {
	root, err := s.walker.Endpoints(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	result, err := s.walker.Walk(ctx, accessToken, root, CharacterPath, FetchOptions{})
	if err != nil {
		return nil, err
	}
	doc, ok := asMap(result)
	if !ok || len(doc) == 0 {
		return nil, fmt.Errorf("%w: character resource is not a document", ErrProtocol)
	}

	character, err := MapCharacter(doc)
	if err != nil {
		return nil, err
	}
	data := &CharacterData{Character: character}

	if sub, ok := doc.Sub("corporation"); ok {
		corp, err := MapCorporation(sub)
		if err != nil {
			s.logger.Warn(ctx, "Ignoring unmappable corporation", log.Fields{"character_id": character.ID, "error": err.Error()})
		} else {
			data.Corporation = corp
		}
	}
	if sub, ok := doc.Sub("alliance"); ok {
		alliance, err := MapAlliance(sub)
		if err != nil {
			s.logger.Warn(ctx, "Ignoring unmappable alliance", log.Fields{"character_id": character.ID, "error": err.Error()})
		} else {
			data.Alliance = alliance
		}
	}

	return data, nil
}
