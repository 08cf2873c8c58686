package sso

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Refresher refreshes an access token. *TokenService implements it.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (AccessTokenPair, error)
}

// StoredToken is the token state persisted for a character.
type StoredToken struct {
	AccessToken  string
	RefreshToken string
	Updated      time.Time
}

// Token converts the stored state into an oauth2.Token expiring AccessTokenTTL after Updated.
func (s StoredToken) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Updated.Add(AccessTokenTTL),
	}
}

// PersistFunc stores a refreshed pair for the character the source belongs to.
type PersistFunc func(ctx context.Context, pair AccessTokenPair, updated time.Time) error

type characterTokenSource struct {
	ctx       context.Context
	refresher Refresher
	persist   PersistFunc
	now       func() time.Time

	mu           sync.Mutex
	refreshToken string
}

// NewCharacterTokenSource returns a TokenSource that serves the stored access token until
// it is AccessTokenTTL old and refreshes it afterwards, persisting each new pair.
func NewCharacterTokenSource(ctx context.Context, refresher Refresher, stored StoredToken, persist PersistFunc) oauth2.TokenSource {
	src := &characterTokenSource{
		ctx:          ctx,
		refresher:    refresher,
		persist:      persist,
		now:          time.Now,
		refreshToken: stored.RefreshToken,
	}
	var initial *oauth2.Token
	if stored.AccessToken != "" && !stored.Updated.IsZero() {
		initial = stored.Token()
	}
	return oauth2.ReuseTokenSource(initial, src)
}

// Token implements oauth2.TokenSource.
func (s *characterTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", ErrConfiguration)
	}

	pair, err := s.refresher.RefreshAccessToken(s.ctx, s.refreshToken)
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, fmt.Errorf("%w: refresh returned no access token", ErrProtocol)
	}
	// CCP may omit the refresh token when it is unchanged.
	if pair.RefreshToken == "" {
		pair.RefreshToken = s.refreshToken
	}

	updated := s.now()
	if s.persist != nil {
		if err := s.persist(s.ctx, pair, updated); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	s.refreshToken = pair.RefreshToken

	return StoredToken{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, Updated: updated}.Token(), nil
}
