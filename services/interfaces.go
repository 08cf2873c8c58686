package services

import (
	"context"
	"time"

	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/pilab-dev/shadow-crest/sso"
)

// TokenExchanger performs the SSO token grants. *sso.TokenService implements it.
type TokenExchanger interface {
	ExchangeAuthorizationCode(ctx context.Context, code string) (sso.AccessTokenPair, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (sso.AccessTokenPair, error)
}

// IdentityVerifier resolves an access token to its character. *sso.Verifier implements it.
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, accessToken string) (*sso.IdentityRecord, error)
}

// CharacterFetcher loads character resources. *crest.CharacterService implements it.
type CharacterFetcher interface {
	GetCharacterData(ctx context.Context, accessToken string) (*crest.CharacterData, error)
}

// LocationFetcher loads the current location. *crest.LocationService implements it.
type LocationFetcher interface {
	GetLocation(ctx context.Context, accessToken string, ttl time.Duration, opts crest.FetchOptions) (crest.Location, error)
}
