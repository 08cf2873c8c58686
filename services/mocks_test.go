package services_test

import (
	"context"
	"time"

	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/pilab-dev/shadow-crest/domain"
	"github.com/pilab-dev/shadow-crest/sso"
	"github.com/stretchr/testify/mock"
)

// --- Mock Implementations ---

type MockTokenExchanger struct {
	mock.Mock
}

func (m *MockTokenExchanger) ExchangeAuthorizationCode(ctx context.Context, code string) (sso.AccessTokenPair, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(sso.AccessTokenPair), args.Error(1)
}

func (m *MockTokenExchanger) RefreshAccessToken(ctx context.Context, refreshToken string) (sso.AccessTokenPair, error) {
	args := m.Called(ctx, refreshToken)
	return args.Get(0).(sso.AccessTokenPair), args.Error(1)
}

type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) VerifyIdentity(ctx context.Context, accessToken string) (*sso.IdentityRecord, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sso.IdentityRecord), args.Error(1)
}

type MockCharacterFetcher struct {
	mock.Mock
}

func (m *MockCharacterFetcher) GetCharacterData(ctx context.Context, accessToken string) (*crest.CharacterData, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crest.CharacterData), args.Error(1)
}

type MockLocationFetcher struct {
	mock.Mock
}

func (m *MockLocationFetcher) GetLocation(ctx context.Context, accessToken string, ttl time.Duration, opts crest.FetchOptions) (crest.Location, error) {
	args := m.Called(ctx, accessToken, ttl, opts)
	return args.Get(0).(crest.Location), args.Error(1)
}

type MockAuthorizationPolicy struct {
	mock.Mock
}

func (m *MockAuthorizationPolicy) IsAuthorized(ctx context.Context, character *domain.Character) (bool, error) {
	args := m.Called(ctx, character)
	return args.Bool(0), args.Error(1)
}
