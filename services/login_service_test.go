package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/pilab-dev/shadow-crest/domain"
	"github.com/pilab-dev/shadow-crest/internal/audit"
	"github.com/pilab-dev/shadow-crest/internal/memstore"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/services"
	"github.com/pilab-dev/shadow-crest/session"
	"github.com/pilab-dev/shadow-crest/sso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type loginFixture struct {
	svc        *services.LoginService
	tokens     *MockTokenExchanger
	verifier   *MockIdentityVerifier
	characters *MockCharacterFetcher
	locations  *MockLocationFetcher
	policy     *MockAuthorizationPolicy
	store      *memstore.Store
}

func newLoginFixture(t *testing.T, clientID string) *loginFixture {
	t.Helper()
	f := &loginFixture{
		tokens:     new(MockTokenExchanger),
		verifier:   new(MockIdentityVerifier),
		characters: new(MockCharacterFetcher),
		locations:  new(MockLocationFetcher),
		policy:     new(MockAuthorizationPolicy),
		store:      memstore.New(),
	}
	cfg := services.LoginConfig{
		SSO: sso.Config{
			BaseURL:     "https://login.example.com",
			ClientID:    clientID,
			SecretKey:   "secret",
			RedirectURL: "https://app.example.com/sso/callbackAuthorization",
			Timeout:     3 * time.Second,
		},
		LoginPath:   "/login",
		MapPath:     "/map",
		LocationTTL: 10 * time.Second,
	}
	f.svc = services.NewLoginService(cfg, f.tokens, f.verifier, f.characters, f.locations,
		f.store.Repositories(), f.policy, log.Nop())
	return f
}

func pilotData(id int64, name string) *crest.CharacterData {
	return &crest.CharacterData{
		Character:   &crest.Character{ID: id, Name: name},
		Corporation: &crest.Corporation{ID: 1000, Name: "Fortytwo Corp"},
	}
}

// expectHappyPath wires every collaborator for a successful login of character id.
func (f *loginFixture) expectHappyPath(id int64, name string) {
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").
		Return(&sso.IdentityRecord{CharacterID: id, CharacterName: name, CharacterOwnerHash: "hash-1"}, nil).Once()
	f.characters.On("GetCharacterData", mock.Anything, "A1").Return(pilotData(id, name), nil).Once()
	f.locations.On("GetLocation", mock.Anything, "A1", 10*time.Second, crest.FetchOptions{}).
		Return(crest.Location{System: &crest.System{ID: 30000142, Name: "Jita"}}, nil).Once()
	f.policy.On("IsAuthorized", mock.Anything, mock.AnythingOfType("*domain.Character")).Return(true, nil).Once()
}

func withState(restriction int64) *session.Session {
	sess := session.New("sid")
	sess.SetAuthorizationState(session.AuthorizationState{State: "S", RestrictedCharacterID: restriction})
	return sess
}

func TestRequestAuthorization_MissingClientID(t *testing.T) {
	f := newLoginFixture(t, "")
	sess := session.New("sid")

	res, err := f.svc.RequestAuthorization(context.Background(), sess, services.AuthorizationRequest{})
	require.NoError(t, err)
	assert.Equal(t, "/login", res.Redirect)
	assert.Equal(t, services.ErrorMissingClientID, sess.TakeError())
	_, ok := sess.TakeAuthorizationState()
	assert.False(t, ok)
}

func TestRequestAuthorization_RedirectsToSSO(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	sess := session.New("sid")
	characterID := int64(42)

	res, err := f.svc.RequestAuthorization(context.Background(), sess, services.AuthorizationRequest{CharacterID: &characterID})
	require.NoError(t, err)

	u, err := url.Parse(res.Redirect)
	require.NoError(t, err)
	assert.Equal(t, "login.example.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Equal(t, "client-id", u.Query().Get("client_id"))
	assert.Equal(t, "characterLocationRead characterNavigationWrite", u.Query().Get("scope"))

	state, ok := sess.TakeAuthorizationState()
	require.True(t, ok)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{24}$`), state.State)
	assert.Equal(t, state.State, u.Query().Get("state"))
	assert.Equal(t, int64(42), state.RestrictedCharacterID)
}

func TestRequestAuthorization_MalformedSSOURL(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	cfg := services.LoginConfig{SSO: sso.Config{BaseURL: "not a url", ClientID: "client-id"}}
	svc := services.NewLoginService(cfg, f.tokens, f.verifier, f.characters, f.locations, f.store.Repositories(), f.policy, log.Nop())

	_, err := svc.RequestAuthorization(context.Background(), session.New("sid"), services.AuthorizationRequest{})
	assert.True(t, errors.Is(err, sso.ErrConfiguration))
}

func TestCallbackAuthorization_InvalidStateSkipsExchange(t *testing.T) {
	tests := []struct {
		name  string
		sess  *session.Session
		code  string
		state string
	}{
		{name: "no stored state", sess: session.New("sid"), code: "abc123", state: "S"},
		{name: "mismatch", sess: withState(0), code: "abc123", state: "other"},
		{name: "empty state", sess: withState(0), code: "abc123", state: ""},
		{name: "empty code", sess: withState(0), code: "", state: "S"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLoginFixture(t, "client-id")

			res := f.svc.CallbackAuthorization(context.Background(), tt.sess, tt.code, tt.state)
			assert.Equal(t, "/login", res.Redirect)
			assert.True(t, errors.Is(res.Err, sso.ErrStateMismatch))
			assert.Equal(t, services.ErrorInvalidState, tt.sess.TakeError())
			f.tokens.AssertNotCalled(t, "ExchangeAuthorizationCode", mock.Anything, mock.Anything)

			_, ok := tt.sess.TakeAuthorizationState()
			assert.False(t, ok, "state is cleared")
		})
	}
}

func TestCallbackAuthorization_IncompleteTokenPair(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{RefreshToken: "r"}, nil).Once()
	sess := withState(0)

	res := f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S")
	assert.Equal(t, "/login", res.Redirect)
	assert.Equal(t, "CCP SSO service timeout (3s). Try again later", sess.TakeError())
	f.verifier.AssertNotCalled(t, "VerifyIdentity", mock.Anything, mock.Anything)

	_, ok := sess.TakeAuthorizationState()
	assert.False(t, ok)
}

func TestCallbackAuthorization_ExchangeTimeout(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{}, sso.ErrTransportTimeout).Once()
	sess := withState(session.RestrictAddCharacter)

	res := f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S")
	assert.Equal(t, "/map", res.Redirect, "add-character flow returns to the map")
	assert.True(t, errors.Is(res.Err, sso.ErrTransportTimeout))
	assert.Equal(t, "CCP SSO service timeout (3s). Try again later", sess.TakeError())
}

func TestCallbackAuthorization_VerifyFailure(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").Return(nil, sso.ErrProtocol).Once()
	sess := withState(0)

	res := f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S")
	assert.Equal(t, "/login", res.Redirect)
	assert.Equal(t, services.ErrorVerifyCharacter, sess.TakeError())
}

func TestCallbackAuthorization_RestrictedCharacterMatches(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.expectHappyPath(42, "Pilot Fortytwo")
	sess := withState(42)

	res := f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S")
	require.NoError(t, res.Err)
	assert.Equal(t, "/map", res.Redirect)
	assert.Empty(t, sess.TakeError())
	assert.Equal(t, int64(42), sess.ActiveCharacterID())
	require.NotEmpty(t, sess.ActiveUserID())

	ctx := context.Background()
	character, err := f.store.Characters.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", character.OwnerHash)
	assert.Equal(t, "A1", character.CrestAccessToken)
	assert.Equal(t, "R1", character.CrestRefreshToken)
	assert.Equal(t, int64(1000), character.CorporationID)
	require.NotNil(t, character.Log)
	assert.Equal(t, "Jita", character.Log.System.Name)

	corp, err := f.store.Corporations.GetByID(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, "Fortytwo Corp", corp.Name)

	user, err := f.store.Users.GetByID(ctx, sess.ActiveUserID())
	require.NoError(t, err)
	assert.Equal(t, "Pilot Fortytwo", user.Name)

	link, err := f.store.UserCharacters.GetByCharacterID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, user.ID, link.UserID)

	f.tokens.AssertExpectations(t)
	f.verifier.AssertExpectations(t)
	f.characters.AssertExpectations(t)
	f.policy.AssertExpectations(t)
}

func TestCallbackAuthorization_RestrictedCharacterMismatch(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").
		Return(&sso.IdentityRecord{CharacterID: 9, CharacterName: "Other Pilot"}, nil).Once()
	sess := withState(7)

	res := f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S")
	assert.Equal(t, "/map", res.Redirect)
	assert.True(t, errors.Is(res.Err, sso.ErrIdentityMismatch))
	assert.Equal(t, `The character "Other Pilot" you tried to log in, does not match`, sess.TakeError())
	f.characters.AssertNotCalled(t, "GetCharacterData", mock.Anything, mock.Anything)
}

func TestCallbackAuthorization_CharacterDataMissing(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").
		Return(&sso.IdentityRecord{CharacterID: 42, CharacterName: "Pilot"}, nil).Once()
	f.characters.On("GetCharacterData", mock.Anything, "A1").Return(nil, crest.ErrLinkNotFound).Once()
	sess := withState(0)

	res := f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S")
	assert.Equal(t, "/login", res.Redirect)
	assert.Equal(t, services.ErrorCharacterData, sess.TakeError())
	assert.Zero(t, f.store.Characters.Len())
}

func TestCallbackAuthorization_Forbidden(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").
		Return(&sso.IdentityRecord{CharacterID: 42, CharacterName: "Pilot Fortytwo", CharacterOwnerHash: "h"}, nil).Once()
	f.characters.On("GetCharacterData", mock.Anything, "A1").Return(pilotData(42, "Pilot Fortytwo"), nil).Once()
	f.locations.On("GetLocation", mock.Anything, "A1", 10*time.Second, crest.FetchOptions{}).
		Return(crest.Location{System: &crest.System{ID: 30000142, Name: "Jita"}}, nil).Once()
	f.policy.On("IsAuthorized", mock.Anything, mock.Anything).Return(false, nil).Once()
	sess := withState(0)

	res := f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S")
	assert.Equal(t, "/login", res.Redirect)
	assert.True(t, errors.Is(res.Err, sso.ErrAuthorizationDenied))
	assert.Equal(t, `Character "Pilot Fortytwo" is not authorized to log in`, sess.TakeError())
	assert.Zero(t, sess.ActiveCharacterID())

	// the character and its log are persisted even when denied
	character, err := f.store.Characters.GetByID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, character.Log)
	assert.Zero(t, f.store.Users.Len())
}

func TestCallbackAuthorization_LocationTimeoutDoesNotFailLogin(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").
		Return(&sso.IdentityRecord{CharacterID: 42, CharacterName: "Pilot", CharacterOwnerHash: "h"}, nil).Once()
	f.characters.On("GetCharacterData", mock.Anything, "A1").Return(pilotData(42, "Pilot"), nil).Once()
	f.locations.On("GetLocation", mock.Anything, "A1", 10*time.Second, crest.FetchOptions{}).
		Return(crest.Location{Timeout: true}, nil).Once()
	f.policy.On("IsAuthorized", mock.Anything, mock.Anything).Return(true, nil).Once()

	res := f.svc.CallbackAuthorization(context.Background(), withState(0), "abc123", "S")
	require.NoError(t, res.Err)
	assert.Equal(t, "/map", res.Redirect)

	character, err := f.store.Characters.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, character.Log)
}

func TestCallbackAuthorization_ReusesActiveUser(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	ctx := context.Background()
	owner := &domain.User{Name: "Main"}
	require.NoError(t, f.store.Users.Create(ctx, owner))

	f.expectHappyPath(43, "Alt Pilot")
	sess := withState(session.RestrictAddCharacter)
	sess.Login(owner.ID, 42)

	res := f.svc.CallbackAuthorization(ctx, sess, "abc123", "S")
	require.NoError(t, res.Err)
	assert.Equal(t, owner.ID, sess.ActiveUserID())
	assert.Equal(t, int64(43), sess.ActiveCharacterID())
	assert.Equal(t, 1, f.store.Users.Len())

	link, err := f.store.UserCharacters.GetByCharacterID(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, link.UserID)
}

func TestCallbackAuthorization_ReloginIsIdempotent(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	ctx := context.Background()

	f.expectHappyPath(42, "Pilot Fortytwo")
	first := withState(0)
	require.NoError(t, f.svc.CallbackAuthorization(ctx, first, "abc123", "S").Err)

	f.expectHappyPath(42, "Pilot Fortytwo")
	second := withState(0)
	require.NoError(t, f.svc.CallbackAuthorization(ctx, second, "abc123", "S").Err)

	assert.Equal(t, 1, f.store.Characters.Len())
	assert.Equal(t, 1, f.store.Corporations.Len())
	assert.Equal(t, 1, f.store.Users.Len())
	assert.Equal(t, first.ActiveUserID(), second.ActiveUserID())
}

// expectLoginWith wires a successful login that resolves to data.
func (f *loginFixture) expectLoginWith(data *crest.CharacterData) {
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").
		Return(&sso.IdentityRecord{CharacterID: data.Character.ID, CharacterName: data.Character.Name, CharacterOwnerHash: "hash-1"}, nil).Once()
	f.characters.On("GetCharacterData", mock.Anything, "A1").Return(data, nil).Once()
	f.locations.On("GetLocation", mock.Anything, "A1", 10*time.Second, crest.FetchOptions{}).
		Return(crest.Location{}, nil).Once()
	f.policy.On("IsAuthorized", mock.Anything, mock.AnythingOfType("*domain.Character")).Return(true, nil).Once()
}

func TestCallbackAuthorization_ReloginUpdatesOrganizations(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	ctx := context.Background()

	f.expectLoginWith(&crest.CharacterData{
		Character:   &crest.Character{ID: 42, Name: "Pilot Fortytwo"},
		Corporation: &crest.Corporation{ID: 1000, Name: "Fortytwo Corp"},
		Alliance:    &crest.Alliance{ID: 99000001, Name: "X Alliance", ShortName: "XA"},
	})
	require.NoError(t, f.svc.CallbackAuthorization(ctx, withState(0), "abc123", "S").Err)

	joined, err := f.store.Characters.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), joined.CorporationID)
	assert.Equal(t, int64(99000001), joined.AllianceID)

	alliance, err := f.store.Alliances.GetByID(ctx, 99000001)
	require.NoError(t, err)
	assert.Equal(t, "X Alliance", alliance.Name)
	assert.Equal(t, "XA", alliance.ShortName)

	// renamed, moved to another corporation and out of the alliance
	f.expectLoginWith(&crest.CharacterData{
		Character:   &crest.Character{ID: 42, Name: "Pilot Renamed"},
		Corporation: &crest.Corporation{ID: 2000, Name: "Other Corp"},
	})
	require.NoError(t, f.svc.CallbackAuthorization(ctx, withState(0), "abc123", "S").Err)

	assert.Equal(t, 1, f.store.Characters.Len())
	moved, err := f.store.Characters.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Pilot Renamed", moved.Name)
	assert.Equal(t, int64(2000), moved.CorporationID)
	assert.Zero(t, moved.AllianceID)

	assert.Equal(t, 2, f.store.Corporations.Len())
	_, err = f.store.Corporations.GetByID(ctx, 1000)
	assert.NoError(t, err)
	_, err = f.store.Alliances.GetByID(ctx, 99000001)
	assert.NoError(t, err)
}

func TestCallbackAuthorization_OwnerChangeGetsNewUser(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	ctx := context.Background()

	f.expectHappyPath(42, "Pilot Fortytwo")
	first := withState(0)
	require.NoError(t, f.svc.CallbackAuthorization(ctx, first, "abc123", "S").Err)

	// same character, new account
	f.tokens.On("ExchangeAuthorizationCode", mock.Anything, "abc123").
		Return(sso.AccessTokenPair{AccessToken: "A1", RefreshToken: "R1"}, nil).Once()
	f.verifier.On("VerifyIdentity", mock.Anything, "A1").
		Return(&sso.IdentityRecord{CharacterID: 42, CharacterName: "Pilot Fortytwo", CharacterOwnerHash: "hash-2"}, nil).Once()
	f.characters.On("GetCharacterData", mock.Anything, "A1").Return(pilotData(42, "Pilot Fortytwo"), nil).Once()
	f.locations.On("GetLocation", mock.Anything, "A1", 10*time.Second, crest.FetchOptions{}).
		Return(crest.Location{}, nil).Once()
	f.policy.On("IsAuthorized", mock.Anything, mock.Anything).Return(true, nil).Once()

	second := withState(0)
	require.NoError(t, f.svc.CallbackAuthorization(ctx, second, "abc123", "S").Err)

	assert.NotEqual(t, first.ActiveUserID(), second.ActiveUserID())
	assert.Equal(t, 2, f.store.Users.Len())
}

func TestCurrentLocation(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	ctx := context.Background()

	_, err := f.store.Characters.Save(ctx, &domain.Character{
		ID:                      42,
		CrestAccessToken:        "stale",
		CrestRefreshToken:       "R1",
		CrestAccessTokenUpdated: time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	f.tokens.On("RefreshAccessToken", mock.Anything, "R1").
		Return(sso.AccessTokenPair{AccessToken: "A2", RefreshToken: "R2"}, nil).Once()
	f.locations.On("GetLocation", mock.Anything, "A2", 10*time.Second, crest.FetchOptions{}).
		Return(crest.Location{System: &crest.System{ID: 30000142, Name: "Jita"}}, nil).Once()

	sess := session.New("sid")
	sess.Login("user-1", 42)

	loc, err := f.svc.CurrentLocation(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "Jita", loc.System.Name)

	character, err := f.store.Characters.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "A2", character.CrestAccessToken)
	assert.Equal(t, "R2", character.CrestRefreshToken)
}

func TestCurrentLocation_NotLoggedIn(t *testing.T) {
	f := newLoginFixture(t, "client-id")

	_, err := f.svc.CurrentLocation(context.Background(), session.New("sid"))
	assert.True(t, errors.Is(err, services.ErrNotLoggedIn))
}

func TestCallbackAuthorization_AuditTrail(t *testing.T) {
	f := newLoginFixture(t, "client-id")
	var buf bytes.Buffer
	f.svc.WithAudit(audit.New(&buf, "test"))

	f.expectHappyPath(42, "Pilot Fortytwo")
	sess := withState(0)
	require.NoError(t, f.svc.CallbackAuthorization(context.Background(), sess, "abc123", "S").Err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sso_callback", line["action"])
	assert.Equal(t, "success", line["outcome"])
	assert.Equal(t, true, line["success"])
	assert.Equal(t, float64(42), line["character_id"])
	assert.Equal(t, sess.ActiveUserID(), line["user_id"])
}
