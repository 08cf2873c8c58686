package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/shadow-crest/crest"
	"github.com/pilab-dev/shadow-crest/domain"
	"github.com/pilab-dev/shadow-crest/internal/audit"
	"github.com/pilab-dev/shadow-crest/internal/metrics"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/session"
	"github.com/pilab-dev/shadow-crest/sso"
)

// Messages stored in the session for the next page load.
const (
	ErrorMissingClientID    = `Missing "SSO_CCP_CLIENT_ID" configuration.`
	ErrorInvalidState       = "Invalid or expired login request. Please try again"
	ErrorVerifyCharacter    = "Unable to verify character data. Try again later"
	ErrorCharacterData      = "Unable to load character data. Try again later"
	errorServiceTimeout     = "CCP SSO service timeout (%ds). Try again later"
	errorCharacterMismatch  = `The character "%s" you tried to log in, does not match`
	errorCharacterForbidden = `Character "%s" is not authorized to log in`
	errorLoginFailed        = "Failed authentication due to technical problems: %s"
)

const (
	stateBytes    = 12
	auditCallback = "sso_callback"
)

// ErrNotLoggedIn is returned when the session has no active character.
var ErrNotLoggedIn = errors.New("no active character")

// LoginConfig configures the LoginService.
type LoginConfig struct {
	SSO         sso.Config
	LoginPath   string // login view
	MapPath     string // main view
	LocationTTL time.Duration
}

// AuthorizationRequest is an incoming login request. CharacterID restricts the login to
// one character (>0) or marks an add-character flow (-1).
type AuthorizationRequest struct {
	CharacterID *int64
}

// Result tells the HTTP layer where to send the user-agent. Err holds the failure, if any;
// its message is already stored in the session.
type Result struct {
	Redirect string
	Err      error
}

// LoginService drives the SSO login: authorization redirect, callback validation, token
// exchange, identity verification, character persistence and session establishment.
type LoginService struct {
	cfg        LoginConfig
	tokens     TokenExchanger
	verifier   IdentityVerifier
	characters CharacterFetcher
	locations  LocationFetcher
	repos      *domain.Repositories
	policy     domain.AuthorizationPolicy
	logger     log.Logger
	audit      *audit.Logger

	newState func() (string, error)
	now      func() time.Time
}

// NewLoginService creates a LoginService.
func NewLoginService(
	cfg LoginConfig,
	tokens TokenExchanger,
	verifier IdentityVerifier,
	characters CharacterFetcher,
	locations LocationFetcher,
	repos *domain.Repositories,
	policy domain.AuthorizationPolicy,
	logger log.Logger,
) *LoginService {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.MapPath == "" {
		cfg.MapPath = "/map"
	}
	return &LoginService{
		cfg:        cfg,
		tokens:     tokens,
		verifier:   verifier,
		characters: characters,
		locations:  locations,
		repos:      repos,
		policy:     policy,
		logger:     logger,
		audit:      audit.Nop(),
		newState:   generateState,
		now:        time.Now,
	}
}

// WithAudit records every callback outcome on l.
func (s *LoginService) WithAudit(l *audit.Logger) *LoginService {
	s.audit = l
	return s
}

func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// RequestAuthorization records a fresh state in sess and returns the SSO authorize redirect.
// The returned error is non-nil only when the SSO url is malformed.
func (s *LoginService) RequestAuthorization(ctx context.Context, sess *session.Session, req AuthorizationRequest) (Result, error) {
	if s.cfg.SSO.ClientID == "" {
		s.logger.Error(ctx, ErrorMissingClientID, sso.ErrConfiguration)
		sess.SetError(ErrorMissingClientID)
		return Result{Redirect: s.cfg.LoginPath, Err: sso.ErrConfiguration}, nil
	}

	restriction := session.Unrestricted
	if req.CharacterID != nil {
		restriction = *req.CharacterID
	}

	state, err := s.newState()
	if err != nil {
		return Result{}, err
	}

	authURL, err := s.cfg.SSO.AuthCodeURL(state)
	if err != nil {
		s.logger.Error(ctx, `Invalid "SSO_CCP_URL" url`, err)
		return Result{}, err
	}

	sess.SetAuthorizationState(session.AuthorizationState{
		State:                 state,
		RestrictedCharacterID: restriction,
	})

	return Result{Redirect: authURL}, nil
}

func (s *LoginService) failureRedirect(fromMap bool) string {
	if fromMap {
		return s.cfg.MapPath
	}
	return s.cfg.LoginPath
}

func (s *LoginService) timeoutMessage() string {
	timeout := s.cfg.SSO.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return fmt.Sprintf(errorServiceTimeout, int(timeout/time.Second))
}

// CallbackAuthorization handles the SSO redirect back. The stored state is consumed on
// every call, whatever the outcome. Every failure stores exactly one message in sess.
func (s *LoginService) CallbackAuthorization(ctx context.Context, sess *session.Session, code, state string) Result {
	stored, ok := sess.TakeAuthorizationState()
	if !ok || code == "" || state == "" || subtle.ConstantTimeCompare([]byte(stored.State), []byte(state)) != 1 {
		s.logger.Warn(ctx, "Rejected SSO callback with invalid state", log.Fields{"stored": ok})
		sess.SetError(ErrorInvalidState)
		metrics.ObserveLogin("invalid_state")
		s.audit.Log(audit.Event{Action: auditCallback, Outcome: "invalid_state", SessionID: sess.ID(), Error: sso.ErrStateMismatch.Error()})
		return Result{Redirect: s.cfg.LoginPath, Err: sso.ErrStateMismatch}
	}

	fromMap := stored.FromMap()
	var characterID int64
	fail := func(outcome, msg string, err error) Result {
		s.logger.Warn(ctx, msg, log.Fields{"outcome": outcome, "error": err.Error()})
		sess.SetError(msg)
		metrics.ObserveLogin(outcome)
		s.audit.Log(audit.Event{
			Action:      auditCallback,
			Outcome:     outcome,
			SessionID:   sess.ID(),
			CharacterID: characterID,
			Error:       err.Error(),
		})
		return Result{Redirect: s.failureRedirect(fromMap), Err: err}
	}

	pair, err := s.tokens.ExchangeAuthorizationCode(ctx, code)
	if err == nil && !pair.Complete() {
		err = fmt.Errorf("%w: incomplete token pair", sso.ErrProtocol)
	}
	if err != nil {
		return fail("token_exchange", s.timeoutMessage(), err)
	}

	identity, err := s.verifier.VerifyIdentity(ctx, pair.AccessToken)
	if err == nil && identity == nil {
		err = fmt.Errorf("%w: no identity", sso.ErrProtocol)
	}
	if err != nil {
		return fail("verify", ErrorVerifyCharacter, err)
	}
	characterID = identity.CharacterID

	if stored.RestrictedCharacterID > 0 && identity.CharacterID != stored.RestrictedCharacterID {
		return fail("mismatch", fmt.Sprintf(errorCharacterMismatch, identity.CharacterName),
			fmt.Errorf("%w: want %d, got %d", sso.ErrIdentityMismatch, stored.RestrictedCharacterID, identity.CharacterID))
	}

	data, err := s.characters.GetCharacterData(ctx, pair.AccessToken)
	if err == nil && (data == nil || data.Character == nil) {
		err = fmt.Errorf("%w: no character data", sso.ErrProtocol)
	}
	if err != nil {
		return fail("character_data", ErrorCharacterData, err)
	}

	character, ownerChanged, err := s.updateCharacter(ctx, data, identity, pair)
	if err != nil {
		return fail("persistence", fmt.Sprintf(errorLoginFailed, data.Character.Name), err)
	}

	character = s.updateCharacterLog(ctx, character, pair.AccessToken)

	authorized, err := s.policy.IsAuthorized(ctx, character)
	if err != nil {
		return fail("policy_error", fmt.Sprintf(errorLoginFailed, character.Name), err)
	}
	if !authorized {
		return fail("forbidden", fmt.Sprintf(errorCharacterForbidden, character.Name),
			fmt.Errorf("%w: %d", sso.ErrAuthorizationDenied, character.ID))
	}

	userID, character, err := s.linkUser(ctx, sess, character, ownerChanged)
	if err != nil {
		return fail("login_failed", fmt.Sprintf(errorLoginFailed, character.Name), err)
	}

	sess.Login(userID, character.ID)
	s.logger.Info(ctx, "Character logged in", log.Fields{"character_id": character.ID, "user_id": userID})
	metrics.ObserveLogin("success")
	s.audit.Log(audit.Event{
		Action:      auditCallback,
		Outcome:     "success",
		Success:     true,
		SessionID:   sess.ID(),
		UserID:      userID,
		CharacterID: character.ID,
	})

	return Result{Redirect: s.cfg.MapPath}
}

// updateCharacter upserts corporation, alliance and then the character, so the
// character never references an organization that was not saved first.
// ownerChanged reports that the stored character belonged to a different account.
func (s *LoginService) updateCharacter(
	ctx context.Context,
	data *crest.CharacterData,
	identity *sso.IdentityRecord,
	pair sso.AccessTokenPair,
) (*domain.Character, bool, error) {
	var corporationID, allianceID int64

	if data.Corporation != nil {
		corp, err := s.repos.Corporations.Save(ctx, &domain.Corporation{
			ID:    data.Corporation.ID,
			Name:  data.Corporation.Name,
			IsNPC: data.Corporation.IsNPC,
		})
		if err != nil || corp == nil {
			return nil, false, persistenceError("corporation", err)
		}
		corporationID = corp.ID
	}

	if data.Alliance != nil {
		alliance, err := s.repos.Alliances.Save(ctx, &domain.Alliance{
			ID:        data.Alliance.ID,
			Name:      data.Alliance.Name,
			ShortName: data.Alliance.ShortName,
		})
		if err != nil || alliance == nil {
			return nil, false, persistenceError("alliance", err)
		}
		allianceID = alliance.ID
	}

	character, err := s.repos.Characters.GetByID(ctx, data.Character.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		character = &domain.Character{ID: data.Character.ID}
	case err != nil:
		return nil, false, persistenceError("character lookup", err)
	}

	ownerChanged := character.OwnerHash != "" && character.OwnerHash != identity.CharacterOwnerHash

	character.Name = data.Character.Name
	character.OwnerHash = identity.CharacterOwnerHash
	character.CrestAccessToken = pair.AccessToken
	character.CrestRefreshToken = pair.RefreshToken
	character.CrestAccessTokenUpdated = s.now().UTC()
	character.CorporationID = corporationID
	character.AllianceID = allianceID

	saved, err := s.repos.Characters.Save(ctx, character)
	if err != nil || saved == nil {
		return nil, false, persistenceError("character", err)
	}
	return saved, ownerChanged, nil
}

func persistenceError(what string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s upsert returned nothing", sso.ErrPersistence, what)
	}
	return fmt.Errorf("%w: %s: %v", sso.ErrPersistence, what, err)
}

// updateCharacterLog stores the current location on the character. Failures are logged
// and the character is returned unchanged.
func (s *LoginService) updateCharacterLog(ctx context.Context, character *domain.Character, accessToken string) *domain.Character {
	loc, err := s.locations.GetLocation(ctx, accessToken, s.cfg.LocationTTL, crest.FetchOptions{})
	if err != nil || loc.Timeout || loc.NoData {
		s.logger.Debug(ctx, "Character log not updated", log.Fields{
			"character_id": character.ID,
			"timeout":      loc.Timeout,
			"no_data":      loc.NoData,
		})
		return character
	}

	character.Log = &domain.CharacterLog{UpdatedAt: s.now().UTC()}
	if loc.System != nil {
		character.Log.System = &domain.LocationRef{ID: loc.System.ID, Name: loc.System.Name}
	}
	if loc.Station != nil {
		character.Log.Station = &domain.LocationRef{ID: loc.Station.ID, Name: loc.Station.Name}
	}

	saved, err := s.repos.Characters.Save(ctx, character)
	if err != nil {
		s.logger.Warn(ctx, "Unable to save character log", log.Fields{"character_id": character.ID, "error": err.Error()})
		return character
	}
	return saved
}

// linkUser resolves the owning user (active session user, then the character's linked
// user, then a new user named after the character), links the character to it and
// reloads the character.
func (s *LoginService) linkUser(ctx context.Context, sess *session.Session, character *domain.Character, ownerChanged bool) (string, *domain.Character, error) {
	var userID string

	if active := sess.ActiveUserID(); active != "" {
		if _, err := s.repos.Users.GetByID(ctx, active); err == nil {
			userID = active
		}
	}

	link, err := s.repos.UserCharacters.GetByCharacterID(ctx, character.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		link = nil
	case err != nil:
		return "", character, fmt.Errorf("loading user link: %w", err)
	}

	// A character that changed owner does not inherit the previous owner's user.
	if userID == "" && link != nil && !ownerChanged {
		if _, err := s.repos.Users.GetByID(ctx, link.UserID); err == nil {
			userID = link.UserID
		}
	}

	if userID == "" {
		user := &domain.User{Name: character.Name}
		if err := s.repos.Users.Create(ctx, user); err != nil {
			return "", character, fmt.Errorf("creating user: %w", err)
		}
		userID = user.ID
	}

	if link == nil {
		link = &domain.UserCharacter{CharacterID: character.ID}
	}
	if link.UserID != userID {
		link.UserID = userID
		if err := s.repos.UserCharacters.Save(ctx, link); err != nil {
			return "", character, fmt.Errorf("saving user link: %w", err)
		}
	}

	refreshed, err := s.repos.Characters.GetByID(ctx, character.ID)
	if err != nil {
		return "", character, fmt.Errorf("reloading character: %w", err)
	}
	return userID, refreshed, nil
}

// CurrentLocation returns the location of the session's active character, refreshing its
// access token when the stored one is older than sso.AccessTokenTTL.
func (s *LoginService) CurrentLocation(ctx context.Context, sess *session.Session) (crest.Location, error) {
	characterID := sess.ActiveCharacterID()
	if characterID == 0 {
		return crest.Location{}, ErrNotLoggedIn
	}

	character, err := s.repos.Characters.GetByID(ctx, characterID)
	if err != nil {
		return crest.Location{}, fmt.Errorf("loading character %d: %w", characterID, err)
	}

	persist := func(ctx context.Context, pair sso.AccessTokenPair, updated time.Time) error {
		character.CrestAccessToken = pair.AccessToken
		character.CrestRefreshToken = pair.RefreshToken
		character.CrestAccessTokenUpdated = updated.UTC()
		_, err := s.repos.Characters.Save(ctx, character)
		return err
	}

	src := sso.NewCharacterTokenSource(ctx, s.tokens, sso.StoredToken{
		AccessToken:  character.CrestAccessToken,
		RefreshToken: character.CrestRefreshToken,
		Updated:      character.CrestAccessTokenUpdated,
	}, persist)

	token, err := src.Token()
	if err != nil {
		s.logger.Warn(ctx, "Unable to get a valid access_token", log.Fields{"character_id": characterID, "error": err.Error()})
		return crest.Location{}, err
	}

	return s.locations.GetLocation(ctx, token.AccessToken, s.cfg.LocationTTL, crest.FetchOptions{})
}
