// Package session holds per user-agent login state. A Session is passed explicitly into
// every login operation and persisted through a Manager between requests.
package session

import (
	"encoding/json"
	"sync"
)

// Restriction values recorded with an authorization request.
const (
	// RestrictAddCharacter adds a character to the active user.
	RestrictAddCharacter int64 = -1
	// Unrestricted accepts any character.
	Unrestricted int64 = 0
)

// AuthorizationState is the CSRF state and login restriction recorded when a user is
// redirected to the SSO. It is consumed by exactly one callback.
type AuthorizationState struct {
	State                 string `json:"state"`
	RestrictedCharacterID int64  `json:"restrictedCharacterId"`
}

// FromMap reports whether the login was started from an active session
// (adding or switching a character) rather than from the login view.
func (a AuthorizationState) FromMap() bool {
	return a.RestrictedCharacterID != Unrestricted
}

type data struct {
	Authorization *AuthorizationState `json:"authorization,omitempty"`
	Error         string              `json:"error,omitempty"`
	UserID        string              `json:"userId,omitempty"`
	CharacterID   int64               `json:"characterId,omitempty"`
}

// Session is the state of one user-agent.
type Session struct {
	id string

	mu    sync.Mutex
	data  data
	dirty bool
	renew bool
}

// New creates an empty session.
func New(id string) *Session {
	return &Session{id: id}
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// SetAuthorizationState records the state of a new authorization request, replacing any
// previous one.
func (s *Session) SetAuthorizationState(state AuthorizationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Authorization = &state
	s.dirty = true
}

// TakeAuthorizationState returns the stored state and clears it.
func (s *Session) TakeAuthorizationState() (AuthorizationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Authorization == nil {
		return AuthorizationState{}, false
	}
	state := *s.data.Authorization
	s.data.Authorization = nil
	s.dirty = true
	return state, true
}

// SetError stores a message for the next page load.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Error = msg
	s.dirty = true
}

// Error returns the pending message without clearing it.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Error
}

// TakeError returns the pending message and clears it.
func (s *Session) TakeError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.data.Error
	if msg != "" {
		s.data.Error = ""
		s.dirty = true
	}
	return msg
}

// Login marks userID and characterID as the active identity. A login flags the
// session for a new id, see Manager.Rotate.
func (s *Session) Login(userID string, characterID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.UserID = userID
	s.data.CharacterID = characterID
	s.dirty = true
	if userID != "" {
		s.renew = true
	}
}

// Logout clears the active identity.
func (s *Session) Logout() {
	s.Login("", 0)
}

// ActiveUserID returns the logged in user, or "".
func (s *Session) ActiveUserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.UserID
}

// ActiveCharacterID returns the logged in character, or 0.
func (s *Session) ActiveCharacterID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.CharacterID
}

// Dirty reports whether the session changed since it was loaded.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// NeedsRenewal reports whether a login happened since the id was issued.
func (s *Session) NeedsRenewal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renew
}

func (s *Session) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s.data)
}

func (s *Session) UnmarshalJSON(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Unmarshal(b, &s.data)
}
