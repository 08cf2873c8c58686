package sso

import "errors"

var (
	// ErrConfiguration marks a malformed or missing SSO setting (endpoint url, client id).
	ErrConfiguration = errors.New("sso: invalid configuration")
	// ErrTransportTimeout marks a provider call that exceeded its timeout.
	ErrTransportTimeout = errors.New("sso: service timeout")
	// ErrTransport marks a provider call that failed below HTTP (connection refused, DNS).
	ErrTransport = errors.New("sso: transport failure")
	// ErrProtocol marks an empty or undecodable provider response.
	ErrProtocol = errors.New("sso: unexpected provider response")
	// ErrStateMismatch marks a callback whose state is absent or does not match the stored one.
	ErrStateMismatch = errors.New("sso: state mismatch")
	// ErrIdentityMismatch marks a verified character that differs from the requested one.
	ErrIdentityMismatch = errors.New("sso: identity mismatch")
	// ErrAuthorizationDenied marks a verified character that is not permitted to log in.
	ErrAuthorizationDenied = errors.New("sso: character not authorized")
	// ErrPersistence marks an upsert that did not yield a usable entity.
	ErrPersistence = errors.New("sso: persistence failure")
)
