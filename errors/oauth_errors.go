// Package errors decodes the error documents returned by the OAuth 2.0 token endpoint.
package errors

import (
	"encoding/json"
	"fmt"
)

// OAuth2Error is the error body of a rejected token request (RFC 6749 section 5.2).
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *OAuth2Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Standard OAuth2 error codes
const (
	InvalidRequest         = "invalid_request"
	UnauthorizedClient     = "unauthorized_client"
	AccessDenied           = "access_denied"
	UnsupportedGrantType   = "unsupported_grant_type"
	InvalidScope           = "invalid_scope"
	InvalidClient          = "invalid_client"
	InvalidGrant           = "invalid_grant"
	ServerError            = "server_error"
	TemporarilyUnavailable = "temporarily_unavailable"
)

// Parse extracts an OAuth2Error from a response body. It returns nil when the body
// is not a JSON object carrying an "error" member.
func Parse(body []byte) *OAuth2Error {
	var e OAuth2Error
	if err := json.Unmarshal(body, &e); err != nil || e.Code == "" {
		return nil
	}
	return &e
}

// Temporary reports whether retrying the same request later may succeed.
func (e *OAuth2Error) Temporary() bool {
	return e.Code == ServerError || e.Code == TemporarilyUnavailable
}

// Revoked reports whether the grant (code or refresh token) can no longer be used.
func (e *OAuth2Error) Revoked() bool {
	return e.Code == InvalidGrant
}
