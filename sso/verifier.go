package sso

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/log"
)

// IdentityRecord is the canonical identity behind an access token.
type IdentityRecord struct {
	CharacterID        int64  `json:"CharacterID"`
	CharacterName      string `json:"CharacterName"`
	CharacterOwnerHash string `json:"CharacterOwnerHash"`
	ExpiresOn          string `json:"ExpiresOn,omitempty"`
	Scopes             string `json:"Scopes,omitempty"`
	TokenType          string `json:"TokenType,omitempty"`
}

// Verifier resolves an access token to the character it was issued for.
type Verifier struct {
	cfg    Config
	http   Requester
	logger log.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg Config, requester Requester, logger log.Logger) *Verifier {
	return &Verifier{cfg: cfg, http: requester, logger: logger}
}

// VerifyIdentity calls the verify endpoint with a bearer token.
// A nil record is returned for misconfiguration, timeouts and empty or undecodable bodies.
func (v *Verifier) VerifyIdentity(ctx context.Context, accessToken string) (*IdentityRecord, error) {
	verifyURL, err := v.cfg.VerifyURL()
	if err != nil {
		v.logger.Error(ctx, `Invalid "SSO_CCP_URL" url`, err)
		return nil, err
	}

	resp, err := v.http.Request(ctx, verifyURL.String(), webclient.Options{
		Method:    http.MethodGet,
		Timeout:   v.cfg.timeout(),
		UserAgent: v.cfg.UserAgent,
		Header: http.Header{
			"Authorization": {"Bearer " + accessToken},
			"Host":          {verifyURL.Host},
		},
	})
	if err != nil {
		v.logger.Error(ctx, "Unable to verify character data", err)
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.TimedOut {
		v.logger.Warn(ctx, "Unable to verify character data: request timed out")
		return nil, ErrTransportTimeout
	}
	if resp.Body == "" {
		v.logger.Warn(ctx, "Unable to verify character data: empty response", log.Fields{"status": resp.StatusCode})
		return nil, fmt.Errorf("%w: empty verify response", ErrProtocol)
	}

	var record IdentityRecord
	if err := json.Unmarshal([]byte(resp.Body), &record); err != nil {
		v.logger.Error(ctx, "Unable to decode verify response", err)
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if record.CharacterID == 0 {
		v.logger.Warn(ctx, "Verify response carried no character", log.Fields{"status": resp.StatusCode})
		return nil, fmt.Errorf("%w: verify response without CharacterID", ErrProtocol)
	}

	return &record, nil
}
