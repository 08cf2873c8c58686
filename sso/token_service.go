package sso

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	oautherrors "github.com/pilab-dev/shadow-crest/errors"
	"github.com/pilab-dev/shadow-crest/internal/metrics"
	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/log"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"
)

// AccessTokenPair is the normalized token endpoint response.
// An empty field means the provider did not return it.
type AccessTokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both halves are present.
func (p AccessTokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// TokenService performs authorization code and refresh token grants.
// It never retries; retry policy belongs to the caller.
type TokenService struct {
	cfg    Config
	http   Requester
	logger log.Logger
}

// NewTokenService creates a TokenService.
func NewTokenService(cfg Config, requester Requester, logger log.Logger) *TokenService {
	return &TokenService{cfg: cfg, http: requester, logger: logger}
}

// ExchangeAuthorizationCode trades an authorization code for a token pair.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, code string) (AccessTokenPair, error) {
	if code == "" {
		s.logger.Warn(ctx, "Unable to get a valid access_token: empty authorization code")
		return AccessTokenPair{}, fmt.Errorf("%w: empty authorization code", ErrProtocol)
	}
	return s.requestAccessData(ctx, url.Values{
		"grant_type": {grantAuthorizationCode},
		"code":       {code},
	})
}

// RefreshAccessToken trades a refresh token for a fresh token pair.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken string) (AccessTokenPair, error) {
	if refreshToken == "" {
		s.logger.Warn(ctx, "Unable to get a valid access_token: empty refresh token")
		return AccessTokenPair{}, fmt.Errorf("%w: empty refresh token", ErrProtocol)
	}
	return s.requestAccessData(ctx, url.Values{
		"grant_type":    {grantRefreshToken},
		"refresh_token": {refreshToken},
	})
}

func (s *TokenService) authorizationHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s.cfg.ClientID+":"+s.cfg.SecretKey))
}

func (s *TokenService) requestAccessData(ctx context.Context, params url.Values) (AccessTokenPair, error) {
	grantType := params.Get("grant_type")
	fields := log.Fields{"grant_type": grantType}

	tokenURL, err := s.cfg.TokenURL()
	if err != nil {
		s.logger.Error(ctx, `Invalid "SSO_CCP_URL" url`, err, fields)
		metrics.ObserveTokenRequest(grantType, "config_error")
		return AccessTokenPair{}, err
	}

	resp, err := s.http.Request(ctx, tokenURL.String(), webclient.Options{
		Method:    http.MethodPost,
		Timeout:   s.cfg.timeout(),
		UserAgent: s.cfg.UserAgent,
		Header: http.Header{
			"Authorization": {s.authorizationHeader()},
			"Content-Type":  {"application/x-www-form-urlencoded"},
			"Host":          {tokenURL.Host},
		},
		Body: params.Encode(),
	})
	if err != nil {
		s.logger.Error(ctx, "Unable to get a valid access_token", err, fields)
		metrics.ObserveTokenRequest(grantType, "error")
		return AccessTokenPair{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.TimedOut {
		s.logger.Warn(ctx, "Unable to get a valid access_token: request timed out", fields)
		metrics.ObserveTokenRequest(grantType, "timeout")
		return AccessTokenPair{}, ErrTransportTimeout
	}
	if resp.Body == "" {
		s.logger.Warn(ctx, "Unable to get a valid access_token: empty response", fields)
		metrics.ObserveTokenRequest(grantType, "empty")
		return AccessTokenPair{}, fmt.Errorf("%w: empty token response (status %d)", ErrProtocol, resp.StatusCode)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &data); err != nil {
		s.logger.Error(ctx, "Unable to decode token response", err, fields)
		metrics.ObserveTokenRequest(grantType, "malformed")
		return AccessTokenPair{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	var pair AccessTokenPair
	if v, ok := data["access_token"].(string); ok {
		pair.AccessToken = v
	}
	if v, ok := data["refresh_token"].(string); ok {
		pair.RefreshToken = v
	}

	if pair.AccessToken == "" && pair.RefreshToken == "" {
		providerErr := oautherrors.Parse([]byte(resp.Body))
		if providerErr == nil {
			providerErr = &oautherrors.OAuth2Error{Code: "missing_tokens"}
		}
		s.logger.Warn(ctx, "Token response carried no tokens", log.Fields{
			"grant_type":        grantType,
			"status":            resp.StatusCode,
			"error":             providerErr.Code,
			"error_description": providerErr.Description,
		})
		metrics.ObserveTokenRequest(grantType, "rejected")
		return pair, fmt.Errorf("%w: %w", ErrProtocol, providerErr)
	}

	metrics.ObserveTokenRequest(grantType, "ok")
	return pair, nil
}
