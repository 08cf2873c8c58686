package sso

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"golang.org/x/oauth2"
)

// AccessTokenTTL is the lifetime CCP grants an access token.
const AccessTokenTTL = 20 * time.Minute

// DefaultScopes are the CREST scopes requested on login.
var DefaultScopes = []string{
	"characterLocationRead",
	"characterNavigationWrite",
}

// Requester issues HTTP requests. *webclient.Client implements it.
type Requester interface {
	Request(ctx context.Context, rawURL string, opts webclient.Options) (*webclient.Response, error)
}

// Config holds the SSO client settings.
type Config struct {
	BaseURL     string // e.g. https://login.eveonline.com
	ClientID    string
	SecretKey   string
	RedirectURL string
	Scopes      []string
	Timeout     time.Duration
	UserAgent   string
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return webclient.DefaultTimeout
	}
	return c.Timeout
}

func (c Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return DefaultScopes
	}
	return c.Scopes
}

// ValidateURL reports whether raw is an absolute http(s) url with a host.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrConfiguration, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) url", ErrConfiguration, raw)
	}
	return u, nil
}

func (c Config) endpoint(path string) (*url.URL, error) {
	base, err := ValidateURL(c.BaseURL)
	if err != nil {
		return nil, err
	}
	return base.JoinPath(path), nil
}

// AuthorizeURL is the endpoint users are redirected to.
func (c Config) AuthorizeURL() (*url.URL, error) { return c.endpoint("/oauth/authorize") }

// TokenURL is the endpoint codes and refresh tokens are exchanged at.
func (c Config) TokenURL() (*url.URL, error) { return c.endpoint("/oauth/token") }

// VerifyURL is the endpoint returning the identity behind an access token.
func (c Config) VerifyURL() (*url.URL, error) { return c.endpoint("/oauth/verify") }

// OAuth2Config builds the x/oauth2 view of the settings.
func (c Config) OAuth2Config() (*oauth2.Config, error) {
	if c.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client id", ErrConfiguration)
	}
	authURL, err := c.AuthorizeURL()
	if err != nil {
		return nil, err
	}
	tokenURL, err := c.TokenURL()
	if err != nil {
		return nil, err
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.SecretKey,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.scopes(),
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL.String(),
			TokenURL:  tokenURL.String(),
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}, nil
}

// AuthCodeURL returns the authorize redirect carrying response_type=code,
// redirect_uri, client_id, the space joined scopes and state.
func (c Config) AuthCodeURL(state string) (string, error) {
	conf, err := c.OAuth2Config()
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state), nil
}
