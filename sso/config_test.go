package sso_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/pilab-dev/shadow-crest/sso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_AuthCodeURL(t *testing.T) {
	cfg := sso.Config{
		BaseURL:     "https://login.example.com",
		ClientID:    "client-id",
		SecretKey:   "secret",
		RedirectURL: "https://app.example.com/sso/callbackAuthorization",
	}

	raw, err := cfg.AuthCodeURL("0123456789abcdef01234567")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "login.example.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "https://app.example.com/sso/callbackAuthorization", q.Get("redirect_uri"))
	assert.Equal(t, "characterLocationRead characterNavigationWrite", q.Get("scope"))
	assert.Equal(t, "0123456789abcdef01234567", q.Get("state"))
}

func TestConfig_MissingClientID(t *testing.T) {
	_, err := sso.Config{BaseURL: "https://login.example.com"}.AuthCodeURL("s")
	assert.True(t, errors.Is(err, sso.ErrConfiguration))
}

func TestValidateURL(t *testing.T) {
	for _, raw := range []string{"", "login.example.com", "ftp://login.example.com", "https://"} {
		_, err := sso.ValidateURL(raw)
		assert.True(t, errors.Is(err, sso.ErrConfiguration), raw)
	}

	u, err := sso.ValidateURL(" https://login.example.com ")
	require.NoError(t, err)
	assert.Equal(t, "login.example.com", u.Host)
}

func TestConfig_Endpoints(t *testing.T) {
	cfg := sso.Config{BaseURL: "https://login.example.com/"}

	token, err := cfg.TokenURL()
	require.NoError(t, err)
	assert.Equal(t, "https://login.example.com/oauth/token", token.String())

	verify, err := cfg.VerifyURL()
	require.NoError(t, err)
	assert.Equal(t, "https://login.example.com/oauth/verify", verify.String())
}
