package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	echoapi "github.com/pilab-dev/shadow-crest/api/echo"
	"github.com/pilab-dev/shadow-crest/cache"
	"github.com/pilab-dev/shadow-crest/config"
	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/session"
	"github.com/stretchr/testify/assert"
)

func TestNewHTTPServer(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()

	cfg := &config.ServerConfig{HTTPPort: "9090", AppURL: "https://map.example.com", OtelServiceName: "test"}
	srv := NewHTTPServer(cfg, log.Nop(), echoapi.NewLoginAPI(nil, nil, log.Nop()), session.NewManager(store, session.DefaultTTL))
	assert.Equal(t, ":9090", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestNewHTTPServer_UnknownRoute(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()

	srv := NewHTTPServer(&config.ServerConfig{}, log.Nop(), echoapi.NewLoginAPI(nil, nil, log.Nop()), session.NewManager(store, session.DefaultTTL))

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewHTTPServer_WriteTimeoutCoversCallback(t *testing.T) {
	store := cache.NewMemoryStore()
	defer store.Close()

	api := echoapi.NewLoginAPI(nil, nil, log.Nop())
	sessions := session.NewManager(store, session.DefaultTTL)

	srv := NewHTTPServer(&config.ServerConfig{CrestTimeout: 3 * time.Second}, log.Nop(), api, sessions)
	assert.Greater(t, srv.WriteTimeout, 27*time.Second)

	srv = NewHTTPServer(&config.ServerConfig{CrestTimeout: 5 * time.Second}, log.Nop(), api, sessions)
	assert.Greater(t, srv.WriteTimeout, 45*time.Second)

	srv = NewHTTPServer(&config.ServerConfig{}, log.Nop(), api, sessions)
	assert.Equal(t, callbackHops*webclient.DefaultTimeout+writeHeadroom, srv.WriteTimeout)
}
