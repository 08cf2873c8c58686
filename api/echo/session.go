package echo

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/session"
)

// SessionCookieName is the cookie carrying the session id.
const SessionCookieName = "pf_session"

const sessionContextKey = "session"

// SessionMiddleware loads the session named by the cookie into the echo context and
// persists it right before the response headers are written, if it changed. A session
// that just logged in is saved under a new id.
func SessionMiddleware(manager *session.Manager, secure bool, logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			var id string
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				id = cookie.Value
			}

			sess, err := manager.Load(ctx, id)
			if err != nil {
				logger.Error(ctx, "Unable to load session", err)
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
			}
			c.Set(sessionContextKey, sess)

			c.Response().Before(func() {
				if !sess.Dirty() {
					return
				}
				if sess.NeedsRenewal() {
					if err := manager.Rotate(ctx, sess); err != nil {
						logger.Warn(ctx, "Unable to drop the pre-login session", log.Fields{"session_id": sess.ID(), "error": err.Error()})
					}
				}
				if err := manager.Save(ctx, sess); err != nil {
					logger.Error(ctx, "Unable to save session", err, log.Fields{"session_id": sess.ID()})
					return
				}
				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    sess.ID(),
					Path:     "/",
					Expires:  time.Now().Add(manager.TTL()),
					MaxAge:   int(manager.TTL() / time.Second),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			})

			return next(c)
		}
	}
}

// SessionFrom returns the session attached by SessionMiddleware.
func SessionFrom(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionContextKey).(*session.Session)
	return sess
}
