package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoapi "github.com/pilab-dev/shadow-crest/api/echo"
	"github.com/pilab-dev/shadow-crest/config"
	"github.com/pilab-dev/shadow-crest/internal/webclient"
	"github.com/pilab-dev/shadow-crest/log"
	"github.com/pilab-dev/shadow-crest/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// callbackHops is the number of sequential upstream calls a callback can make:
// token exchange, verify, three hops for character data and four for the location.
const callbackHops = 9

// writeHeadroom covers storage writes and rendering after the last upstream hop.
const writeHeadroom = 10 * time.Second

// writeTimeout bounds a response so the slowest callback still gets its redirect out.
func writeTimeout(hopTimeout time.Duration) time.Duration {
	if hopTimeout <= 0 {
		hopTimeout = webclient.DefaultTimeout
	}
	return callbackHops*hopTimeout + writeHeadroom
}

// NewHTTPServer creates and configures the echo HTTP server of the login API.
func NewHTTPServer(
	cfg *config.ServerConfig,
	appLogger log.Logger,
	loginAPI *echoapi.LoginAPI,
	sessions *session.Manager,
) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none'; form-action 'self'; base-uri 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	e.Use(tracingMiddleware(cfg.OtelServiceName))

	// request logging through our logger interface
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := log.Fields{
				"method":     v.Method,
				"path":       v.URIPath,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"ip":         v.RemoteIP,
				"user_agent": v.UserAgent,
			}
			if v.Error != nil {
				appLogger.Error(c.Request().Context(), "HTTP Request", v.Error, fields)
				return nil
			}
			appLogger.Info(c.Request().Context(), "HTTP Request", fields)
			return nil
		},
	}))

	secure := strings.HasPrefix(cfg.AppURL, "https://")
	loginAPI.RegisterRoutes(e, echoapi.SessionMiddleware(sessions, secure, appLogger.Named("session")))

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout(cfg.CrestTimeout),
		IdleTimeout:  120 * time.Second,
	}
}

// tracingMiddleware opens a server span per request, continuing any propagated trace.
func tracingMiddleware(serviceName string) echo.MiddlewareFunc {
	tracer := otel.Tracer(serviceName)
	propagator := otel.GetTextMapPropagator()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			ctx, span := tracer.Start(ctx, req.Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", c.Path()),
				),
			)
			defer span.End()

			c.SetRequest(req.WithContext(ctx))
			err := next(c)
			span.SetAttributes(attribute.Int("http.status_code", c.Response().Status))
			if err != nil {
				span.RecordError(err)
			}
			return err
		}
	}
}
