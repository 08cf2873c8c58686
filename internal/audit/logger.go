package audit

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Event is one login attempt as recorded in the audit trail.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	Outcome     string    `json:"outcome"`
	Success     bool      `json:"success"`
	SessionID   string    `json:"session_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	CharacterID int64     `json:"character_id,omitempty"`
	Error       string    `json:"error,omitempty"` // error message if the attempt failed
}

// Logger writes audit events as one JSON line each.
type Logger struct {
	zl  zerolog.Logger
	now func() time.Time
}

// New creates a Logger writing to w.
func New(w io.Writer, service string) *Logger {
	return &Logger{
		zl:  zerolog.New(w).With().Str("service", service).Logger(),
		now: time.Now,
	}
}

// Nop returns a Logger that drops every event.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), now: time.Now}
}

// Log records an audit event. A zero Timestamp is filled in.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	e := l.zl.Log().
		Time("timestamp", event.Timestamp).
		Str("action", event.Action).
		Str("outcome", event.Outcome).
		Bool("success", event.Success)
	if event.SessionID != "" {
		e = e.Str("session_id", event.SessionID)
	}
	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.CharacterID != 0 {
		e = e.Int64("character_id", event.CharacterID)
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	e.Msg("audit")
}
