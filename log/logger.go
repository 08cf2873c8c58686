package log

import "context"

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields = map[string]interface{}

// Logger defines the logging surface used across the SSO and CREST packages.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	Error(ctx context.Context, msg string, err error, fields ...Fields)
	Fatal(ctx context.Context, msg string, err error, fields ...Fields) // underlying logger exits the process
	With(fields Fields) Logger
	// Named returns a logger writing to a named channel, e.g. "crest" or "sso".
	Named(component string) Logger
}

// Nop returns a Logger that discards everything. Handy in tests.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...Fields)        {}
func (nopLogger) Info(context.Context, string, ...Fields)         {}
func (nopLogger) Warn(context.Context, string, ...Fields)         {}
func (nopLogger) Error(context.Context, string, error, ...Fields) {}
func (nopLogger) Fatal(context.Context, string, error, ...Fields) {}
func (n nopLogger) With(Fields) Logger                            { return n }
func (n nopLogger) Named(string) Logger                           { return n }
