package audit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "shadow-crest")
	l.now = func() time.Time { return time.Date(2016, 5, 1, 12, 0, 0, 0, time.UTC) }

	l.Log(Event{Action: "sso_callback", Outcome: "forbidden", CharacterID: 42, Error: "denied"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shadow-crest", line["service"])
	assert.Equal(t, "sso_callback", line["action"])
	assert.Equal(t, "forbidden", line["outcome"])
	assert.Equal(t, false, line["success"])
	assert.Equal(t, float64(42), line["character_id"])
	assert.Equal(t, "denied", line["error"])
	assert.Equal(t, "2016-05-01T12:00:00Z", line["timestamp"])
	assert.NotContains(t, line, "user_id")
}

func TestLogger_NilAndNop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Log(Event{Action: "x"}) })
	assert.NotPanics(t, func() { Nop().Log(Event{Action: "x"}) })
}
