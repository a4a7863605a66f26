package testutil

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a logger that discards output.
func NewTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

// NewTestLoggerWithOutput returns a debug logger writing through t.Log, so
// output only shows for failing or verbose tests.
func NewTestLoggerWithOutput(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// NewBufferLogger returns a debug logger writing JSON lines to the returned
// buffer, for asserting on log output.
func NewBufferLogger() (zerolog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return zerolog.New(&buf).Level(zerolog.DebugLevel), &buf
}
