// Package errors provides cleanup helpers that log instead of dropping
// errors.
package errors

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a failure with msg.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// CloseWith closes closer and joins a close failure into *errp when it is
// still nil. It is meant for functions whose result depends on a complete
// write.
func CloseWith(errp *error, closer io.Closer, what string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil && *errp == nil {
		*errp = fmt.Errorf("close %s: %w", what, err)
	}
}

// Must panics if err is not nil.
// Use only for initialization code where failure should halt the program.
func Must(err error, msg string) {
	if err != nil {
		panic(fmt.Sprintf("%s: %v", msg, err))
	}
}
