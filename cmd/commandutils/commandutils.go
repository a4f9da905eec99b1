// Package commandutils provides common utility functions for CLI interfaces.
package commandutils

import (
	"fmt"
	"log"

	"github.com/james-lawrence/safedrain"
	"github.com/james-lawrence/safedrain/internal/envx"
)

// LogCause logs the cause of a failed command, with the stack trace under
// verbose diagnostics, and passes the error through for exit code handling.
func LogCause(err error) error {
	if err == nil {
		return err
	}

	if envx.Boolean(false, safedrain.EnvLogsVerbose) {
		log.Output(2, fmt.Sprintf("%+v\n", err))
		return err
	}

	log.Output(2, fmt.Sprintln(err))
	return err
}
