package logx

import (
	"io"
	"log"
	"os"
)

// Maybe returns a logger writing to stderr when enabled, otherwise one that
// discards everything. keeps diagnostic output an explicit dependency rather
// than an ambient global.
func Maybe(enabled bool) *log.Logger {
	if enabled {
		return log.New(os.Stderr, log.Prefix(), log.Flags()|log.Lshortfile)
	}

	return log.New(io.Discard, log.Prefix(), log.Flags())
}
