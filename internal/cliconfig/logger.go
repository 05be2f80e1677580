package cliconfig

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bft-labs/courier/pkg/log"
)

// Logger returns the console logger used by the CLI, writing to stderr.
// Unknown levels fall back to info.
func Logger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return log.NewConsoleLogger(os.Stderr, lvl)
}
