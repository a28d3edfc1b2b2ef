// Package logger configures the process-wide zerolog logger.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global level and a console writer on stdout.
// Unknown levels fall back to info.
func Init(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

// Component returns a child of the global logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
