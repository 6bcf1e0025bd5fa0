// Package logging builds the console logger used by the CLI.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// New returns a human-readable logger writing to w. Unknown levels fall
// back to info, and the fallback is reported on the returned logger.
func New(level string, w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	log := zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	if err != nil {
		log.Warn().Str("level", level).Msg("invalid log level, defaulting to info")
	}
	return log
}
