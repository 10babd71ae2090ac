package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

// Log is the logger used by the binaries. Setup also installs it as the
// zerolog/log global so internal packages write through the same output.
var Log zerolog.Logger

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Setup(os.Stdout, "info", "console")
}

// Setup configures output, level and format ("console" or "json").
// Unknown levels fall back to info.
func Setup(w io.Writer, levelStr, format string) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}

	Log = New(w, format).Level(level)
	zerolog.SetGlobalLevel(level)
	log.Logger = Log

	if err != nil {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
	}
}

// New builds a logger writing to w
func New(w io.Writer, format string) zerolog.Logger {
	if !strings.EqualFold(format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}
