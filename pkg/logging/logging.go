package logging

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sink encodings.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// SetupLogger configures the global logger. level is a zerolog level name
// (trace, debug, info, warn, error, fatal, panic); an unknown level or
// format is reported so the caller can refuse to start.
func SetupLogger(version, level, format string) error {
	zerolog.TimestampFieldName = "timestamp"
	zerolog.TimeFieldFormat = time.RFC3339Nano

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("unknown log level %q", level)
	}
	zerolog.SetGlobalLevel(parsed)

	switch format {
	case FormatText:
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	case FormatJSON, "":
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	log.Logger = log.With().
		Str("version", version).
		Str("goversion", runtime.Version()).
		Logger()
	return nil
}
