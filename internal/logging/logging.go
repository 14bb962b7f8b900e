package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger: a console writer on stderr at info
// level (debug when verbose) and, when transcript is non-nil, a JSON copy
// of every event at debug level.
func Init(verbose bool, transcript io.Writer) {
	initWith(os.Stderr, verbose, transcript)
}

func initWith(console io.Writer, verbose bool, transcript io.Writer) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	var out io.Writer = &zerolog.FilteredLevelWriter{
		Writer: zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}},
		Level:  level,
	}
	if transcript != nil {
		out = zerolog.MultiLevelWriter(out, transcript)
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
