// Package logx configures the process-wide zerolog logger. The assistant
// emits structured JSON to stdout; set LOG_PRETTY_FORMAT for local runs.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Debug        bool `split_words:"true" default:"false"`
	PrettyFormat bool `split_words:"true" default:"false"`
}

// Init replaces the global logger. Called without arguments it installs the
// production defaults: JSON at info level.
func Init(opts ...Config) {
	var conf Config
	if len(opts) > 0 {
		conf = opts[0]
	}

	writer := io.Writer(os.Stdout)
	if conf.PrettyFormat {
		writer = zerolog.NewConsoleWriter()
	}

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}

	log.Logger = zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Caller().
		Stack().
		Logger()
}
