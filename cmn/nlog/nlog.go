// Package nlog is the process-wide structured logger. One global writer is
// configured at startup (see Init); every other package logs through the
// package-level functions rather than constructing its own logger.
package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

func init() {
	log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Config controls how Init configures the global logger.
type Config struct {
	// Pretty enables a human-readable console writer (interactive/dev use);
	// when false, output is newline-delimited JSON suited to log collectors.
	Pretty bool
	Level  string // debug|info|warn|error
	Output io.Writer // defaults to os.Stderr when nil
}

// Init replaces the global logger. Safe to call once at process start;
// calling it again (e.g. on a config reload) swaps the logger atomically.
func Init(c Config) {
	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	if c.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	mu.Lock()
	log = l
	mu.Unlock()
}

func get() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Infof(format string, args ...any)    { get().Info().Msgf(format, args...) }
func Infoln(args ...any)                  { get().Info().Msg(sprint(args...)) }
func Warnf(format string, args ...any)    { get().Warn().Msgf(format, args...) }
func Warnln(args ...any)                  { get().Warn().Msg(sprint(args...)) }
func Errorf(format string, args ...any)   { get().Error().Msgf(format, args...) }
func Errorln(args ...any)                 { get().Error().Msg(sprint(args...)) }
func Debugf(format string, args ...any)   { get().Debug().Msgf(format, args...) }
func Fatalf(format string, args ...any)   { get().Fatal().Msgf(format, args...) }

// WithField starts a single info-level log event carrying one structured
// field; the caller finishes it with Msg/Msgf, which emits one log line.
func WithField(key string, val any) *zerolog.Event {
	return get().Info().Interface(key, val)
}

func sprint(args ...any) string {
	if len(args) == 1 {
		if s, ok := args[0].(string); ok {
			return s
		}
	}
	return fmt.Sprint(args...)
}
