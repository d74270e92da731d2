// Package logging provides the zerolog-backed implementation of the
// types.Logger interface used by every package in this module.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/slackmgr/types"
)

var setTimeFormat sync.Once

// Logger adapts a zerolog.Logger to types.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New returns a JSON logger writing to stderr at the given level. An unknown
// or empty level falls back to info. When console is true the output is
// human readable instead of JSON.
func New(level string, console bool) *Logger {
	var w io.Writer = os.Stderr

	if console {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	return NewWithWriter(w, level)
}

// NewWithWriter is like New but writes to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	setTimeFormat.Do(func() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	})

	return &Logger{
		zl: zerolog.New(w).With().Timestamp().Logger().Level(ParseLevel(level)),
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}

	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}

	return l
}

func (l *Logger) WithField(key string, value any) types.Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) WithFields(fields map[string]any) types.Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string) {
	l.zl.Debug().Msg(msg)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Info(msg string) {
	l.zl.Info().Msg(msg)
}

func (l *Logger) Infof(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warn(msg string) {
	l.zl.Warn().Msg(msg)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Error(msg string) {
	l.zl.Error().Msg(msg)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}

// Fatal logs at fatal level and exits the process.
func (l *Logger) Fatal(msg string) {
	l.zl.Fatal().Msg(msg)
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.zl.Fatal().Msgf(format, args...)
}
