package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"candle-replay/src/models"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	out    io.Writer
	level  string
	logger zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stdout.
// The level is taken from cfg when it is a config model, INFO otherwise.
func NewLogger(cfg interface{}, name string) *Logger {
	return NewLoggerWithWriter(os.Stdout, name, levelFromConfig(cfg))
}

// -----------------------------------------------------------------------------

// NewLoggerWithWriter creates a Logger on an arbitrary writer.
func NewLoggerWithWriter(w io.Writer, name string, level string) *Logger {
	zl := zerolog.New(w).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("component", name).
		Logger()
	return &Logger{name: name, out: w, level: level, logger: zl}
}

// -----------------------------------------------------------------------------

// Named returns a child logger sharing the writer and level.
func (l *Logger) Named(name string) *Logger {
	return NewLoggerWithWriter(l.out, name, l.level)
}

// -----------------------------------------------------------------------------

// ParseLevel maps config level names onto zerolog levels.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func levelFromConfig(cfg interface{}) string {
	switch c := cfg.(type) {
	case *models.MConfig:
		if c != nil {
			return c.LogLevel
		}
	case models.MConfig:
		return c.LogLevel
	}
	return "INFO"
}

// -----------------------------------------------------------------------------

// Debug logs debugging messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msg(fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, args...))
	os.Exit(1)
}
