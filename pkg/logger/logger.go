package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/stratplan/pkg/config"
)

// Logger wraps zerolog with the fields every stratplan entry carries
// ⭐ SSOT: all logging goes through this package
type Logger struct {
	zlog zerolog.Logger
}

// New builds the process logger from LOG_LEVEL and LOG_FORMAT
// ⭐ SSOT: zerolog instances are created here only
func New(cfg *config.Config) *Logger {
	var output io.Writer = os.Stdout
	if cfg.LogFormat == "console" || cfg.LogFormat == "pretty" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return NewWithWriter(cfg, output)
}

// NewWithWriter writes JSON lines to w. Tests use it to inspect entries.
func NewWithWriter(cfg *config.Config, w io.Writer) *Logger {
	zerolog.SetGlobalLevel(parseLogLevel(cfg.LogLevel))

	zlog := zerolog.New(w).
		With().
		Timestamp().
		Str("service", "stratplan").
		Str("env", cfg.Env).
		Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything. Used by tests and CLI commands
// that print their own output.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// parseLogLevel maps LOG_LEVEL to a zerolog level. "warning" is accepted as
// an alias and anything unrecognised falls back to info.
func parseLogLevel(levelStr string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(levelStr))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func (l *Logger) Debug(msg string) { l.zlog.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.zlog.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.zlog.Warn().Msg(msg) }
func (l *Logger) Error(msg string) { l.zlog.Error().Msg(msg) }

// Component tags entries with the owning package,
// e.g. "review.service" or "progress.repository"
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// Analysis tags entries with the analysis a review or commit works on
func (l *Logger) Analysis(id string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("analysis_id", id).Logger()}
}

func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger()}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zlog.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zlog: ctx.Logger()}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{zlog: l.zlog.With().Err(err).Logger()}
}
