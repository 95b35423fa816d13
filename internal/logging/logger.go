// Package logging provides the process-wide zerolog logger.
//
// Initialize once at startup and hand the logger to request-scoped code
// through the context:
//
//	logging.Init(logging.Config{Level: "debug", Format: "console"})
//	ctx = logging.WithRun(ctx, logging.NewRunID())
//	zerolog.Ctx(ctx).Info().Msg("recovery started")
//
// The models read their logger with zerolog.Ctx, so a context without a
// logger silences them.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error or disabled.
	Level string `yaml:"level" json:"level" koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is json or console.
	Format string `yaml:"format" json:"format" koanf:"format" validate:"omitempty,oneof=json console"`

	// Caller adds file and line to every event.
	Caller bool `yaml:"caller" json:"caller" koanf:"caller"`

	// Timestamp adds a time field to every event.
	Timestamp bool `yaml:"timestamp" json:"timestamp" koanf:"timestamp"`

	// Output defaults to os.Stderr.
	Output io.Writer `yaml:"-" json:"-" koanf:"-"`
}

// DefaultConfig returns info-level JSON logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(DefaultConfig())
}

// Init reconfigures the global logger. It is safe to call more than once.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

// initLogger must be called with mu held.
func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	l := zerolog.New(output)
	if cfg.Timestamp {
		l = l.With().Timestamp().Logger()
	}
	if cfg.Caller {
		l = l.With().Caller().Logger()
	}
	log = l
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger replaces the global logger, mostly for tests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// NewRunID returns a fresh identifier for one recovery run.
func NewRunID() string { return uuid.NewString() }

// WithRun returns a context carrying the global logger tagged with runID.
func WithRun(ctx context.Context, runID string) context.Context {
	l := Logger().With().Str("run_id", runID).Logger()
	return l.WithContext(ctx)
}

// NewTestLogger returns a JSON logger writing to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
