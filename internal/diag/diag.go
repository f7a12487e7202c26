// Package diag routes errors caught during discovery and refresh to the
// logger at a severity chosen by error category.
package diag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jpalmerr/watchboard/monitor"
)

// Category classifies a caught error.
type Category string

const (
	// Malformed covers metadata the engine cannot interpret: bad tags,
	// unknown processors, members without backing storage.
	Malformed Category = "malformed"
	// Cancellation covers context cancellation and deadlines.
	Cancellation Category = "cancellation"
	// Unknown is everything else, including panics in user code.
	Unknown Category = "unknown"
)

// ErrMalformed is wrapped by the sentinel errors of packages that report
// malformed metadata, so [Classify] can recognise them.
var ErrMalformed = errors.New("malformed metadata")

// Classify returns the category of err.
func Classify(err error) Category {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Cancellation
	case errors.Is(err, ErrMalformed), errors.Is(err, monitor.ErrMalformedTag):
		return Malformed
	default:
		return Unknown
	}
}

// ParseCategory accepts the category names used in configuration.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Malformed, Cancellation, Unknown:
		return c, nil
	default:
		return "", fmt.Errorf("unknown diagnostics category %q", s)
	}
}

// ParseLevel accepts debug, info, warn and error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

// DefaultLevels returns the severity used for each category when none is
// configured.
func DefaultLevels() map[Category]slog.Level {
	return map[Category]slog.Level{
		Malformed:    slog.LevelWarn,
		Cancellation: slog.LevelDebug,
		Unknown:      slog.LevelError,
	}
}

// Sink is the single logging seam for caught errors.
type Sink struct {
	logger *slog.Logger
	levels map[Category]slog.Level
}

// NewSink creates a sink writing to logger. Categories missing from levels
// use [DefaultLevels].
func NewSink(logger *slog.Logger, levels map[Category]slog.Level) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	merged := DefaultLevels()
	for c, l := range levels {
		merged[c] = l
	}
	return &Sink{logger: logger, levels: merged}
}

// Logger returns the underlying logger.
func (s *Sink) Logger() *slog.Logger {
	return s.logger
}

// Report logs err with msg at the level configured for its category.
func (s *Sink) Report(msg string, err error, attrs ...any) {
	c := Classify(err)
	attrs = append(attrs, "category", string(c), "error", err.Error())
	s.logger.Log(context.Background(), s.levels[c], msg, attrs...)
}
