package watchboard

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/internal/handle"
	"github.com/jpalmerr/watchboard/monitor"
)

type staticDecl struct {
	owner  reflect.Type
	static Static
}

type annotation struct {
	typ    reflect.Type
	member string
	tag    monitor.Tag
}

// wbConfig holds mutable state during Watchboard construction.
type wbConfig struct {
	title           string
	port            int
	headless        bool
	frame           time.Duration
	threshold       time.Duration
	ignoreTimeScale bool
	allow           []string
	deny            []string
	types           []reflect.Type
	generics        []reflect.Type
	statics         []staticDecl
	annotations     []annotation
	formatters      []Formatter
	defaults        monitor.Defaults
	logger          *slog.Logger
	levels          map[diag.Category]slog.Level
	callbacks       []func(HandleEvent, HandleSnapshot)
	publisher       message.Publisher
	topic           string
	registerer      prometheus.Registerer
	targets         []any
	validators      []func()
}

// Option is a function that configures a [Watchboard] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*wbConfig) error

// WithType registers T as a candidate type. Its `monitor` tagged fields and
// events, and members annotated with [Annotate], become Profiles.
//
// Example:
//
//	wb, err := watchboard.New(
//	    watchboard.WithType[game.Player](),
//	    watchboard.WithType[game.Enemy](),
//	)
func WithType[T any]() Option {
	return WithTypes(reflect.TypeFor[T]())
}

// WithTypes registers several candidate types at once.
//
// Returns an error if any type is nil.
func WithTypes(types ...reflect.Type) Option {
	return func(cfg *wbConfig) error {
		for _, t := range types {
			if t == nil {
				return errors.New("type cannot be nil")
			}
		}
		cfg.types = append(cfg.types, types...)
		return nil
	}
}

// WithGenericType registers an instantiation of a generic struct as the
// stand-in for its open definition. T's type arguments are irrelevant:
// members found on it are resolved against every registered type that
// embeds any instantiation of the same generic type.
//
// Example:
//
//	// Tracker[int] in Player and Tracker[string] in Enemy both resolve
//	watchboard.WithGenericType[game.Tracker[any]]()
func WithGenericType[T any]() Option {
	return func(cfg *wbConfig) error {
		cfg.generics = append(cfg.generics, reflect.TypeFor[T]())
		return nil
	}
}

// WithStatic attaches package-level members to Owner.
//
// Example:
//
//	frame, _ := watchboard.NewStatic("Frame", &game.Frame)
//	wb, err := watchboard.New(watchboard.WithStatic[game.World](frame))
func WithStatic[Owner any](statics ...Static) Option {
	owner := reflect.TypeFor[Owner]()
	return func(cfg *wbConfig) error {
		for _, s := range statics {
			if s.name == "" {
				return errors.New("static must be created with NewStatic")
			}
			cfg.statics = append(cfg.statics, staticDecl{owner: owner, static: s})
		}
		return nil
	}
}

// Annotate marks a method, property or field of T for monitoring. tag uses
// the `monitor` struct tag syntax; an empty tag monitors with defaults.
//
// Methods cannot carry struct tags, so properties (func() V methods,
// writable when a SetName(V) method exists) and methods are always
// monitored through Annotate.
//
// Example:
//
//	watchboard.Annotate[game.Player]("Health", "label=HP,order=1")
//
// Returns an error if the tag is malformed or member is empty.
func Annotate[T any](member, tag string) Option {
	typ := reflect.TypeFor[T]()
	return func(cfg *wbConfig) error {
		if member == "" {
			return fmt.Errorf("%s: member name cannot be empty", typ)
		}
		parsed, err := monitor.ParseTag(tag)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", typ, member, err)
		}
		cfg.annotations = append(cfg.annotations, annotation{typ: typ, member: member, tag: parsed})
		return nil
	}
}

// WithModules restricts discovery by package path. Types whose package
// starts with a path element prefix in deny are skipped; when allow is
// non-empty, only types under one of its prefixes are scanned.
//
// Example:
//
//	watchboard.WithModules([]string{"example.com/game"}, []string{"example.com/game/internal"})
func WithModules(allow, deny []string) Option {
	return func(cfg *wbConfig) error {
		cfg.allow = append(cfg.allow, allow...)
		cfg.deny = append(cfg.deny, deny...)
		return nil
	}
}

// WithFormatter adds a custom [Formatter]. A later formatter for the same
// type replaces an earlier one.
func WithFormatter(f Formatter) Option {
	return func(cfg *wbConfig) error {
		if f.custom.Type() == nil {
			return errors.New("formatter must be created with NewFormatter")
		}
		cfg.formatters = append(cfg.formatters, f)
		return nil
	}
}

// WithPalette overrides colours of the built-in palette. Empty entries keep
// their default.
//
// Returns an error if an entry is not a #rrggbb or #rrggbbaa colour.
func WithPalette(colors monitor.Colors) Option {
	return func(cfg *wbConfig) error {
		for _, c := range []string{colors.Label, colors.Value, colors.True, colors.False, colors.Null, colors.X, colors.Y, colors.Z, colors.W} {
			if c != "" && !monitor.ValidColor(c) {
				return fmt.Errorf("invalid palette colour %q", c)
			}
		}
		cfg.defaults.Colors = monitor.MergeColors(colors)
		return nil
	}
}

// WithElementIndent sets the default indent, in spaces, of collection
// elements. Defaults to 2.
//
// Returns an error if n is negative.
func WithElementIndent(n int) Option {
	return func(cfg *wbConfig) error {
		if n < 0 {
			return errors.New("element indent cannot be negative")
		}
		cfg.defaults.ElementIndent = n
		return nil
	}
}

// WithShowIndex prefixes every collection element with its index.
func WithShowIndex(show bool) Option {
	return func(cfg *wbConfig) error {
		cfg.defaults.ShowIndex = show
		return nil
	}
}

// WithRefreshThreshold sets how much (scaled) time accumulates between
// refresh passes. Defaults to 50ms.
//
// Returns an error if the duration is zero or negative.
func WithRefreshThreshold(d time.Duration) Option {
	return func(cfg *wbConfig) error {
		if d <= 0 {
			return errors.New("refresh threshold must be positive")
		}
		cfg.threshold = d
		return nil
	}
}

// WithFrameInterval sets how often [Watchboard.Start] ticks the scheduler.
// Defaults to 16ms.
//
// Returns an error if the duration is zero or negative.
func WithFrameInterval(d time.Duration) Option {
	return func(cfg *wbConfig) error {
		if d <= 0 {
			return errors.New("frame interval must be positive")
		}
		cfg.frame = d
		return nil
	}
}

// WithIgnoreTimeScale makes the refresh threshold count real time instead
// of time scaled by [Watchboard.SetTimeScale].
func WithIgnoreTimeScale(ignore bool) Option {
	return func(cfg *wbConfig) error {
		cfg.ignoreTimeScale = ignore
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server. Port 0 picks a
// free port; see [Watchboard.Addr]. Defaults to 8080.
//
// Returns an error if the port is outside 0-65535.
func WithPort(port int) Option {
	return func(cfg *wbConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and
// header. Defaults to "Watchboard".
func WithTitle(title string) Option {
	return func(cfg *wbConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHeadless disables the HTTP dashboard. Handles are still refreshed
// and delivered to callbacks and publishers.
func WithHeadless() Option {
	return func(cfg *wbConfig) error {
		cfg.headless = true
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *wbConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithSeverity sets the level at which caught errors of a category are
// logged. Categories are "malformed" (bad markers, unknown processors),
// "cancellation" (discovery stopped by its context) and "unknown"
// (everything else, including panics in monitored code).
//
// Example:
//
//	watchboard.WithSeverity("malformed", slog.LevelError)
//
// Returns an error for unknown categories.
func WithSeverity(category string, level slog.Level) Option {
	return func(cfg *wbConfig) error {
		c, err := diag.ParseCategory(category)
		if err != nil {
			return err
		}
		if cfg.levels == nil {
			cfg.levels = make(map[diag.Category]slog.Level)
		}
		cfg.levels[c] = level
		return nil
	}
}

// WithHandleCallback registers a function called on every Handle lifecycle
// event.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks run on the update loop and must be non-blocking.
// Panics within callbacks are recovered and logged.
//
// Example:
//
//	watchboard.WithHandleCallback(func(ev watchboard.HandleEvent, s watchboard.HandleSnapshot) {
//	    if s.Failed() {
//	        log.Printf("%s stopped: %s", s.Identity, s.Error)
//	    }
//	})
//
// Nil callbacks are silently ignored.
func WithHandleCallback(cb func(HandleEvent, HandleSnapshot)) Option {
	return func(cfg *wbConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithPublisher publishes Handle lifecycle events as JSON messages to pub,
// any watermill publisher (in-process channel, Kafka, NATS, AMQP, ...).
// An empty topic uses "watchboard.handles". Each message carries the
// metadata keys "event", "handle_id" and "identity". Messages are handed to
// pub off the update loop; when pub falls behind, notifications are
// dropped and logged.
//
// Returns an error if the publisher is nil.
func WithPublisher(pub message.Publisher, topic string) Option {
	return func(cfg *wbConfig) error {
		if pub == nil {
			return errors.New("publisher cannot be nil")
		}
		cfg.publisher = pub
		cfg.topic = topic
		return nil
	}
}

// WithMetricsRegisterer registers the engine's Prometheus collectors with
// reg. When reg is also a [prometheus.Gatherer] the dashboard serves it at
// /metrics. Defaults to a private registry.
//
// Returns an error if reg is nil.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(cfg *wbConfig) error {
		if reg == nil {
			return errors.New("metrics registerer cannot be nil")
		}
		cfg.registerer = reg
		return nil
	}
}

// WithTarget registers targets, as [Watchboard.Register] does once the
// engine runs.
//
// Returns an error if a target is not a non-nil pointer to a struct.
func WithTarget(targets ...any) Option {
	return func(cfg *wbConfig) error {
		for _, t := range targets {
			if err := handle.CheckTarget(t); err != nil {
				return err
			}
		}
		cfg.targets = append(cfg.targets, targets...)
		return nil
	}
}

// WithValidator adds a function run on the update loop after every refresh
// pass. Panics are recovered and logged.
func WithValidator(fn func()) Option {
	return func(cfg *wbConfig) error {
		if fn == nil {
			return errors.New("validator cannot be nil")
		}
		cfg.validators = append(cfg.validators, fn)
		return nil
	}
}
