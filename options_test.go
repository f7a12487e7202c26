package watchboard

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/monitor"
)

type widget struct {
	Size int `monitor:""`
}

func (w *widget) Area() int { return w.Size * w.Size }

func TestNew_Defaults(t *testing.T) {
	wb, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if wb.Port() != 8080 {
		t.Errorf("Port() = %v, want %v", wb.Port(), 8080)
	}
	if wb.RefreshThreshold() != DefaultRefreshThreshold {
		t.Errorf("RefreshThreshold() = %v, want %v", wb.RefreshThreshold(), DefaultRefreshThreshold)
	}
	if wb.frame != DefaultFrameInterval {
		t.Errorf("frame = %v, want %v", wb.frame, DefaultFrameInterval)
	}
	if wb.defaults.ElementIndent != 2 {
		t.Errorf("ElementIndent = %v, want 2", wb.defaults.ElementIndent)
	}
	if wb.Addr() != nil {
		t.Errorf("Addr() = %v before Start, want nil", wb.Addr())
	}
}

func TestNew_RegistersDeclarations(t *testing.T) {
	static, err := NewStatic("Count", func() int { return 1 })
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	wb, err := New(
		WithType[widget](),
		Annotate[widget]("Area", "label=Area,order=2"),
		WithStatic[widget](static),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	entry, ok := wb.catalog.Lookup(reflect.TypeFor[widget]())
	if !ok {
		t.Fatal("widget not in catalog")
	}
	if tag, ok := entry.Annotation("Area"); !ok || tag.Label != "Area" || tag.Order != 2 {
		t.Errorf("Annotation(Area) = %+v, %v", tag, ok)
	}
	if _, ok := entry.Static("Count"); !ok {
		t.Error("static Count not attached")
	}
}

func TestNew_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want string
	}{
		{"anonymous type", WithTypes(reflect.TypeOf(struct{ X int }{})), "invalid type"},
		{"nil type", WithTypes(nil), "type cannot be nil"},
		{"non-generic prototype", WithGenericType[widget](), "invalid generic type"},
		{"malformed annotation", Annotate[widget]("Area", "flags=bogus"), "widget.Area"},
		{"empty member", Annotate[widget]("", ""), "member name cannot be empty"},
		{"zero static", WithStatic[widget](Static{}), "NewStatic"},
		{"zero formatter", WithFormatter(Formatter{}), "NewFormatter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			if err == nil {
				t.Fatal("New() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("New() error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"negative port", WithPort(-1)},
		{"port too high", WithPort(65536)},
		{"zero threshold", WithRefreshThreshold(0)},
		{"negative frame", WithFrameInterval(-time.Millisecond)},
		{"negative indent", WithElementIndent(-1)},
		{"bad colour", WithPalette(monitor.Colors{True: "green"})},
		{"nil logger", WithLogger(nil)},
		{"unknown category", WithSeverity("fatal", slog.LevelError)},
		{"nil publisher", WithPublisher(nil, "")},
		{"nil registerer", WithMetricsRegisterer(nil)},
		{"invalid target", WithTarget(widget{})},
		{"nil validator", WithValidator(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opt(&wbConfig{}); err == nil {
				t.Error("option error = nil, want error")
			}
		})
	}
}

func TestOptions_Apply(t *testing.T) {
	var pub message.Publisher = nopPublisher{}
	reg := prometheus.NewRegistry()
	cfg := &wbConfig{defaults: monitor.DefaultDefaults()}
	opts := []Option{
		WithPort(0),
		WithTitle("Arena"),
		WithHeadless(),
		WithRefreshThreshold(time.Second),
		WithFrameInterval(time.Millisecond),
		WithIgnoreTimeScale(true),
		WithModules([]string{"example.com/game"}, []string{"example.com/game/internal"}),
		WithElementIndent(4),
		WithShowIndex(true),
		WithPalette(monitor.Colors{Label: "#112233"}),
		WithSeverity("Malformed", slog.LevelError),
		WithPublisher(pub, "t"),
		WithMetricsRegisterer(reg),
		WithTarget(&widget{}),
		WithValidator(func() {}),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			t.Fatalf("option error = %v", err)
		}
	}

	if cfg.port != 0 || cfg.title != "Arena" || !cfg.headless {
		t.Errorf("server settings = %d %q %v", cfg.port, cfg.title, cfg.headless)
	}
	if cfg.threshold != time.Second || cfg.frame != time.Millisecond || !cfg.ignoreTimeScale {
		t.Errorf("scheduler settings = %v %v %v", cfg.threshold, cfg.frame, cfg.ignoreTimeScale)
	}
	if len(cfg.allow) != 1 || len(cfg.deny) != 1 {
		t.Errorf("modules = %v / %v", cfg.allow, cfg.deny)
	}
	if cfg.defaults.ElementIndent != 4 || !cfg.defaults.ShowIndex {
		t.Errorf("defaults = %+v", cfg.defaults)
	}
	if cfg.defaults.Colors.Label != "#112233" || cfg.defaults.Colors.True != monitor.DefaultColors().True {
		t.Errorf("palette = %+v, want label override over defaults", cfg.defaults.Colors)
	}
	if cfg.levels[diag.Malformed] != slog.LevelError {
		t.Errorf("levels = %v", cfg.levels)
	}
	if cfg.publisher == nil || cfg.topic != "t" || cfg.registerer != reg {
		t.Error("publisher or registerer not applied")
	}
	if len(cfg.targets) != 1 || len(cfg.validators) != 1 {
		t.Errorf("targets = %d, validators = %d", len(cfg.targets), len(cfg.validators))
	}
}

func TestWithSeverity_ChangesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	wb, err := New(
		WithLogger(logger),
		WithHeadless(),
		WithSeverity("malformed", slog.LevelError),
		Annotate[widget]("Missing", ""),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := wb.Discover(t.Context()); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if !strings.Contains(buf.String(), "category=malformed") {
		t.Errorf("log = %q, want the malformed member reported at error level", buf.String())
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, ...*message.Message) error { return nil }
func (nopPublisher) Close() error                              { return nil }
