package watchboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/watchboard/dashboard"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/internal/format"
	"github.com/jpalmerr/watchboard/internal/handle"
	"github.com/jpalmerr/watchboard/internal/introspect"
	"github.com/jpalmerr/watchboard/internal/metrics"
	"github.com/jpalmerr/watchboard/internal/profile"
	"github.com/jpalmerr/watchboard/internal/scheduler"
	"github.com/jpalmerr/watchboard/internal/server"
	"github.com/jpalmerr/watchboard/internal/store"
	"github.com/jpalmerr/watchboard/internal/surface"
	"github.com/jpalmerr/watchboard/monitor"
)

const (
	defaultPort = 8080

	// DefaultRefreshThreshold is the time accumulated between refresh passes
	// unless [WithRefreshThreshold] is given.
	DefaultRefreshThreshold = scheduler.DefaultThreshold

	// DefaultFrameInterval is how often [Watchboard.Start] ticks unless
	// [WithFrameInterval] is given.
	DefaultFrameInterval = scheduler.DefaultFrame
)

// ErrDiscovered is returned by [Watchboard.Discover] when discovery already
// ran or is running.
var ErrDiscovered = errors.New("discovery already started")

// ErrUnknownHandle is returned for Handle ids that are not live.
var ErrUnknownHandle = server.ErrUnknownHandle

// Watchboard is the main orchestrator: it discovers monitored members,
// keeps one Handle per member and target, refreshes them on a schedule and
// serves the result.
//
// Watchboard is created using [New] with functional options and started
// with [Watchboard.Start]. The typical lifecycle is:
//
//	wb, err := watchboard.New(
//	    watchboard.WithType[game.Player](),
//	    watchboard.WithTarget(player),
//	)
//	if err != nil {
//	    slog.Error("failed to create watchboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	wb.Start(ctx) // blocks until context cancelled
//
// Hosts that already run a frame loop can instead call [Watchboard.Discover]
// once and [Watchboard.Tick] every frame.
//
// Handles are owned by a single update loop. Register, Unregister,
// SetEnabled, SetVisible, SetTimeScale and Set may be called from any
// goroutine: they are queued and applied at the start of the next tick.
type Watchboard struct {
	title    string
	port     int
	headless bool
	frame    time.Duration

	logger    *slog.Logger
	sink      *diag.Sink
	catalog   *catalog.Catalog
	formats   *format.Factory
	defaults  monitor.Defaults
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	store     *store.MemoryStore
	registry  *handle.Registry
	scheduler *scheduler.Scheduler
	publisher *surface.Publisher

	discovering atomic.Bool
	ready       chan struct{}
	readyOnce   sync.Once

	mu   sync.Mutex
	addr net.Addr
}

// New creates a new [Watchboard] instance with the given options.
//
// Defaults:
//   - Port: 8080
//   - Refresh threshold: 50ms
//   - Frame interval: 16ms
//   - Element indent: 2
//
// Returns an error if any option is invalid or a declared type, static or
// annotation cannot be registered.
func New(opts ...Option) (*Watchboard, error) {
	cfg := &wbConfig{
		port:      defaultPort,
		frame:     DefaultFrameInterval,
		threshold: DefaultRefreshThreshold,
		defaults:  monitor.DefaultDefaults(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	cat, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}

	reg := cfg.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	gatherer, _ := reg.(prometheus.Gatherer)

	custom := make([]format.CustomFormatter, len(cfg.formatters))
	for i, f := range cfg.formatters {
		custom[i] = f.custom
	}

	wb := &Watchboard{
		title:    cfg.title,
		port:     cfg.port,
		headless: cfg.headless,
		frame:    cfg.frame,
		logger:   logger,
		sink:     diag.NewSink(logger, cfg.levels),
		catalog:  cat,
		formats:  format.NewFactory(format.Options{Custom: custom, Metrics: m}),
		defaults: cfg.defaults,
		metrics:  m,
		gatherer: gatherer,
		store:    store.NewMemoryStore(),
		ready:    make(chan struct{}),
	}

	wb.registry = handle.NewRegistry(handle.Config{
		Sink:    wb.sink,
		Surface: wb.surfaces(cfg),
		Metrics: m,
	})
	wb.scheduler = scheduler.New(wb.registry, scheduler.Config{
		Threshold:       cfg.threshold,
		IgnoreTimeScale: cfg.ignoreTimeScale,
		Logger:          logger,
		Metrics:         m,
	})
	for _, fn := range cfg.validators {
		wb.scheduler.AddValidator(fn)
	}
	for _, target := range cfg.targets {
		// validated by WithTarget
		_ = wb.registry.Register(target)
	}

	return wb, nil
}

// buildCatalog registers the declared types, statics and annotations.
func buildCatalog(cfg *wbConfig) (*catalog.Catalog, error) {
	cat := catalog.New(catalog.Filter{Allow: cfg.allow, Deny: cfg.deny})
	for _, t := range cfg.types {
		if _, err := cat.Add(t); err != nil {
			return nil, fmt.Errorf("invalid type %s: %w", t, err)
		}
	}
	for _, t := range cfg.generics {
		if _, err := cat.AddGeneric(t); err != nil {
			return nil, fmt.Errorf("invalid generic type %s: %w", t, err)
		}
	}
	for _, a := range cfg.annotations {
		if err := cat.Annotate(a.typ, a.member, a.tag); err != nil {
			return nil, fmt.Errorf("invalid annotation: %w", err)
		}
	}
	for _, s := range cfg.statics {
		if err := cat.AddStatic(s.owner, s.static.entry()); err != nil {
			return nil, fmt.Errorf("invalid static: %w", err)
		}
	}
	return cat, nil
}

// publisherCloseTimeout bounds how long Start waits for queued
// notifications on shutdown.
const publisherCloseTimeout = 5 * time.Second

// surfaces joins the display surfaces configured for the engine. The store
// comes first so callbacks observe the same state as the dashboard.
func (wb *Watchboard) surfaces(cfg *wbConfig) surface.Surface {
	list := []surface.Surface{surface.Store{Store: wb.store}}
	for _, cb := range cfg.callbacks {
		list = append(list, surface.Callback{
			Fn: func(event string, s surface.Snapshot) {
				cb(HandleEvent(event), snapshotFromSurface(s))
			},
			Logger: wb.logger,
		})
	}
	if cfg.publisher != nil {
		wb.publisher = surface.NewPublisher(cfg.publisher, surface.PublisherConfig{
			Topic:   cfg.topic,
			Updates: true,
			Logger:  wb.logger,
		})
		list = append(list, wb.publisher)
	}
	return surface.Join(list...)
}

// Start discovers the monitored members, runs the update loop and serves
// the dashboard.
//
// Start is a blocking call that runs until the provided context is
// cancelled. During execution:
//
//   - Discovery runs in the background; targets registered meanwhile are
//     bound as soon as it completes
//   - The scheduler ticks every frame and refreshes Handles once the
//     refresh threshold has accumulated
//   - The dashboard is available at http://localhost:<port> unless
//     [WithHeadless] was given
//
// On return every Handle has been disposed.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start.
func (wb *Watchboard) Start(ctx context.Context) error {
	wb.logger.Info("watchboard starting",
		"types", wb.catalog.Len(),
		"threshold", wb.scheduler.Threshold().String(),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	if !wb.headless {
		srv := server.NewServer(wb.store, wb.port, dashboard.Assets, wb.title, wb.logger,
			server.WithController(wb),
			server.WithGatherer(wb.gatherer),
		)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		wb.mu.Lock()
		wb.addr = srv.Addr()
		wb.mu.Unlock()
		wb.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", tcpPort(srv.Addr())))
	}

	// track the discovery goroutine so Complete is posted before the final drain
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := wb.Discover(ctx); err != nil && !errors.Is(err, ErrDiscovered) {
			wb.logger.Debug("discovery stopped", "error", err)
		}
	}()

	_ = wb.scheduler.Run(ctx, wb.frame)
	wg.Wait()

	wb.registry.Drain()
	wb.registry.Close()
	if wb.publisher != nil {
		// flush the disposed notifications queued by Close
		closeCtx, cancel := context.WithTimeout(context.Background(), publisherCloseTimeout)
		if err := wb.publisher.Close(closeCtx); err != nil {
			wb.logger.Warn("handle notifications not flushed", "error", err, "dropped", wb.publisher.Dropped())
		}
		cancel()
	}
	wb.logger.Info("watchboard stopped")
	return nil
}

func tcpPort(addr net.Addr) int {
	if a, ok := addr.(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

// Discover runs discovery on the calling goroutine and queues the result
// for the update loop. [Watchboard.Ready] is closed once the next tick has
// created the Handles.
//
// Discover runs at most once; later calls return [ErrDiscovered]. A
// cancelled discovery returns the context's error and leaves the engine
// without Handles.
func (wb *Watchboard) Discover(ctx context.Context) error {
	if !wb.discovering.CompareAndSwap(false, true) {
		return ErrDiscovered
	}

	builder := profile.NewBuilder(profile.Config{
		Introspector: introspect.NewReflect(wb.catalog, func(err error) {
			wb.sink.Report("member skipped", err)
		}),
		Formats:  wb.formats,
		Defaults: wb.defaults,
		Sink:     wb.sink,
		Metrics:  wb.metrics,
	})

	profiles, err := builder.Build(ctx, wb.catalog.Candidates())
	if err != nil {
		wb.sink.Report("discovery aborted", err)
		return err
	}

	wb.registry.Post(func() {
		wb.registry.Complete(profiles)
		wb.readyOnce.Do(func() { close(wb.ready) })
	})
	return nil
}

// Ready is closed once discovery has completed and the Handles exist.
func (wb *Watchboard) Ready() <-chan struct{} {
	return wb.ready
}

// Tick advances the update loop by delta and reports whether a refresh pass
// ran. Use Tick from a host frame loop instead of [Watchboard.Start]; never
// both.
func (wb *Watchboard) Tick(delta time.Duration) bool {
	return wb.scheduler.Tick(delta)
}

// Register creates Handles for target, a non-nil pointer to a struct whose
// type (or an embedded type) was registered. Registering a target twice is
// a no-op. Targets registered before discovery completes are bound when it
// does.
//
// Returns an error if target is not a non-nil pointer to a struct.
func (wb *Watchboard) Register(target any) error {
	if err := handle.CheckTarget(target); err != nil {
		return err
	}
	wb.registry.Post(func() {
		_ = wb.registry.Register(target)
	})
	return nil
}

// Unregister disposes every Handle of target. Unknown targets are ignored.
// The engine holds no reference to target afterwards.
func (wb *Watchboard) Unregister(target any) {
	wb.registry.Post(func() {
		wb.registry.Unregister(target)
	})
}

// SetVisible shows or hides the display. Hidden, the scheduler runs no
// refresh passes.
func (wb *Watchboard) SetVisible(visible bool) {
	wb.registry.Post(func() {
		wb.scheduler.SetVisible(visible)
	})
}

// SetTimeScale scales the time counted towards the refresh threshold, the
// way a game's time scale slows or pauses simulation.
func (wb *Watchboard) SetTimeScale(scale float64) {
	wb.registry.Post(func() {
		wb.scheduler.SetTimeScale(scale)
	})
}

// SetEnabled enables or disables the Handle with id. Enabling a Handle that
// failed clears its error and resumes refreshing.
//
// Returns [ErrUnknownHandle] if no live Handle has the id.
func (wb *Watchboard) SetEnabled(id string, enabled bool) error {
	if _, ok := wb.store.Get(id); !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownHandle)
	}
	wb.registry.Post(func() {
		h, ok := wb.registry.Lookup(id)
		if !ok {
			wb.logger.Debug("handle disposed before update", "handle", id)
			return
		}
		if enabled {
			h.Enable()
		} else {
			h.Disable()
		}
	})
	return nil
}

// Set writes value to the member behind the Handle with id. The write is
// applied on the update loop; failures are logged.
//
// Returns [ErrUnknownHandle] if no live Handle has the id.
func (wb *Watchboard) Set(id string, value any) error {
	if _, ok := wb.store.Get(id); !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownHandle)
	}
	wb.registry.Post(func() {
		h, ok := wb.registry.Lookup(id)
		if !ok {
			wb.logger.Debug("handle disposed before write", "handle", id)
			return
		}
		if err := h.Set(value); err != nil {
			wb.sink.Report("handle write failed", err,
				"handle", id,
				"member", h.Profile().Identity(),
				"value_type", reflect.TypeOf(value),
			)
		}
	})
	return nil
}

// Snapshot returns the current state of every live Handle: statics first,
// then by group, order and label.
func (wb *Watchboard) Snapshot() []HandleSnapshot {
	states := wb.store.GetAll()
	out := make([]HandleSnapshot, len(states))
	for i, st := range states {
		out[i] = snapshotFromState(st)
	}
	return out
}

// Addr returns the dashboard's listening address once [Watchboard.Start]
// has started the server, or nil.
func (wb *Watchboard) Addr() net.Addr {
	wb.mu.Lock()
	defer wb.mu.Unlock()
	return wb.addr
}

// Port returns the configured HTTP port for the dashboard server.
func (wb *Watchboard) Port() int {
	return wb.port
}

// RefreshThreshold returns the configured time between refresh passes.
func (wb *Watchboard) RefreshThreshold() time.Duration {
	return wb.scheduler.Threshold()
}
