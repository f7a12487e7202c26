package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/watchboard/internal/handle"
	"github.com/jpalmerr/watchboard/internal/metrics"
)

// DefaultThreshold is the minimum time between refresh passes.
const DefaultThreshold = 50 * time.Millisecond

// DefaultFrame is the tick interval used by [Scheduler.Run] when none is given.
const DefaultFrame = 16 * time.Millisecond

// Config configures a [Scheduler].
type Config struct {
	// Threshold is the accumulated time between refresh passes.
	// Zero uses [DefaultThreshold].
	Threshold time.Duration

	// IgnoreTimeScale makes the accumulator advance in unscaled time.
	IgnoreTimeScale bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Scheduler refreshes the Handles of one registry.
type Scheduler struct {
	registry        *handle.Registry
	threshold       time.Duration
	ignoreTimeScale bool
	logger          *slog.Logger
	metrics         *metrics.Metrics

	timeScale   float64
	visible     bool
	accumulator time.Duration
	validators  []func()
	passes      uint64
}

// New creates a scheduler for registry. The scheduler starts visible with a
// time scale of 1.
func New(registry *handle.Registry, cfg Config) *Scheduler {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		registry:        registry,
		threshold:       cfg.Threshold,
		ignoreTimeScale: cfg.IgnoreTimeScale,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		timeScale:       1,
		visible:         true,
	}
}

// Threshold returns the refresh threshold.
func (s *Scheduler) Threshold() time.Duration { return s.threshold }

// Visible reports whether the display is visible.
func (s *Scheduler) Visible() bool { return s.visible }

// Passes returns the number of refresh passes run so far.
func (s *Scheduler) Passes() uint64 { return s.passes }

// SetVisible shows or hides the display. Passes are skipped while hidden;
// becoming visible primes the accumulator so the next tick refreshes.
func (s *Scheduler) SetVisible(visible bool) {
	if visible && !s.visible {
		s.accumulator = s.threshold
	}
	s.visible = visible
}

// SetTimeScale sets the factor applied to tick deltas. Negative values are
// treated as zero.
func (s *Scheduler) SetTimeScale(scale float64) {
	if scale < 0 {
		scale = 0
	}
	s.timeScale = scale
}

// AddValidator registers fn to run after every refresh pass.
func (s *Scheduler) AddValidator(fn func()) {
	if fn != nil {
		s.validators = append(s.validators, fn)
	}
}

// Tick advances the loop by delta. It reports whether a refresh pass ran.
//
// Posted work always drains, so targets register and unregister while the
// display is hidden. Update events only mark their Handles stale; they are
// rendered on visible ticks.
func (s *Scheduler) Tick(delta time.Duration) bool {
	s.registry.Drain()

	if !s.ignoreTimeScale {
		delta = time.Duration(float64(delta) * s.timeScale)
	}
	s.accumulator += delta

	if !s.visible {
		return false
	}
	if s.accumulator < s.threshold {
		// render event deliveries and publish state changed by posted work
		s.registry.Flush()
		s.registry.Publish()
		return false
	}
	s.accumulator = 0

	start := time.Now()
	n := s.RefreshAll()
	s.registry.Validate()
	for _, fn := range s.validators {
		s.runValidator(fn)
	}
	published := s.registry.Publish()
	s.passes++

	elapsed := time.Since(start)
	s.metrics.ObservePass(n, elapsed)
	s.logger.Debug("refresh pass",
		"handles", n,
		"published", published,
		"duration_ms", elapsed.Milliseconds(),
	)
	return true
}

// RefreshAll refreshes every active, enabled Handle immediately and returns
// how many were refreshed. Failures disable the failing Handle only.
func (s *Scheduler) RefreshAll() int {
	n := 0
	for _, h := range s.registry.Handles() {
		if h.State() != handle.StateActive || !h.Enabled() {
			continue
		}
		n++
		if _, err := h.Refresh(); err != nil {
			s.registry.Fail(h, err)
		}
	}
	return n
}

// runValidator calls fn with panic recovery.
func (s *Scheduler) runValidator(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("validator panic",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()
	fn()
}

// Run calls Tick every frame with the measured elapsed time until ctx is
// done. A non-positive frame uses [DefaultFrame].
func (s *Scheduler) Run(ctx context.Context, frame time.Duration) error {
	if frame <= 0 {
		frame = DefaultFrame
	}
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			// run work posted during shutdown, e.g. unregistrations
			s.registry.Drain()
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(now.Sub(last))
			last = now
		}
	}
}
