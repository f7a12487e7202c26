package handle

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/accessor"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/internal/metrics"
	"github.com/jpalmerr/watchboard/internal/profile"
	"github.com/jpalmerr/watchboard/internal/surface"
)

// ErrInvalidTarget is returned by Register for values that are not
// non-nil pointers to structs.
var ErrInvalidTarget = errors.New("handle: target must be a non-nil pointer to a struct")

// Config wires a [Registry].
type Config struct {
	Sink    *diag.Sink
	Surface surface.Surface
	Metrics *metrics.Metrics
}

type targetEntry struct {
	target  any
	handles []*Handle
}

type condition struct {
	handle *Handle
	read   func() (bool, error)
}

// Registry owns every Handle.
type Registry struct {
	sink    *diag.Sink
	surface surface.Surface
	metrics *metrics.Metrics

	profiles   *profile.Registry
	static     []*Handle
	byTarget   map[any]*targetEntry
	targets    []any
	pending    []any
	byID       map[string]*Handle
	conditions []condition
	stale      []*Handle

	mu   sync.Mutex
	work []func()
}

// NewRegistry creates an empty registry. Until [Registry.Complete] is
// called, registered targets are remembered and bound later.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		sink:     cfg.Sink,
		surface:  cfg.Surface,
		metrics:  cfg.Metrics,
		byTarget: make(map[any]*targetEntry),
		byID:     make(map[string]*Handle),
	}
	if r.sink == nil {
		r.sink = diag.NewSink(slog.Default(), nil)
	}
	if r.surface == nil {
		r.surface = surface.Nop{}
	}
	return r
}

// Completed reports whether profiles have been supplied.
func (r *Registry) Completed() bool { return r.profiles != nil }

// Complete supplies the discovered profiles. Static Handles are created
// first, then targets registered earlier are bound in registration order.
// Calling Complete again has no effect.
func (r *Registry) Complete(profiles *profile.Registry) {
	if r.profiles != nil || profiles == nil {
		return
	}
	r.profiles = profiles

	for _, p := range profiles.Static() {
		h := newHandle(p, nil, nil)
		r.static = append(r.static, h)
		r.activate(h)
	}

	pending := r.pending
	r.pending = nil
	for _, target := range pending {
		r.bind(target)
	}
	r.metrics.SetTargets(len(r.targets))

	r.sink.Logger().Debug("handle registry complete",
		"static_handles", len(r.static),
		"targets", len(r.targets),
		"handles", len(r.byID),
	)
}

// CheckTarget reports whether target can be registered.
func CheckTarget(target any) error {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%T: %w", target, ErrInvalidTarget)
	}
	return nil
}

// Register creates the Handles of target. Registering a target twice is a
// no-op.
func (r *Registry) Register(target any) error {
	if err := CheckTarget(target); err != nil {
		return err
	}
	if _, ok := r.byTarget[target]; ok {
		return nil
	}
	if r.profiles == nil {
		if !slices.Contains(r.pending, target) {
			r.pending = append(r.pending, target)
		}
		return nil
	}
	r.bind(target)
	r.metrics.SetTargets(len(r.targets))
	return nil
}

// bind walks the target type and its embedded bases, creating one Handle
// per member identity.
func (r *Registry) bind(target any) {
	entry := &targetEntry{target: target}
	r.byTarget[target] = entry
	r.targets = append(r.targets, target)

	seen := make(map[string]bool)
	rt := reflect.TypeOf(target).Elem()
	for _, base := range catalog.Hierarchy(rt) {
		for _, p := range r.profiles.Instance(base.Type) {
			if seen[p.Identity()] {
				continue
			}
			seen[p.Identity()] = true

			h := newHandle(p, target, base.Index)
			entry.handles = append(entry.handles, h)
			r.activate(h)
		}
	}

	r.sink.Logger().Debug("target registered",
		"type", rt.String(),
		"handles", len(entry.handles),
	)
}

// activate moves h to Active, binds its update event and visibility
// condition and announces it to the surface.
func (r *Registry) activate(h *Handle) {
	h.state = StateActive
	r.byID[h.id] = h
	r.bindUpdateEvent(h)
	r.bindCondition(h)
	r.metrics.HandleCreated(h.profile.Static())
	r.surface.HandleCreated(h.Snapshot())
}

func (r *Registry) bindUpdateEvent(h *Handle) {
	name := h.profile.UpdateEvent()
	if name == "" {
		return
	}

	var src event.Source
	var err error
	if h.profile.Static() {
		src, err = accessor.StaticEvent(h.profile.DeclaringType(), name)
	} else if h.resolveRoot() {
		src, err = accessor.EventByName(h.root, name)
	} else {
		err = fmt.Errorf("embedded value of %s is nil", h.targetName)
	}
	if err != nil {
		r.sink.Report("update event unavailable, polling instead", err, "member", h.profile.Identity())
		return
	}
	if src == nil {
		return
	}

	if vs, ok := src.(event.ValueSource); ok && vs.ValueType().AssignableTo(h.profile.ValueType()) {
		h.sub = vs.SubscribeValue(func(_, value any) {
			r.Post(func() { r.markStale(h, value, true) })
		})
	} else if ns, ok := src.(event.NotifySource); ok {
		h.sub = ns.SubscribeNotify(func() {
			r.Post(func() { r.markStale(h, nil, false) })
		})
	} else {
		r.sink.Report("update event cannot carry the member value, polling instead",
			fmt.Errorf("%w: event %q", diag.ErrMalformed, name), "member", h.profile.Identity())
		return
	}
	h.source = src
	h.eventDriven = true
}

func (r *Registry) bindCondition(h *Handle) {
	name := h.profile.VisibleIf()
	if name == "" {
		return
	}

	var read func() (bool, error)
	var err error
	if h.profile.Static() {
		read, err = accessor.StaticBool(h.profile.DeclaringType(), name)
	} else if h.resolveRoot() {
		read, err = accessor.BoolByName(h.root, name)
	} else {
		err = fmt.Errorf("embedded value of %s is nil", h.targetName)
	}
	if err != nil {
		r.sink.Report("visibility condition unavailable", err, "member", h.profile.Identity())
		return
	}
	r.conditions = append(r.conditions, condition{handle: h, read: read})
}

// Validate evaluates every visibility condition.
func (r *Registry) Validate() {
	for i := 0; i < len(r.conditions); i++ {
		c := r.conditions[i]
		visible, err := evaluate(c.read)
		if err != nil {
			r.sink.Report("visibility condition failed, dropping it", err, "member", c.handle.profile.Identity())
			c.handle.setVisible(true)
			r.conditions = slices.Delete(r.conditions, i, i+1)
			i--
			continue
		}
		c.handle.setVisible(visible)
	}
}

func evaluate(read func() (bool, error)) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("condition panic: %v", r)
		}
	}()
	return read()
}

// markStale queues h for [Registry.Flush]. Repeated events before the
// flush collapse into one render of the last value.
func (r *Registry) markStale(h *Handle, value any, carries bool) {
	if h.state != StateActive || !h.enabled {
		return
	}
	if h.markStale(value, carries) {
		r.stale = append(r.stale, h)
	}
}

// Flush renders every Handle whose update event fired since the last
// flush or refresh pass, and returns how many were rendered. The scheduler
// only calls it while the display is visible.
func (r *Registry) Flush() int {
	stale := r.stale
	r.stale = nil
	n := 0
	for _, h := range stale {
		if !h.stale || h.state != StateActive || !h.enabled {
			continue
		}
		n++
		if _, err := h.apply(); err != nil {
			r.Fail(h, err)
		}
	}
	return n
}

// Fail records a refresh failure: it is logged once with a correlation id
// and the Handle is disabled until re-enabled.
func (r *Registry) Fail(h *Handle, err error) {
	correlationID := uuid.NewString()

	attrs := []any{
		"correlation_id", correlationID,
		"handle", h.id,
		"member", h.profile.Identity(),
	}
	if h.targetName != "" {
		attrs = append(attrs, "target", h.targetName)
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, "stack", string(pe.Stack))
	}
	r.sink.Report("handle refresh failed", err, attrs...)

	h.err = fmt.Errorf("%w (correlation_id: %s)", err, correlationID)
	h.enabled = false
	h.dirty = true
	r.metrics.RefreshFailed()
}

// Unregister disposes the Handles of target. Unknown targets are ignored.
func (r *Registry) Unregister(target any) {
	if i := slices.Index(r.pending, target); i >= 0 {
		r.pending = slices.Delete(r.pending, i, i+1)
		return
	}
	entry, ok := r.byTarget[target]
	if !ok {
		return
	}
	delete(r.byTarget, target)
	if i := slices.Index(r.targets, target); i >= 0 {
		r.targets = slices.Delete(r.targets, i, i+1)
	}
	for _, h := range entry.handles {
		r.dispose(h)
	}
	r.metrics.SetTargets(len(r.targets))
}

func (r *Registry) dispose(h *Handle) {
	if h.state == StateDisposed {
		return
	}
	if h.source != nil {
		h.source.Unsubscribe(h.sub)
		h.source = nil
	}
	r.conditions = slices.DeleteFunc(r.conditions, func(c condition) bool { return c.handle == h })
	h.state = StateDisposed
	h.enabled = false
	h.target = nil
	h.view = reflect.Value{}
	h.root = reflect.Value{}
	delete(r.byID, h.id)
	r.metrics.HandleDisposed(h.profile.Static())
	r.surface.HandleDisposed(h.Snapshot())
}

// Close disposes every Handle, static ones included, and drops pending
// targets and queued work.
func (r *Registry) Close() {
	for _, target := range slices.Clone(r.targets) {
		r.Unregister(target)
	}
	for _, h := range r.static {
		r.dispose(h)
	}
	r.static = nil
	r.pending = nil
	r.stale = nil

	r.mu.Lock()
	r.work = nil
	r.mu.Unlock()
}

// Handles returns every live Handle: statics first, then each target's
// Handles in registration order.
func (r *Registry) Handles() []*Handle {
	out := make([]*Handle, 0, len(r.byID))
	out = append(out, r.static...)
	for _, target := range r.targets {
		out = append(out, r.byTarget[target].handles...)
	}
	return out
}

// Static returns the static Handles.
func (r *Registry) Static() []*Handle { return r.static }

// ForTarget returns the Handles of target.
func (r *Registry) ForTarget(target any) []*Handle {
	if entry, ok := r.byTarget[target]; ok {
		return entry.handles
	}
	return nil
}

// Lookup returns the live Handle with id.
func (r *Registry) Lookup(id string) (*Handle, bool) {
	h, ok := r.byID[id]
	return h, ok
}

// Len returns the number of live Handles.
func (r *Registry) Len() int { return len(r.byID) }

// Targets returns the number of bound targets.
func (r *Registry) Targets() int { return len(r.targets) }

// Pending returns the number of targets waiting for [Registry.Complete].
func (r *Registry) Pending() int { return len(r.pending) }

// Post queues fn to run on the update loop. It is safe to call from any
// goroutine.
func (r *Registry) Post(fn func()) {
	r.mu.Lock()
	r.work = append(r.work, fn)
	r.mu.Unlock()
	r.metrics.WorkPosted()
}

// Drain runs the work queued so far and returns how many items ran. Work
// posted while draining runs on the next call.
func (r *Registry) Drain() int {
	r.mu.Lock()
	work := r.work
	r.work = nil
	r.mu.Unlock()

	for _, fn := range work {
		r.run(fn)
	}
	return len(work)
}

func (r *Registry) run(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.sink.Report("posted work panicked", &PanicError{Value: rec},
				"correlation_id", uuid.NewString())
		}
	}()
	fn()
}

// Publish sends the state of every changed Handle to the surface and
// returns how many were sent.
func (r *Registry) Publish() int {
	n := 0
	publish := func(h *Handle) {
		if !h.dirty {
			return
		}
		h.dirty = false
		r.surface.HandleUpdated(h.Snapshot())
		n++
	}
	for _, h := range r.static {
		publish(h)
	}
	for _, target := range r.targets {
		for _, h := range r.byTarget[target].handles {
			publish(h)
		}
	}
	return n
}
