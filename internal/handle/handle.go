package handle

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/format"
	"github.com/jpalmerr/watchboard/internal/ids"
	"github.com/jpalmerr/watchboard/internal/profile"
	"github.com/jpalmerr/watchboard/internal/surface"
)

// ErrReadOnly is returned by [Handle.Set] for members without a setter.
var ErrReadOnly = errors.New("handle: member is read-only")

// State is the lifecycle state of a Handle.
type State uint8

const (
	StateCreated State = iota
	StateActive
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// PanicError is returned by [Handle.Refresh] when reading or formatting
// the member panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Handle is a live binding of a Profile to a target.
type Handle struct {
	id      string
	profile *profile.Profile

	// target is the registered pointer; nil for static members.
	target     any
	targetName string
	view       reflect.Value
	path       []int
	root       reflect.Value

	format format.Func
	text   string

	enabled bool
	visible bool
	state   State
	err     error
	dirty   bool

	source      event.Source
	sub         event.Subscription
	eventDriven bool
	primed      bool

	// stale is set by update events; pending holds the delivered value
	// when the event carries one.
	stale      bool
	pending    any
	hasPending bool

	updatedAt time.Time
}

// newHandle creates a Handle for p. target is nil for static profiles;
// otherwise it is the registered pointer and path leads from the pointed-to
// struct to the value of p's declaring type.
func newHandle(p *profile.Profile, target any, path []int) *Handle {
	h := &Handle{
		id:      ids.New(),
		profile: p,
		target:  target,
		path:    path,
		enabled: true,
		visible: true,
		state:   StateCreated,
	}
	if target != nil {
		h.view = reflect.ValueOf(target).Elem()
		h.targetName = h.view.Type().String()
		h.resolveRoot()
	}
	h.format = p.Formatter(h.root)
	return h
}

// resolveRoot locates the declaring-type value inside the target. It fails
// while a pointer embed on the path is nil.
func (h *Handle) resolveRoot() bool {
	if h.root.IsValid() {
		return true
	}
	if len(h.path) == 0 {
		h.root = h.view
		return true
	}
	v, err := h.view.FieldByIndexErr(h.path)
	if err != nil {
		return false
	}
	h.root = v
	return true
}

// ID returns the Handle's ULID.
func (h *Handle) ID() string { return h.id }

// Profile returns the owning Profile.
func (h *Handle) Profile() *profile.Profile { return h.profile }

// Target returns the registered target, nil for static Handles.
func (h *Handle) Target() any { return h.target }

// Text returns the last formatted text.
func (h *Handle) Text() string { return h.text }

// Enabled reports whether the Handle takes part in refresh passes.
func (h *Handle) Enabled() bool { return h.enabled }

// Visible reports the result of the Handle's visibility condition.
func (h *Handle) Visible() bool { return h.visible }

// State returns the lifecycle state.
func (h *Handle) State() State { return h.state }

// Err returns the failure that disabled the Handle, if any.
func (h *Handle) Err() error { return h.err }

// EventDriven reports whether the Handle is updated by its update event
// instead of by refresh passes.
func (h *Handle) EventDriven() bool { return h.eventDriven }

// Refresh reads the member and formats it. It returns whether the text
// changed. Disabled, inactive and primed event-driven Handles are skipped.
// Panics from user code are returned as *[PanicError].
func (h *Handle) Refresh() (changed bool, err error) {
	if h.state != StateActive || !h.enabled {
		return false, nil
	}
	if h.eventDriven && h.stale {
		return h.apply()
	}
	if h.eventDriven && h.primed {
		return false, nil
	}
	return h.read()
}

// Stale reports whether an update event fired since the last render.
func (h *Handle) Stale() bool { return h.stale }

// markStale records an update event without reading or formatting. Only
// the last delivered value is kept. It reports whether h was fresh before.
func (h *Handle) markStale(value any, carries bool) bool {
	h.pending, h.hasPending = value, carries
	if h.stale {
		return false
	}
	h.stale = true
	return true
}

// apply renders the pending update: the delivered value if the event
// carried one, otherwise a fresh read.
func (h *Handle) apply() (bool, error) {
	value, carries := h.pending, h.hasPending
	h.stale, h.pending, h.hasPending = false, nil, false
	if carries {
		return h.deliver(value)
	}
	return h.read()
}

// read is Refresh without the event-driven skip.
func (h *Handle) read() (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			changed = false
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	if h.target != nil && !h.resolveRoot() {
		return false, fmt.Errorf("%s: embedded value of %s is nil", h.profile.Identity(), h.targetName)
	}
	v, err := h.profile.Read(h.root)
	if err != nil {
		return false, err
	}
	h.primed = true
	return h.setText(h.format(v)), nil
}

// deliver formats a value carried by the update event.
func (h *Handle) deliver(value any) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			changed = false
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	v := reflect.New(h.profile.ValueType()).Elem()
	if value != nil {
		v.Set(reflect.ValueOf(value))
	}
	h.primed = true
	return h.setText(h.format(v)), nil
}

func (h *Handle) setText(text string) bool {
	if text == h.text {
		return false
	}
	h.text = text
	h.dirty = true
	h.updatedAt = time.Now()
	return true
}

// Enable re-enables a disabled Handle and clears its error. It reports
// false for disposed Handles, which never reactivate.
func (h *Handle) Enable() bool {
	if h.state == StateDisposed {
		return false
	}
	if !h.enabled || h.err != nil {
		h.enabled = true
		h.err = nil
		h.dirty = true
	}
	return true
}

// Disable stops refreshing the Handle.
func (h *Handle) Disable() {
	if h.enabled {
		h.enabled = false
		h.dirty = true
	}
}

func (h *Handle) setVisible(v bool) {
	if h.visible != v {
		h.visible = v
		h.dirty = true
	}
}

// Set writes value through the member's setter and refreshes the text.
func (h *Handle) Set(value any) error {
	if h.state == StateDisposed {
		return fmt.Errorf("%s: handle disposed", h.profile.Identity())
	}
	if !h.profile.CanWrite() {
		return fmt.Errorf("%s: %w", h.profile.Identity(), ErrReadOnly)
	}
	if h.target != nil && !h.resolveRoot() {
		return fmt.Errorf("%s: embedded value of %s is nil", h.profile.Identity(), h.targetName)
	}
	if err := h.profile.Write(h.root, reflect.ValueOf(value)); err != nil {
		return err
	}
	if h.enabled && h.state == StateActive {
		_, err := h.read()
		return err
	}
	return nil
}

// Snapshot returns the Handle's current state for the display surface.
func (h *Handle) Snapshot() surface.Snapshot {
	fd := h.profile.FormatData()
	s := surface.Snapshot{
		ID:        h.id,
		Identity:  h.profile.Identity(),
		Member:    h.profile.Name(),
		Label:     fd.Label,
		Kind:      h.profile.Kind().String(),
		Static:    h.profile.Static(),
		Target:    h.targetName,
		Group:     fd.Group,
		Order:     fd.Order,
		Text:      h.text,
		Enabled:   h.enabled,
		Visible:   h.visible,
		State:     h.state.String(),
		UpdatedAt: h.updatedAt,
	}
	if h.err != nil {
		s.Error = h.err.Error()
	}
	return s
}

func (h *Handle) String() string {
	if h.target == nil {
		return h.profile.Identity()
	}
	return fmt.Sprintf("%s@%s", h.profile.Identity(), h.targetName)
}
