package watchboard

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/monitor"
)

// Static is a package-level member shown without a target: a variable, a
// function, or an event.
//
// Static is immutable after creation via [NewStatic]. It is attached to an
// owner type with [WithStatic]; the owner provides the member identity
// ("pkg.Owner::Name") and the module used by the module filter.
type Static struct {
	name   string
	ref    reflect.Value
	setter reflect.Value
	tag    monitor.Tag
}

// Name returns the member name.
func (s Static) Name() string {
	return s.name
}

// Tag returns the parsed marker.
func (s Static) Tag() monitor.Tag {
	return s.tag
}

// Writable reports whether the member accepts writes: pointer-backed
// members always do, function-backed members only with [WithSetter].
func (s Static) Writable() bool {
	if s.tag.Flags.Has(monitor.FlagReadOnly) {
		return false
	}
	return s.ref.Kind() == reflect.Pointer || s.setter.IsValid()
}

func (s Static) entry() catalog.Static {
	return catalog.Static{Name: s.name, Ref: s.ref, Setter: s.setter, Tag: s.tag}
}

// staticConfig holds mutable state during static construction.
type staticConfig struct {
	tag    monitor.Tag
	setter reflect.Value
}

// StaticOption configures a [Static] during construction.
//
// Built-in options: [WithTag], [WithLabel], [WithFormat], [WithGroup],
// [WithOrder], [WithSetter].
type StaticOption func(*staticConfig) error

// NewStatic creates a [Static] named name backed by ref.
//
// ref must be a non-nil pointer to a package-level variable (shown as a
// field), a pointer to an [event.Event] or [event.Signal] (shown as an
// event), a func() T (shown as a property) or any other func with at least
// one output (shown as a method).
//
// Example:
//
//	frame, err := watchboard.NewStatic("Frame", &game.Frame,
//	    watchboard.WithLabel("Frame #"),
//	    watchboard.WithOrder(-1),
//	)
//
// Returns an error if the name is empty, ref is not a supported kind, or an
// option fails.
//
// [event.Event]: https://pkg.go.dev/github.com/jpalmerr/watchboard/event#Event
// [event.Signal]: https://pkg.go.dev/github.com/jpalmerr/watchboard/event#Signal
func NewStatic(name string, ref any, opts ...StaticOption) (Static, error) {
	if name == "" {
		return Static{}, errors.New("static name cannot be empty")
	}
	rv := reflect.ValueOf(ref)
	switch {
	case !rv.IsValid():
		return Static{}, fmt.Errorf("static %q: reference cannot be nil", name)
	case rv.Kind() != reflect.Pointer && rv.Kind() != reflect.Func:
		return Static{}, fmt.Errorf("static %q: reference must be a pointer or function, got %T", name, ref)
	case rv.IsNil():
		return Static{}, fmt.Errorf("static %q: reference cannot be nil", name)
	}

	cfg := &staticConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Static{}, fmt.Errorf("static %q: %w", name, err)
		}
	}

	if cfg.setter.IsValid() && rv.Kind() != reflect.Func {
		return Static{}, fmt.Errorf("static %q: setter requires a function-backed member", name)
	}

	return Static{name: name, ref: rv, setter: cfg.setter, tag: cfg.tag}, nil
}

// WithTag sets every marker setting at once from a tag string in the same
// syntax as the `monitor` struct tag. Options applied later override the
// corresponding settings.
//
// Returns an error if the tag is malformed.
func WithTag(tag string) StaticOption {
	return func(cfg *staticConfig) error {
		parsed, err := monitor.ParseTag(tag)
		if err != nil {
			return err
		}
		cfg.tag = parsed
		return nil
	}
}

// WithLabel sets the display label. Defaults to the member name.
func WithLabel(label string) StaticOption {
	return func(cfg *staticConfig) error {
		cfg.tag.Label = label
		return nil
	}
}

// WithFormat sets the fmt verb used for scalar values, e.g. "%.2f".
func WithFormat(format string) StaticOption {
	return func(cfg *staticConfig) error {
		cfg.tag.Format = format
		return nil
	}
}

// WithGroup sets the dashboard panel the member is placed in.
func WithGroup(group string) StaticOption {
	return func(cfg *staticConfig) error {
		cfg.tag.Group = group
		return nil
	}
}

// WithOrder sets the sort position within the group.
func WithOrder(order int) StaticOption {
	return func(cfg *staticConfig) error {
		cfg.tag.Order = order
		return nil
	}
}

// WithSetter makes a function-backed member writable through
// [Watchboard.Set]. fn must be a func(T) where T is the getter's result.
//
// Returns an error if fn is not a function of one argument.
func WithSetter(fn any) StaticOption {
	return func(cfg *staticConfig) error {
		fv := reflect.ValueOf(fn)
		if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
			return fmt.Errorf("setter must be a function, got %T", fn)
		}
		if fv.Type().NumIn() != 1 || fv.Type().NumOut() != 0 {
			return fmt.Errorf("setter must take one argument and return nothing, got %s", fv.Type())
		}
		cfg.setter = fv
		return nil
	}
}
