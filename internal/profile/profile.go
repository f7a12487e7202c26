package profile

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/accessor"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/format"
	"github.com/jpalmerr/watchboard/internal/introspect"
	"github.com/jpalmerr/watchboard/monitor"
)

// Profile is the metadata of one monitored member. It holds no per-target
// state and can back any number of Handles.
type Profile struct {
	member  introspect.MemberDescriptor
	format  monitor.FormatData
	access  accessor.Accessor
	formats *format.Factory
	binder  format.Binder
}

// Member returns the member descriptor.
func (p *Profile) Member() introspect.MemberDescriptor { return p.member }

// Name returns the member name.
func (p *Profile) Name() string { return p.member.Name }

// Kind returns the member kind.
func (p *Profile) Kind() introspect.Kind { return p.member.Kind }

// Static reports whether the member is static.
func (p *Profile) Static() bool { return p.member.Static }

// DeclaringType returns the type the profile is keyed by.
func (p *Profile) DeclaringType() *catalog.Type { return p.member.DeclaringType }

// ValueType returns the type the member reads as.
func (p *Profile) ValueType() reflect.Type { return p.member.ValueType }

// Identity returns the member identity used for de-duplication.
func (p *Profile) Identity() string { return p.member.Identity() }

// FormatData returns the display metadata.
func (p *Profile) FormatData() monitor.FormatData { return p.format }

// UpdateEvent returns the name of the event that signals a new value.
func (p *Profile) UpdateEvent() string { return p.member.Tag.UpdateEvent }

// VisibleIf returns the name of the member gating visibility.
func (p *Profile) VisibleIf() string { return p.member.Tag.VisibleIf }

// HasProcessor reports whether a custom processor was bound.
func (p *Profile) HasProcessor() bool { return p.binder != nil }

// CanWrite reports whether the member has a setter.
func (p *Profile) CanWrite() bool { return p.access.Set != nil }

// Read returns the current value on target, the addressable value of the
// declaring type. Static members ignore target.
func (p *Profile) Read(target reflect.Value) (reflect.Value, error) {
	return p.access.Get(target)
}

// Write stores v into the member on target.
func (p *Profile) Write(target, v reflect.Value) error {
	if p.access.Set == nil {
		return fmt.Errorf("%s: %w", p.Identity(), accessor.ErrReadOnly)
	}
	return p.access.Set(target, v)
}

// Source returns the event held by an event member.
func (p *Profile) Source(target reflect.Value) (event.Source, error) {
	if p.access.Source == nil {
		return nil, fmt.Errorf("%s is a %s, not an event", p.Identity(), p.member.Kind)
	}
	return p.access.Source(target)
}

// Formatter returns a new formatter for one Handle on target. The custom
// processor is used when one is bound and accepts the target.
func (p *Profile) Formatter(target reflect.Value) format.Func {
	if p.binder != nil {
		if fn := p.binder(target); fn != nil {
			return fn
		}
	}
	return p.formats.Build(p.member.ValueType, p.format)
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s %s (%s)", p.member.Kind, p.Identity(), p.member.ValueType)
}

// Registry is the result of one discovery.
type Registry struct {
	static   []*Profile
	instance map[reflect.Type][]*Profile
	types    []reflect.Type
}

func newRegistry() *Registry {
	return &Registry{instance: make(map[reflect.Type][]*Profile)}
}

func (r *Registry) add(p *Profile) {
	if p.Static() {
		r.static = append(r.static, p)
		return
	}
	t := p.DeclaringType().Go()
	if _, ok := r.instance[t]; !ok {
		r.types = append(r.types, t)
	}
	r.instance[t] = append(r.instance[t], p)
}

// sort orders every list by FormatData.Order, then name.
func (r *Registry) sort() {
	byOrder := func(a, b *Profile) int {
		if a.format.Order != b.format.Order {
			return a.format.Order - b.format.Order
		}
		return strings.Compare(a.Name(), b.Name())
	}
	slices.SortStableFunc(r.static, byOrder)
	for _, list := range r.instance {
		slices.SortStableFunc(list, byOrder)
	}
}

// Static returns the static profiles. The slice must not be modified.
func (r *Registry) Static() []*Profile { return r.static }

// Instance returns the instance profiles declared on t. The slice must not
// be modified.
func (r *Registry) Instance(t reflect.Type) []*Profile { return r.instance[t] }

// Types returns the declaring types with instance profiles, in discovery
// order.
func (r *Registry) Types() []reflect.Type { return r.types }

// Len returns the total number of profiles.
func (r *Registry) Len() int {
	n := len(r.static)
	for _, list := range r.instance {
		n += len(list)
	}
	return n
}

// InstanceLen returns the number of instance profiles.
func (r *Registry) InstanceLen() int {
	return r.Len() - len(r.static)
}
