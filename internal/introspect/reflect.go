package introspect

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/monitor"
)

var (
	// ErrMalformedTag is reported for struct tags that fail to parse.
	ErrMalformedTag = monitor.ErrMalformedTag
	// ErrMemberNotFound is reported for annotations naming no member.
	ErrMemberNotFound = fmt.Errorf("%w: annotated member not found", diag.ErrMalformed)
	// ErrUnsupportedSignature is reported for methods with non-pointer
	// parameters, which the engine cannot supply.
	ErrUnsupportedSignature = fmt.Errorf("%w: method parameters must be pointer out-parameters", diag.ErrMalformed)
)

var (
	errorType    = reflect.TypeFor[error]()
	anySliceType = reflect.TypeFor[[]any]()
	countType    = reflect.TypeFor[int]()
)

// Reflect is the reflect-backed [TypeIntrospector].
type Reflect struct {
	catalog *catalog.Catalog
	report  func(error)
}

// NewReflect creates an introspector over c. Members that cannot be
// described are passed to report and left out of the listings.
func NewReflect(c *catalog.Catalog, report func(error)) *Reflect {
	if report == nil {
		report = func(error) {}
	}
	return &Reflect{catalog: c, report: report}
}

var _ TypeIntrospector = (*Reflect)(nil)

// Fields lists monitored non-event fields, or static variables.
func (r *Reflect) Fields(t *catalog.Type, static bool) []MemberDescriptor {
	if static {
		return r.statics(t, KindField)
	}
	return r.structMembers(t, false)
}

// Events lists monitored event fields, or static events.
func (r *Reflect) Events(t *catalog.Type, static bool) []MemberDescriptor {
	if static {
		return r.statics(t, KindEvent)
	}
	return r.structMembers(t, true)
}

// Properties lists annotated zero-argument single-result methods, or
// static functions of that shape.
func (r *Reflect) Properties(t *catalog.Type, static bool) []MemberDescriptor {
	if static {
		return r.statics(t, KindProperty)
	}
	return r.methodMembers(t, KindProperty)
}

// Methods lists every other annotated method, or static function.
func (r *Reflect) Methods(t *catalog.Type, static bool) []MemberDescriptor {
	if static {
		return r.statics(t, KindMethod)
	}
	return r.methodMembers(t, KindMethod)
}

func (r *Reflect) structMembers(t *catalog.Type, events bool) []MemberDescriptor {
	st := t.Go()
	if st.Kind() != reflect.Struct {
		return nil
	}

	var out []MemberDescriptor
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if sf.Anonymous || event.IsSource(sf.Type) != events {
			continue
		}
		tag, ok := r.fieldTag(t, sf)
		if !ok {
			continue
		}

		d := MemberDescriptor{
			Name:          sf.Name,
			Kind:          KindField,
			DeclaringType: t,
			ValueType:     sf.Type,
			Tag:           tag,
			Index:         sf.Index,
		}
		if events {
			d.Kind = KindEvent
			d.ValueType = countType
		}
		out = append(out, d)
	}
	return out
}

// fieldTag returns the marker of sf: a catalog annotation wins over the
// struct tag.
func (r *Reflect) fieldTag(t *catalog.Type, sf reflect.StructField) (monitor.Tag, bool) {
	if tag, ok := t.Annotation(sf.Name); ok {
		return tag, !tag.Ignore
	}
	raw, ok := sf.Tag.Lookup(monitor.TagKey)
	if !ok {
		return monitor.Tag{}, false
	}
	tag, err := monitor.ParseTag(raw)
	if err != nil {
		r.report(fmt.Errorf("%s.%s: %w", t.Name(), sf.Name, err))
		return monitor.Tag{}, false
	}
	return tag, !tag.Ignore
}

func (r *Reflect) methodMembers(t *catalog.Type, want Kind) []MemberDescriptor {
	var out []MemberDescriptor
	for _, a := range t.Annotations() {
		if a.Tag.Ignore || isField(t.Go(), a.Member) {
			continue
		}
		d, err := r.describeMethod(t, a.Member, a.Tag)
		if err != nil {
			// report once, from the property listing
			if want == KindProperty {
				r.report(err)
			}
			continue
		}
		if d.Kind == want {
			out = append(out, d)
		}
	}
	return out
}

func isField(t reflect.Type, name string) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	_, ok := t.FieldByName(name)
	return ok
}

// describeMethod builds the descriptor of method name on the pointer
// method set of t.
func (r *Reflect) describeMethod(t *catalog.Type, name string, tag monitor.Tag) (MemberDescriptor, error) {
	return r.describeMethodOn(t, t.Go(), name, tag)
}

// describeMethodOn looks name up on the pointer method set of recv, a type
// embedded in t or t itself.
func (r *Reflect) describeMethodOn(t *catalog.Type, recv reflect.Type, name string, tag monitor.Tag) (MemberDescriptor, error) {
	pt := reflect.PointerTo(recv)
	m, ok := pt.MethodByName(name)
	if !ok {
		return MemberDescriptor{}, fmt.Errorf("%s.%s: %w", t.Name(), name, ErrMemberNotFound)
	}

	d := MemberDescriptor{
		Name:          name,
		DeclaringType: t,
		Tag:           tag,
		Method:        name,
	}

	if isPropertyFunc(m.Type, 1) {
		d.Kind = KindProperty
		d.ValueType = m.Type.Out(0)
		if !tag.Flags.Has(monitor.FlagReadOnly) {
			if sm, ok := pt.MethodByName("Set" + name); ok && isSetterFunc(sm.Type, 1, d.ValueType) {
				d.Setter = sm.Name
			}
		}
		return d, nil
	}

	vt, err := outputType(m.Type, 1)
	if err != nil {
		return MemberDescriptor{}, fmt.Errorf("%s.%s: %w", t.Name(), name, err)
	}
	d.Kind = KindMethod
	d.ValueType = vt
	return d, nil
}

func (r *Reflect) statics(t *catalog.Type, want Kind) []MemberDescriptor {
	var out []MemberDescriptor
	for _, s := range t.Statics() {
		if s.Tag.Ignore {
			continue
		}
		d, err := describeStatic(t, s)
		if err != nil {
			if want == KindField {
				r.report(err)
			}
			continue
		}
		if d.Kind == want {
			out = append(out, d)
		}
	}
	return out
}

func describeStatic(t *catalog.Type, s catalog.Static) (MemberDescriptor, error) {
	d := MemberDescriptor{
		Name:          s.Name,
		Static:        true,
		DeclaringType: t,
		Tag:           s.Tag,
		Ref:           s.Ref,
	}

	rt := s.Ref.Type()
	switch rt.Kind() {
	case reflect.Pointer:
		if event.IsSource(rt) {
			d.Kind = KindEvent
			d.ValueType = countType
			return d, nil
		}
		d.Kind = KindField
		d.ValueType = rt.Elem()
		return d, nil

	case reflect.Func:
		if isPropertyFunc(rt, 0) {
			d.Kind = KindProperty
			d.ValueType = rt.Out(0)
			if s.Setter.IsValid() && !s.Tag.Flags.Has(monitor.FlagReadOnly) {
				if !isSetterFunc(s.Setter.Type(), 0, d.ValueType) {
					return MemberDescriptor{}, fmt.Errorf("%s::%s: setter must be func(%s): %w", t.Name(), s.Name, d.ValueType, ErrUnsupportedSignature)
				}
				d.SetterRef = s.Setter
			}
			return d, nil
		}
		vt, err := outputType(rt, 0)
		if err != nil {
			return MemberDescriptor{}, fmt.Errorf("%s::%s: %w", t.Name(), s.Name, err)
		}
		d.Kind = KindMethod
		d.ValueType = vt
		return d, nil
	}

	return MemberDescriptor{}, fmt.Errorf("%s::%s: %w", t.Name(), s.Name, catalog.ErrInvalidStatic)
}

// isPropertyFunc reports whether ft, after skipping skip receiver
// parameters, takes nothing and returns one non-error value.
func isPropertyFunc(ft reflect.Type, skip int) bool {
	return ft.NumIn() == skip && ft.NumOut() == 1 && ft.Out(0) != errorType
}

func isSetterFunc(ft reflect.Type, skip int, vt reflect.Type) bool {
	return ft.NumIn() == skip+1 && ft.NumOut() == 0 && ft.In(skip) == vt
}

// outputType computes the value type of a method: its results without a
// trailing error, followed by its pointer out-parameters. One output is
// returned as its own type, several as []any, none as nil.
func outputType(ft reflect.Type, skip int) (reflect.Type, error) {
	if ft.IsVariadic() {
		return nil, ErrUnsupportedSignature
	}
	var outs []reflect.Type
	n := ft.NumOut()
	if n > 0 && ft.Out(n-1) == errorType {
		n--
	}
	for i := 0; i < n; i++ {
		outs = append(outs, ft.Out(i))
	}
	for i := skip; i < ft.NumIn(); i++ {
		in := ft.In(i)
		if in.Kind() != reflect.Pointer {
			return nil, ErrUnsupportedSignature
		}
		outs = append(outs, in.Elem())
	}

	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0], nil
	default:
		return anySliceType, nil
	}
}

// Resolve looks d up on closed. Descriptors that are not generic are
// returned unchanged.
func (r *Reflect) Resolve(d MemberDescriptor, closed *catalog.Type) (MemberDescriptor, error) {
	if !d.Generic() {
		return d, nil
	}
	origin := d.localIdentity()

	if d.Static {
		s, owner, ok := r.findStatic(closed, d.Name)
		if !ok {
			return MemberDescriptor{}, fmt.Errorf("%s::%s on %s: %w", d.DeclaringType.Name(), d.Name, closed.Name(), ErrMemberNotFound)
		}
		s.Tag = d.Tag
		nd, err := describeStatic(owner, s)
		if err != nil {
			return MemberDescriptor{}, err
		}
		nd.DeclaringType = closed
		nd.origin = origin
		return nd, nil
	}

	// Members of the definition live on the instantiation closed embeds,
	// so lookups go through that base rather than by name on closed.
	base, ok := catalog.SubclassOf(closed.Go(), d.DeclaringType.Definition())
	if !ok {
		return MemberDescriptor{}, fmt.Errorf("%s.%s on %s: %w", d.DeclaringType.Name(), d.Name, closed.Name(), ErrMemberNotFound)
	}

	switch d.Kind {
	case KindField, KindEvent:
		if base.Type.Kind() != reflect.Struct {
			return MemberDescriptor{}, fmt.Errorf("%s.%s on %s: %w", d.DeclaringType.Name(), d.Name, closed.Name(), ErrMemberNotFound)
		}
		sf, ok := base.Type.FieldByName(d.Name)
		if !ok {
			return MemberDescriptor{}, fmt.Errorf("%s.%s on %s: %w", d.DeclaringType.Name(), d.Name, closed.Name(), ErrMemberNotFound)
		}
		nd := d
		nd.DeclaringType = closed
		nd.Index = append(slices.Clone(base.Index), sf.Index...)
		if d.Kind == KindField {
			nd.ValueType = sf.Type
		}
		nd.origin = origin
		return nd, nil

	default:
		nd, err := r.describeMethodOn(closed, base.Type, d.Method, d.Tag)
		if err != nil {
			return MemberDescriptor{}, err
		}
		nd.Name = d.Name
		if len(base.Index) > 0 {
			nd.Receiver = base.Type
			nd.ReceiverIndex = slices.Clone(base.Index)
		}
		nd.origin = origin
		return nd, nil
	}
}

// findStatic searches closed and then its concrete bases for a static
// called name.
func (r *Reflect) findStatic(closed *catalog.Type, name string) (catalog.Static, *catalog.Type, bool) {
	if s, ok := closed.Static(name); ok {
		return s, closed, true
	}
	if r.catalog == nil {
		return catalog.Static{}, nil, false
	}
	for _, b := range catalog.Hierarchy(closed.Go())[1:] {
		entry, ok := r.catalog.Lookup(b.Type)
		if !ok || entry.IsGeneric() {
			continue
		}
		if s, ok := entry.Static(name); ok {
			return s, entry, true
		}
	}
	return catalog.Static{}, nil, false
}
