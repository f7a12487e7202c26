package accessor

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/internal/introspect"
	"github.com/jpalmerr/watchboard/monitor"
)

var (
	// ErrNilTarget is returned when an instance member is read without a target.
	ErrNilTarget = errors.New("accessor: nil target")
	// ErrNoBackingField is returned for members whose storage cannot be located.
	ErrNoBackingField = fmt.Errorf("%w: member has no backing storage", diag.ErrMalformed)
	// ErrNotAddressable is returned when a target is not addressable.
	ErrNotAddressable = errors.New("accessor: target is not addressable")
	// ErrReadOnly is returned by Set on members without a setter.
	ErrReadOnly = errors.New("accessor: member is read-only")
)

var errorType = reflect.TypeFor[error]()

// Getter reads the current value of a member.
type Getter func(target reflect.Value) (reflect.Value, error)

// Setter writes a member.
type Setter func(target reflect.Value, v reflect.Value) error

// Accessor bundles the closures synthesized for one member.
type Accessor struct {
	Get Getter
	// Set is nil for read-only members.
	Set Setter
	// Source returns the event of an event member; nil for other kinds.
	Source func(target reflect.Value) (event.Source, error)
}

// Synthesizer builds accessors from descriptors.
type Synthesizer interface {
	Synthesize(d introspect.MemberDescriptor) (Accessor, error)
}

// Reflect is the reflect-backed [Synthesizer].
type Reflect struct{}

var _ Synthesizer = Reflect{}

// Synthesize builds the accessor for d.
func (Reflect) Synthesize(d introspect.MemberDescriptor) (Accessor, error) {
	switch d.Kind {
	case introspect.KindField:
		if d.Static {
			return staticVariable(d)
		}
		return field(d)
	case introspect.KindProperty:
		if d.Static {
			return staticFunc(d), nil
		}
		return property(d)
	case introspect.KindMethod:
		return method(d)
	case introspect.KindEvent:
		return eventMember(d)
	}
	return Accessor{}, fmt.Errorf("%s: unknown member kind %d: %w", d.Name, d.Kind, ErrNoBackingField)
}

// exported returns v in a form that can be read through Interface,
// bypassing the unexported-field restriction on addressable values.
func exported(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

func fieldValue(target reflect.Value, index []int) (reflect.Value, error) {
	if !target.IsValid() {
		return reflect.Value{}, ErrNilTarget
	}
	v, err := target.FieldByIndexErr(index)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %v", ErrNilTarget, err)
	}
	return exported(v), nil
}

func field(d introspect.MemberDescriptor) (Accessor, error) {
	if len(d.Index) == 0 {
		return Accessor{}, fmt.Errorf("%s: %w", d.Name, ErrNoBackingField)
	}
	index := d.Index
	acc := Accessor{
		Get: func(target reflect.Value) (reflect.Value, error) {
			return fieldValue(target, index)
		},
	}
	if !d.Tag.Flags.Has(monitor.FlagReadOnly) {
		acc.Set = func(target, v reflect.Value) error {
			fv, err := fieldValue(target, index)
			if err != nil {
				return err
			}
			return assign(fv, v)
		}
	}
	return acc, nil
}

func staticVariable(d introspect.MemberDescriptor) (Accessor, error) {
	if !d.Ref.IsValid() || d.Ref.Kind() != reflect.Pointer || d.Ref.IsNil() {
		return Accessor{}, fmt.Errorf("%s: %w", d.Name, ErrNoBackingField)
	}
	elem := d.Ref.Elem()
	acc := Accessor{
		Get: func(reflect.Value) (reflect.Value, error) { return elem, nil },
	}
	if !d.Tag.Flags.Has(monitor.FlagReadOnly) {
		acc.Set = func(_, v reflect.Value) error { return assign(elem, v) }
	}
	return acc, nil
}

func staticFunc(d introspect.MemberDescriptor) Accessor {
	fn := d.Ref
	acc := Accessor{
		Get: func(reflect.Value) (reflect.Value, error) {
			return fn.Call(nil)[0], nil
		},
	}
	if d.SetterRef.IsValid() {
		setter := d.SetterRef
		acc.Set = func(_, v reflect.Value) error {
			if !v.IsValid() {
				v = reflect.Zero(setter.Type().In(0))
			}
			if !v.Type().AssignableTo(setter.Type().In(0)) {
				return fmt.Errorf("cannot assign %s to %s", v.Type(), setter.Type().In(0))
			}
			setter.Call([]reflect.Value{v})
			return nil
		}
	}
	return acc
}

// receiver returns the pointer receiver for target.
func receiver(target reflect.Value) (reflect.Value, error) {
	if !target.IsValid() {
		return reflect.Value{}, ErrNilTarget
	}
	if !target.CanAddr() {
		return reflect.Value{}, ErrNotAddressable
	}
	return exported(target).Addr(), nil
}

// methodOwner returns the type whose pointer method set holds d's methods
// and a function yielding the receiver for a target.
func methodOwner(d introspect.MemberDescriptor) (reflect.Type, func(reflect.Value) (reflect.Value, error)) {
	if d.Receiver == nil {
		return reflect.PointerTo(d.DeclaringType.Go()), receiver
	}
	index := d.ReceiverIndex
	return reflect.PointerTo(d.Receiver), func(target reflect.Value) (reflect.Value, error) {
		base, err := fieldValue(target, index)
		if err != nil {
			return reflect.Value{}, err
		}
		return receiver(base)
	}
}

func property(d introspect.MemberDescriptor) (Accessor, error) {
	owner, recvOf := methodOwner(d)
	m, ok := owner.MethodByName(d.Method)
	if !ok {
		return Accessor{}, fmt.Errorf("%s: %w", d.Name, ErrNoBackingField)
	}
	fn := m.Func
	acc := Accessor{
		Get: func(target reflect.Value) (reflect.Value, error) {
			recv, err := recvOf(target)
			if err != nil {
				return reflect.Value{}, err
			}
			return fn.Call([]reflect.Value{recv})[0], nil
		},
	}
	if d.Setter != "" {
		sm, ok := owner.MethodByName(d.Setter)
		if ok {
			setFn := sm.Func
			in := sm.Type.In(1)
			acc.Set = func(target, v reflect.Value) error {
				recv, err := recvOf(target)
				if err != nil {
					return err
				}
				if !v.IsValid() {
					v = reflect.Zero(in)
				}
				if !v.Type().AssignableTo(in) {
					return fmt.Errorf("cannot assign %s to %s", v.Type(), in)
				}
				setFn.Call([]reflect.Value{recv, v})
				return nil
			}
		}
	}
	return acc, nil
}

func method(d introspect.MemberDescriptor) (Accessor, error) {
	var fn reflect.Value
	skip := 0
	recvOf := receiver
	if d.Static {
		fn = d.Ref
	} else {
		var owner reflect.Type
		owner, recvOf = methodOwner(d)
		m, ok := owner.MethodByName(d.Method)
		if !ok {
			return Accessor{}, fmt.Errorf("%s: %w", d.Name, ErrNoBackingField)
		}
		fn = m.Func
		skip = 1
	}
	if !fn.IsValid() {
		return Accessor{}, fmt.Errorf("%s: %w", d.Name, ErrNoBackingField)
	}

	invoke := Invoker(fn, skip)
	static := d.Static
	return Accessor{
		Get: func(target reflect.Value) (reflect.Value, error) {
			var recv reflect.Value
			if !static {
				var err error
				if recv, err = recvOf(target); err != nil {
					return reflect.Value{}, err
				}
			}
			outs, err := invoke(recv)
			if err != nil {
				return reflect.Value{}, err
			}
			switch len(outs) {
			case 0:
				return reflect.Value{}, nil
			case 1:
				return outs[0], nil
			}
			values := make([]any, len(outs))
			for i, o := range outs {
				values[i] = o.Interface()
			}
			return reflect.ValueOf(values), nil
		},
	}, nil
}

// Invoker returns a function calling fn with fresh out-parameters and
// collecting its outputs: results without a trailing error, followed by
// the dereferenced out-parameters. A non-nil trailing error is returned.
// skip is 1 when fn expects a receiver, passed as recv.
func Invoker(fn reflect.Value, skip int) func(recv reflect.Value) ([]reflect.Value, error) {
	ft := fn.Type()
	params := make([]reflect.Type, 0, ft.NumIn())
	for i := skip; i < ft.NumIn(); i++ {
		params = append(params, ft.In(i).Elem())
	}
	hasErr := ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType

	return func(recv reflect.Value) ([]reflect.Value, error) {
		args := make([]reflect.Value, 0, skip+len(params))
		if skip == 1 {
			args = append(args, recv)
		}
		outParams := make([]reflect.Value, len(params))
		for i, p := range params {
			outParams[i] = reflect.New(p)
			args = append(args, outParams[i])
		}

		results := fn.Call(args)
		if hasErr {
			last := results[len(results)-1]
			results = results[:len(results)-1]
			if !last.IsNil() {
				return nil, last.Interface().(error)
			}
		}
		for _, p := range outParams {
			results = append(results, p.Elem())
		}
		return results, nil
	}
}

func eventMember(d introspect.MemberDescriptor) (Accessor, error) {
	var source func(target reflect.Value) (event.Source, error)
	switch {
	case d.Static:
		src, ok := d.Ref.Interface().(event.Source)
		if !ok {
			return Accessor{}, fmt.Errorf("%s: %w", d.Name, ErrNoBackingField)
		}
		source = func(reflect.Value) (event.Source, error) { return src, nil }
	case len(d.Index) > 0:
		index := d.Index
		source = func(target reflect.Value) (event.Source, error) {
			fv, err := fieldValue(target, index)
			if err != nil {
				return nil, err
			}
			return SourceOf(fv)
		}
	default:
		return Accessor{}, fmt.Errorf("%s: %w", d.Name, ErrNoBackingField)
	}

	return Accessor{
		Get: func(target reflect.Value) (reflect.Value, error) {
			src, err := source(target)
			if err != nil {
				return reflect.Value{}, err
			}
			n := 0
			if src != nil {
				n = src.SubscriberCount()
			}
			return reflect.ValueOf(n), nil
		},
		Source: source,
	}, nil
}

// SourceOf returns the event held in v, which is either an event value
// (addressable) or a pointer to one. A nil pointer yields a nil Source.
func SourceOf(v reflect.Value) (event.Source, error) {
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		if src, ok := v.Interface().(event.Source); ok {
			return src, nil
		}
		return nil, fmt.Errorf("%s is not an event: %w", v.Type(), ErrNoBackingField)
	}
	if !v.CanAddr() {
		return nil, ErrNotAddressable
	}
	if src, ok := exported(v).Addr().Interface().(event.Source); ok {
		return src, nil
	}
	return nil, fmt.Errorf("%s is not an event: %w", v.Type(), ErrNoBackingField)
}

func assign(dst, v reflect.Value) error {
	if !dst.CanSet() {
		return ErrReadOnly
	}
	if !v.IsValid() {
		dst.SetZero()
		return nil
	}
	switch {
	case v.Type().AssignableTo(dst.Type()):
		dst.Set(v)
	case v.Type().ConvertibleTo(dst.Type()) && v.Kind() != reflect.String && dst.Kind() != reflect.String:
		dst.Set(v.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", v.Type(), dst.Type())
	}
	return nil
}
