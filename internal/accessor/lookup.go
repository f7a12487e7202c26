package accessor

import (
	"fmt"
	"reflect"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/diag"
)

var boolType = reflect.TypeFor[bool]()

// ErrMemberNotFound is returned by the name lookups below.
var ErrMemberNotFound = fmt.Errorf("%w: member not found", diag.ErrMalformed)

// EventByName returns the event named name on view, the addressable
// struct value of a target. Fields (including promoted ones) and
// zero-argument methods returning an event are considered.
func EventByName(view reflect.Value, name string) (event.Source, error) {
	if view.Kind() == reflect.Struct {
		if sf, ok := view.Type().FieldByName(name); ok && event.IsSource(sf.Type) {
			fv, err := fieldValue(view, sf.Index)
			if err != nil {
				return nil, err
			}
			return SourceOf(fv)
		}
	}
	if view.CanAddr() {
		if m := exported(view).Addr().MethodByName(name); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
			return SourceOf(m.Call(nil)[0])
		}
	}
	return nil, fmt.Errorf("event %q: %w", name, ErrMemberNotFound)
}

// StaticEvent returns the static event named name registered on t.
func StaticEvent(t *catalog.Type, name string) (event.Source, error) {
	s, ok := t.Static(name)
	if !ok || s.Ref.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("static event %q: %w", name, ErrMemberNotFound)
	}
	src, ok := s.Ref.Interface().(event.Source)
	if !ok {
		return nil, fmt.Errorf("static %q is not an event: %w", name, ErrMemberNotFound)
	}
	return src, nil
}

// BoolByName returns a reader for the bool field or zero-argument bool
// method name on view.
func BoolByName(view reflect.Value, name string) (func() (bool, error), error) {
	if view.Kind() == reflect.Struct {
		if sf, ok := view.Type().FieldByName(name); ok && sf.Type == boolType {
			index := sf.Index
			return func() (bool, error) {
				fv, err := fieldValue(view, index)
				if err != nil {
					return false, err
				}
				return fv.Bool(), nil
			}, nil
		}
	}
	if view.CanAddr() {
		m := exported(view).Addr().MethodByName(name)
		if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 && m.Type().Out(0) == boolType {
			return func() (bool, error) { return m.Call(nil)[0].Bool(), nil }, nil
		}
	}
	return nil, fmt.Errorf("condition %q: %w", name, ErrMemberNotFound)
}

// StaticBool returns a reader for the static bool variable or function
// name registered on t.
func StaticBool(t *catalog.Type, name string) (func() (bool, error), error) {
	s, ok := t.Static(name)
	if !ok {
		return nil, fmt.Errorf("condition %q: %w", name, ErrMemberNotFound)
	}
	ref := s.Ref
	switch {
	case ref.Kind() == reflect.Pointer && ref.Type().Elem() == boolType:
		return func() (bool, error) { return ref.Elem().Bool(), nil }, nil
	case ref.Kind() == reflect.Func && ref.Type().NumIn() == 0 && ref.Type().NumOut() == 1 && ref.Type().Out(0) == boolType:
		return func() (bool, error) { return ref.Call(nil)[0].Bool(), nil }, nil
	}
	return nil, fmt.Errorf("condition %q is not a bool: %w", name, ErrMemberNotFound)
}
