package format

import (
	"fmt"
	"reflect"
	"slices"
	"unsafe"

	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/monitor"
)

var (
	// ErrProcessorNotFound is returned when the named processor does not exist.
	ErrProcessorNotFound = fmt.Errorf("%w: processor not found", diag.ErrMalformed)
	// ErrProcessorSignature is returned when a processor's signature does
	// not fit the member's value type.
	ErrProcessorSignature = fmt.Errorf("%w: processor signature does not match the member", diag.ErrMalformed)
)

var intType = reflect.TypeFor[int]()

// Match is the way a processor applies to a value type.
type Match uint8

const (
	Unsupported Match = iota
	// Direct processors take the whole value: func(T) string.
	Direct
	// PerElement processors take one element: func(E) string.
	PerElement
	// PerElementIndexed processors take an element and its index:
	// func(E, int) string.
	PerElementIndexed
	// PerPair processors take a map entry: func(K, V) string.
	PerPair
	// Sequence processors take one element of an iter.Seq: func(E) string.
	Sequence
)

func (m Match) String() string {
	switch m {
	case Direct:
		return "direct"
	case PerElement:
		return "per-element"
	case PerElementIndexed:
		return "per-element-indexed"
	case PerPair:
		return "per-pair"
	case Sequence:
		return "sequence"
	default:
		return "unsupported"
	}
}

// Classify matches a processor function type, without receiver, against
// the value type it would process.
func Classify(fn, value reflect.Type) Match {
	if fn.Kind() != reflect.Func || fn.IsVariadic() || fn.NumOut() != 1 || fn.Out(0) != stringType {
		return Unsupported
	}

	switch fn.NumIn() {
	case 1:
		p := fn.In(0)
		if value.AssignableTo(p) {
			return Direct
		}
		if isSequential(value) && value.Elem().AssignableTo(p) {
			return PerElement
		}
		if elem, ok := seqElem(value); ok && elem.AssignableTo(p) {
			return Sequence
		}
	case 2:
		if isSequential(value) && value.Elem().AssignableTo(fn.In(0)) && fn.In(1) == intType {
			return PerElementIndexed
		}
		if value.Kind() == reflect.Map && value.Key().AssignableTo(fn.In(0)) && value.Elem().AssignableTo(fn.In(1)) {
			return PerPair
		}
	}
	return Unsupported
}

// Binder binds a processor to one target. It returns nil when the target
// cannot be bound, in which case the default formatter applies.
type Binder func(target reflect.Value) Func

// ProcessorSource describes where processors of a member are looked up.
type ProcessorSource struct {
	// Type is the member's declaring type; its pointer method set holds
	// instance processors.
	Type reflect.Type
	// Static is set for static members, which cannot use instance processors.
	Static bool
	// Statics looks up static functions registered on the declaring type.
	Statics func(name string) (reflect.Value, bool)
}

// Processor resolves the processor called name and returns a binder that
// wraps it according to its [Match].
func (f *Factory) Processor(src ProcessorSource, name string, value reflect.Type, fd monitor.FormatData) (Binder, error) {
	if src.Statics != nil {
		if fn, ok := src.Statics(name); ok && fn.Kind() == reflect.Func {
			m := Classify(fn.Type(), value)
			if m == Unsupported {
				return nil, fmt.Errorf("%s %s for %s: %w", name, fn.Type(), value, ErrProcessorSignature)
			}
			return func(reflect.Value) Func { return wrapProcessor(m, fn, value, fd) }, nil
		}
	}

	if src.Type != nil && !src.Static {
		if meth, ok := reflect.PointerTo(src.Type).MethodByName(name); ok {
			m := Classify(withoutReceiver(meth.Type), value)
			if m == Unsupported {
				return nil, fmt.Errorf("%s %s for %s: %w", name, meth.Type, value, ErrProcessorSignature)
			}
			index := meth.Index
			return func(target reflect.Value) Func {
				if !target.IsValid() || !target.CanAddr() {
					return nil
				}
				return wrapProcessor(m, addressOf(target).Method(index), value, fd)
			}, nil
		}
	}

	return nil, fmt.Errorf("%s on %v: %w", name, src.Type, ErrProcessorNotFound)
}

func withoutReceiver(ft reflect.Type) reflect.Type {
	in := make([]reflect.Type, 0, ft.NumIn()-1)
	for i := 1; i < ft.NumIn(); i++ {
		in = append(in, ft.In(i))
	}
	out := make([]reflect.Type, ft.NumOut())
	for i := range out {
		out[i] = ft.Out(i)
	}
	return reflect.FuncOf(in, out, ft.IsVariadic())
}

// addressOf returns a pointer to target usable for method calls even when
// target was reached through unexported fields.
func addressOf(target reflect.Value) reflect.Value {
	if target.CanInterface() {
		return target.Addr()
	}
	return reflect.NewAt(target.Type(), unsafe.Pointer(target.UnsafeAddr()))
}

// wrapProcessor adapts fn into a Func for values of type value.
func wrapProcessor(m Match, fn reflect.Value, value reflect.Type, fd monitor.FormatData) Func {
	args := make([]reflect.Value, fn.Type().NumIn())
	call := func() string { return fn.Call(args)[0].String() }

	switch m {
	case Direct:
		zero := reflect.Zero(fn.Type().In(0))
		return scalar(fd, func(dst []byte, v reflect.Value) []byte {
			if !v.IsValid() {
				v = zero
			}
			args[0] = v
			return append(dst, call()...)
		})

	case PerElement, PerElementIndexed:
		w := newListWriter(fd)
		nillable := value.Kind() == reflect.Slice
		indexed := m == PerElementIndexed
		return func(v reflect.Value) string {
			if !v.IsValid() || (nillable && v.IsNil()) {
				return w.nullText
			}
			w.reset()
			n := v.Len()
			for i := 0; i < n; i++ {
				args[0] = v.Index(i)
				if indexed {
					args[1] = reflect.ValueOf(i)
				}
				w.line(i, indexed || w.showIndex)
				w.buf.WriteString(call())
			}
			return w.text(n)
		}

	case PerPair:
		w := newListWriter(fd)
		less := keyOrder(value.Key())
		return func(v reflect.Value) string {
			if !v.IsValid() || v.IsNil() {
				return w.nullText
			}
			keys := v.MapKeys()
			slices.SortFunc(keys, less)
			w.reset()
			for i, k := range keys {
				args[0], args[1] = k, v.MapIndex(k)
				w.line(i, w.showIndex)
				w.buf.WriteString(call())
			}
			return w.text(len(keys))
		}

	default:
		w := newListWriter(fd)
		n := 0
		yield := reflect.MakeFunc(value.In(0), func(in []reflect.Value) []reflect.Value {
			args[0] = in[0]
			w.line(n, w.showIndex)
			w.buf.WriteString(call())
			n++
			return yieldContinue
		})
		return func(v reflect.Value) string {
			if !v.IsValid() || v.IsNil() {
				return w.nullText
			}
			w.reset()
			n = 0
			v.Call([]reflect.Value{yield})
			return w.text(n)
		}
	}
}
