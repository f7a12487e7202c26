package format

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/jpalmerr/watchboard/monitor"
)

// buildBool precomputes both outputs; the returned Func never formats.
func buildBool(_ *Factory, _ reflect.Type, fd monitor.FormatData) Func {
	prefix := labelPrefix(fd)
	trueText := prefix + colorize(fd.Colors.True, "TRUE")
	falseText := prefix + colorize(fd.Colors.False, "FALSE")
	nullLine := prefix + nullText(fd)
	return func(v reflect.Value) string {
		switch {
		case !v.IsValid():
			return nullLine
		case v.Bool():
			return trueText
		default:
			return falseText
		}
	}
}

func boolAppender(fd monitor.FormatData) appendFunc {
	trueText := colorize(fd.Colors.True, "TRUE")
	falseText := colorize(fd.Colors.False, "FALSE")
	return func(dst []byte, v reflect.Value) []byte {
		if v.Bool() {
			return append(dst, trueText...)
		}
		return append(dst, falseText...)
	}
}

// numberAppender returns a closure dedicated to one of the primitive
// number types matched by the number rule.
func numberAppender(t reflect.Type, fd monitor.FormatData) appendFunc {
	format := fd.Format
	switch t.Kind() {
	case reflect.Int:
		if format != "" {
			return func(dst []byte, v reflect.Value) []byte { return fmt.Appendf(dst, format, int(v.Int())) }
		}
		return func(dst []byte, v reflect.Value) []byte { return strconv.AppendInt(dst, v.Int(), 10) }
	case reflect.Int32:
		if format != "" {
			return func(dst []byte, v reflect.Value) []byte { return fmt.Appendf(dst, format, int32(v.Int())) }
		}
		return func(dst []byte, v reflect.Value) []byte { return strconv.AppendInt(dst, v.Int(), 10) }
	case reflect.Int64:
		if format != "" {
			return func(dst []byte, v reflect.Value) []byte { return fmt.Appendf(dst, format, v.Int()) }
		}
		return func(dst []byte, v reflect.Value) []byte { return strconv.AppendInt(dst, v.Int(), 10) }
	case reflect.Float32:
		if format != "" {
			return func(dst []byte, v reflect.Value) []byte { return fmt.Appendf(dst, format, float32(v.Float())) }
		}
		return func(dst []byte, v reflect.Value) []byte { return strconv.AppendFloat(dst, v.Float(), 'f', 2, 32) }
	default:
		if format != "" {
			return func(dst []byte, v reflect.Value) []byte { return fmt.Appendf(dst, format, v.Float()) }
		}
		return func(dst []byte, v reflect.Value) []byte { return strconv.AppendFloat(dst, v.Float(), 'f', 2, 64) }
	}
}

func mathAppender(t reflect.Type, fd monitor.FormatData) appendFunc {
	names := mathComponents[t]
	colors := []string{fd.Colors.X, fd.Colors.Y, fd.Colors.Z, fd.Colors.W}
	labels := make([]string, len(names))
	for i, n := range names {
		labels[i] = colorize(colors[i], n) + " "
	}
	format := fd.Format

	return func(dst []byte, v reflect.Value) []byte {
		for i, label := range labels {
			if i > 0 {
				dst = append(dst, ' ')
			}
			dst = append(dst, label...)
			if format == "" {
				dst = strconv.AppendFloat(dst, v.Field(i).Float(), 'f', 2, 64)
			} else {
				dst = fmt.Appendf(dst, format, v.Field(i).Float())
			}
		}
		return dst
	}
}

func formattableAppender(t reflect.Type, fd monitor.FormatData) appendFunc {
	format := fd.Format
	null := nullText(fd)
	if t.Implements(layouterType) {
		return func(dst []byte, v reflect.Value) []byte {
			x, ok := iface(v)
			if !ok {
				return append(dst, null...)
			}
			return append(dst, x.(layouter).Format(format)...)
		}
	}
	return func(dst []byte, v reflect.Value) []byte {
		x, ok := iface(v)
		if !ok {
			return append(dst, null...)
		}
		return fmt.Appendf(dst, format, x)
	}
}

func objectAppender(fd monitor.FormatData) appendFunc {
	null := nullText(fd)
	return func(dst []byte, v reflect.Value) []byte {
		x, ok := iface(v)
		if !ok {
			return append(dst, null...)
		}
		obj, ok := x.(monitor.Object)
		if !ok || !obj.Alive() {
			return append(dst, null...)
		}
		return append(dst, obj.String()...)
	}
}

func nodeNameAppender(fd monitor.FormatData) appendFunc {
	null := nullText(fd)
	return func(dst []byte, v reflect.Value) []byte {
		x, ok := iface(v)
		if !ok {
			return append(dst, null...)
		}
		return append(dst, x.(monitor.Node).NodeName()...)
	}
}

// plainAppender renders value kinds: Stringer first, then the format
// string, then %v.
func plainAppender(t reflect.Type, fd monitor.FormatData) appendFunc {
	format := fd.Format
	switch {
	case t.Implements(stringerType):
		return func(dst []byte, v reflect.Value) []byte {
			if x, ok := iface(v); ok {
				return append(dst, x.(fmt.Stringer).String()...)
			}
			return fmt.Append(dst, v)
		}
	case format != "":
		return func(dst []byte, v reflect.Value) []byte { return fmt.Appendf(dst, format, v) }
	case t.Kind() == reflect.String:
		return func(dst []byte, v reflect.Value) []byte { return append(dst, v.String()...) }
	default:
		return func(dst []byte, v reflect.Value) []byte { return fmt.Append(dst, v) }
	}
}

// referenceAppender renders non-nil references; callers guard nil.
func referenceAppender(t reflect.Type, fd monitor.FormatData) appendFunc {
	format := fd.Format
	switch {
	case t.Implements(errorType):
		return func(dst []byte, v reflect.Value) []byte {
			if x, ok := iface(v); ok {
				return append(dst, x.(error).Error()...)
			}
			return fmt.Append(dst, v)
		}
	case t.Implements(stringerType):
		return func(dst []byte, v reflect.Value) []byte {
			if x, ok := iface(v); ok {
				return append(dst, x.(fmt.Stringer).String()...)
			}
			return fmt.Append(dst, v)
		}
	case format != "":
		return func(dst []byte, v reflect.Value) []byte { return fmt.Appendf(dst, format, v) }
	default:
		return func(dst []byte, v reflect.Value) []byte { return fmt.Append(dst, v) }
	}
}

// element returns the appender used for values of static type t inside
// collections and for reference-typed members. References are null guarded,
// interfaces dispatch on the dynamic type.
func (f *Factory) element(t reflect.Type, fd monitor.FormatData) appendFunc {
	if c, ok := f.customFor(t); ok {
		return func(dst []byte, v reflect.Value) []byte { return append(dst, c.call(fd, v)...) }
	}

	var app appendFunc
	switch {
	case t == boolType:
		return boolAppender(fd)
	case t.Implements(objectType):
		app = objectAppender(fd)
	case t.Implements(nodeType):
		app = nodeNameAppender(fd)
	case t.Kind() == reflect.Interface:
		app = f.dynamicAppender(fd)
	case matchMath(f, t, fd):
		return mathAppender(t, fd)
	case matchFormattable(f, t, fd):
		app = formattableAppender(t, fd)
	case numberTypes[t]:
		return numberAppender(t, fd)
	case !isReference(t):
		return plainAppender(t, fd)
	default:
		app = referenceAppender(t, fd)
	}

	if !isReference(t) {
		return app
	}
	return guard(app, nullText(fd))
}

// dynamicAppender renders interface values by their dynamic type. The
// per-type appenders are cached in the closure, which, like every Func,
// is used by one Handle at a time.
func (f *Factory) dynamicAppender(fd monitor.FormatData) appendFunc {
	byType := make(map[reflect.Type]appendFunc)
	return func(dst []byte, v reflect.Value) []byte {
		if v.Kind() == reflect.Interface {
			v = v.Elem()
		}
		if !v.IsValid() {
			return append(dst, nullText(fd)...)
		}
		app, ok := byType[v.Type()]
		if !ok {
			app = f.element(v.Type(), fd)
			byType[v.Type()] = app
		}
		return app(dst, v)
	}
}

func guard(app appendFunc, null string) appendFunc {
	return func(dst []byte, v reflect.Value) []byte {
		if isNil(v) {
			return append(dst, null...)
		}
		return app(dst, v)
	}
}

// iface returns v as an interface value when v is non-nil and exported.
func iface(v reflect.Value) (any, bool) {
	if isNil(v) || !v.CanInterface() {
		return nil, false
	}
	return v.Interface(), true
}
