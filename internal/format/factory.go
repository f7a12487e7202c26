package format

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"

	"github.com/jpalmerr/watchboard/internal/metrics"
	"github.com/jpalmerr/watchboard/monitor"
)

// Func renders a member value. An invalid reflect.Value renders as null.
type Func func(v reflect.Value) string

// appendFunc renders a value without label, appending to dst.
type appendFunc func(dst []byte, v reflect.Value) []byte

// CustomFormatter is a user formatter for one exact type.
type CustomFormatter struct {
	typ  reflect.Type
	call func(fd monitor.FormatData, v reflect.Value) string
}

// Type returns the type the formatter handles.
func (c CustomFormatter) Type() reflect.Type { return c.typ }

// Custom adapts fn into a [CustomFormatter] for values of type T.
func Custom[T any](fn func(monitor.FormatData, T) string) CustomFormatter {
	return CustomFormatter{
		typ: reflect.TypeFor[T](),
		call: func(fd monitor.FormatData, v reflect.Value) string {
			var x T
			if v.IsValid() && v.CanInterface() {
				if t, ok := v.Interface().(T); ok {
					x = t
				}
			}
			return fn(fd, x)
		},
	}
}

var (
	formatDataType = reflect.TypeFor[monitor.FormatData]()
	stringType     = reflect.TypeFor[string]()
)

// CustomFunc adapts fn, which must have the signature
// func(monitor.FormatData, T) string, into a [CustomFormatter].
func CustomFunc(fn any) (CustomFormatter, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return CustomFormatter{}, fmt.Errorf("%w: custom formatter must be a function, got %T", ErrProcessorSignature, fn)
	}
	ft := fv.Type()
	if ft.NumIn() != 2 || ft.In(0) != formatDataType || ft.NumOut() != 1 || ft.Out(0) != stringType {
		return CustomFormatter{}, fmt.Errorf("%w: custom formatter must be func(monitor.FormatData, T) string, got %s", ErrProcessorSignature, ft)
	}
	arg := ft.In(1)
	return CustomFormatter{
		typ: arg,
		call: func(fd monitor.FormatData, v reflect.Value) string {
			if !v.IsValid() {
				v = reflect.Zero(arg)
			}
			return fv.Call([]reflect.Value{reflect.ValueOf(fd), v})[0].String()
		},
	}, nil
}

// Options configures a [Factory].
type Options struct {
	Custom  []CustomFormatter
	Metrics *metrics.Metrics
}

type cacheKey struct {
	typ       reflect.Type
	hasFormat bool
}

// Factory selects and builds formatters.
type Factory struct {
	rules   []rule
	metrics *metrics.Metrics

	mu     sync.RWMutex
	custom map[reflect.Type]CustomFormatter
	cache  map[cacheKey]int
}

// NewFactory creates a factory with the built-in rules and opts.Custom.
func NewFactory(opts Options) *Factory {
	f := &Factory{
		metrics: opts.Metrics,
		custom:  make(map[reflect.Type]CustomFormatter),
		cache:   make(map[cacheKey]int),
	}
	f.rules = defaultRules()
	for _, c := range opts.Custom {
		f.custom[c.typ] = c
	}
	return f
}

// Register adds or replaces the custom formatter for c.Type().
func (f *Factory) Register(c CustomFormatter) {
	f.mu.Lock()
	f.custom[c.typ] = c
	clear(f.cache)
	f.mu.Unlock()
}

func (f *Factory) customFor(t reflect.Type) (CustomFormatter, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.custom[t]
	return c, ok
}

// Build returns a new formatter for values of static type t.
func (f *Factory) Build(t reflect.Type, fd monitor.FormatData) Func {
	if t == nil {
		return scalar(fd, nullAppender(fd))
	}
	r := f.rules[f.ruleIndex(t, fd)]
	f.metrics.FormatterBuilt(r.name)
	return r.build(f, t, fd)
}

// Rule returns the name of the rule Build would use for t.
func (f *Factory) Rule(t reflect.Type, fd monitor.FormatData) string {
	if t == nil {
		return "null"
	}
	return f.rules[f.ruleIndex(t, fd)].name
}

func (f *Factory) ruleIndex(t reflect.Type, fd monitor.FormatData) int {
	key := cacheKey{typ: t, hasFormat: fd.Format != ""}

	f.mu.RLock()
	i, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return i
	}

	i = len(f.rules) - 1
	for idx, r := range f.rules {
		if r.match(f, t, fd) {
			i = idx
			break
		}
	}

	f.mu.Lock()
	f.cache[key] = i
	f.mu.Unlock()
	return i
}

// scalar wraps app into a single-line "<label>: <value>" formatter.
func scalar(fd monitor.FormatData, app appendFunc) Func {
	prefix := labelPrefix(fd)
	color := fd.Colors.Value
	var buf bytes.Buffer
	return func(v reflect.Value) string {
		buf.Reset()
		buf.WriteString(prefix)
		b := buf.AvailableBuffer()
		b = openColor(b, color)
		b = app(b, v)
		b = closeColor(b, color)
		buf.Write(b)
		return buf.String()
	}
}

func labelPrefix(fd monitor.FormatData) string {
	if fd.HideLabel {
		return ""
	}
	return colorize(fd.Colors.Label, fd.Label) + ": "
}

func labelHeader(fd monitor.FormatData) string {
	if fd.HideLabel {
		return ""
	}
	return colorize(fd.Colors.Label, fd.Label) + ":"
}

func colorize(color, s string) string {
	if color == "" {
		return s
	}
	return "<color=" + color + ">" + s + "</color>"
}

func openColor(dst []byte, color string) []byte {
	if color == "" {
		return dst
	}
	dst = append(dst, "<color="...)
	dst = append(dst, color...)
	return append(dst, '>')
}

func closeColor(dst []byte, color string) []byte {
	if color == "" {
		return dst
	}
	return append(dst, "</color>"...)
}

func nullText(fd monitor.FormatData) string {
	return colorize(fd.Colors.Null, "null")
}

func nullAppender(fd monitor.FormatData) appendFunc {
	null := nullText(fd)
	return func(dst []byte, _ reflect.Value) []byte { return append(dst, null...) }
}

// isNil reports whether v is invalid or a nil reference.
func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}

// isReference reports whether values of t can be nil.
func isReference(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return true
	}
	return false
}
