package format

import (
	"bytes"
	"cmp"
	"container/list"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/jpalmerr/watchboard/monitor"
)

// listWriter renders a header line followed by one indented line per
// element into a buffer it owns.
type listWriter struct {
	buf       bytes.Buffer
	header    string
	indent    string
	showIndex bool
	emptyText string
	nullText  string
}

func newListWriter(fd monitor.FormatData) *listWriter {
	header := labelHeader(fd)
	sep := ""
	if header != "" {
		sep = " "
	}
	return &listWriter{
		header:    header,
		indent:    strings.Repeat(" ", fd.ElementIndent),
		showIndex: fd.ShowIndex,
		emptyText: header + sep + "(empty)",
		nullText:  header + sep + nullText(fd),
	}
}

func (w *listWriter) reset() {
	w.buf.Reset()
	w.buf.WriteString(w.header)
}

// line starts the line for element i.
func (w *listWriter) line(i int, index bool) {
	if w.buf.Len() > 0 {
		w.buf.WriteByte('\n')
	}
	w.buf.WriteString(w.indent)
	if index {
		w.buf.WriteByte('[')
		w.buf.Write(strconv.AppendInt(w.buf.AvailableBuffer(), int64(i), 10))
		w.buf.WriteString("] ")
	}
}

func (w *listWriter) item(i int, app appendFunc, v reflect.Value) {
	w.line(i, w.showIndex)
	w.buf.Write(app(w.buf.AvailableBuffer(), v))
}

func (w *listWriter) text(n int) string {
	if n == 0 {
		return w.emptyText
	}
	return w.buf.String()
}

func buildBoolList(_ *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return sequential(t, fd, boolAppender(fd))
}

// buildList specializes on whether elements can be nil: reference
// elements get a null guard, value elements do not.
func buildList(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return sequential(t, fd, f.element(t.Elem(), fd))
}

func sequential(t reflect.Type, fd monitor.FormatData, app appendFunc) Func {
	w := newListWriter(fd)
	nillable := t.Kind() == reflect.Slice
	return func(v reflect.Value) string {
		if !v.IsValid() || (nillable && v.IsNil()) {
			return w.nullText
		}
		w.reset()
		n := v.Len()
		for i := 0; i < n; i++ {
			w.item(i, app, v.Index(i))
		}
		return w.text(n)
	}
}

func buildMap(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	keyApp := f.element(t.Key(), fd)
	valApp := f.element(t.Elem(), fd)
	less := keyOrder(t.Key())
	w := newListWriter(fd)

	return func(v reflect.Value) string {
		if !v.IsValid() || v.IsNil() {
			return w.nullText
		}
		keys := v.MapKeys()
		slices.SortFunc(keys, less)

		w.reset()
		for i, k := range keys {
			w.line(i, w.showIndex)
			b := w.buf.AvailableBuffer()
			b = append(b, '[')
			b = keyApp(b, k)
			b = append(b, ", "...)
			b = valApp(b, v.MapIndex(k))
			b = append(b, ']')
			w.buf.Write(b)
		}
		return w.text(len(keys))
	}
}

// keyOrder returns a comparison for map keys of type t so map output is
// deterministic.
func keyOrder(t reflect.Type) func(a, b reflect.Value) int {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) }
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) }
	case reflect.Float32, reflect.Float64:
		return func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) }
	case reflect.String:
		return func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) }
	case reflect.Bool:
		return func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case !a.Bool():
				return -1
			default:
				return 1
			}
		}
	default:
		return func(a, b reflect.Value) int { return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b)) }
	}
}

var yieldContinue = []reflect.Value{reflect.ValueOf(true)}

func buildBoolSeq(_ *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return sequence(t, fd, boolAppender(fd))
}

func buildSeq(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	elem, _ := seqElem(t)
	return sequence(t, fd, f.element(elem, fd))
}

// sequence ranges over an iter.Seq-shaped function. The yield function is
// made once and appends into the writer.
func sequence(t reflect.Type, fd monitor.FormatData, app appendFunc) Func {
	w := newListWriter(fd)
	n := 0
	yield := reflect.MakeFunc(t.In(0), func(args []reflect.Value) []reflect.Value {
		w.item(n, app, args[0])
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

func buildEnumerable(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	w := newListWriter(fd)
	app := f.dynamicAppender(fd)
	nillable := isReference(t)

	each := func(v reflect.Value, fn func(any)) {
		switch x := v.Interface().(type) {
		case *list.List:
			for e := x.Front(); e != nil; e = e.Next() {
				fn(e.Value)
			}
		case monitor.Enumerable:
			x.Enumerate(func(item any) bool {
				fn(item)
				return true
			})
		}
	}

	return func(v reflect.Value) string {
		if !v.IsValid() || (nillable && v.IsNil()) || !v.CanInterface() {
			return w.nullText
		}
		w.reset()
		n := 0
		each(v, func(item any) {
			w.item(n, app, reflect.ValueOf(item))
			n++
		})
		return w.text(n)
	}
}
