package format

import (
	"container/list"
	"fmt"
	"reflect"

	"github.com/jpalmerr/watchboard/monitor"
)

var (
	boolType       = reflect.TypeFor[bool]()
	nodeType       = reflect.TypeFor[monitor.Node]()
	objectType     = reflect.TypeFor[monitor.Object]()
	enumerableType = reflect.TypeFor[monitor.Enumerable]()
	listPtrType    = reflect.TypeFor[*list.List]()
	stringerType   = reflect.TypeFor[fmt.Stringer]()
	errorType      = reflect.TypeFor[error]()
	formatterType  = reflect.TypeFor[fmt.Formatter]()
	layouterType   = reflect.TypeFor[layouter]()
)

// layouter is implemented by values that render themselves from a layout
// string, such as time.Time.
type layouter interface {
	Format(layout string) string
}

type rule struct {
	name  string
	match func(f *Factory, t reflect.Type, fd monitor.FormatData) bool
	build func(f *Factory, t reflect.Type, fd monitor.FormatData) Func
}

// defaultRules returns the dispatch chain in priority order. The last rule
// matches everything.
func defaultRules() []rule {
	return []rule{
		{name: "custom", match: matchCustom, build: buildCustom},
		{name: "tree", match: implements(nodeType), build: buildTree},
		{name: "bool", match: exactly(boolType), build: buildBool},
		{name: "bool-list", match: matchBoolList, build: buildBoolList},
		{name: "map", match: kindOf(reflect.Map), build: buildMap},
		{name: "list", match: matchList, build: buildList},
		{name: "bool-seq", match: matchBoolSeq, build: buildBoolSeq},
		{name: "seq", match: matchSeq, build: buildSeq},
		{name: "enumerable", match: matchEnumerable, build: buildEnumerable},
		{name: "math", match: matchMath, build: buildMath},
		{name: "formattable", match: matchFormattable, build: buildFormattable},
		{name: "object", match: implements(objectType), build: buildObject},
		{name: "number", match: matchNumber, build: buildNumber},
		{name: "value", match: matchValue, build: buildValue},
		{name: "reference", match: func(*Factory, reflect.Type, monitor.FormatData) bool { return true }, build: buildReference},
	}
}

func exactly(want reflect.Type) func(*Factory, reflect.Type, monitor.FormatData) bool {
	return func(_ *Factory, t reflect.Type, _ monitor.FormatData) bool { return t == want }
}

func kindOf(k reflect.Kind) func(*Factory, reflect.Type, monitor.FormatData) bool {
	return func(_ *Factory, t reflect.Type, _ monitor.FormatData) bool { return t.Kind() == k }
}

func implements(iface reflect.Type) func(*Factory, reflect.Type, monitor.FormatData) bool {
	return func(_ *Factory, t reflect.Type, _ monitor.FormatData) bool { return t.Implements(iface) }
}

func matchCustom(f *Factory, t reflect.Type, _ monitor.FormatData) bool {
	_, ok := f.customFor(t)
	return ok
}

func buildCustom(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	c, _ := f.customFor(t)
	return func(v reflect.Value) string { return c.call(fd, v) }
}

func isSequential(t reflect.Type) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

func matchBoolList(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	return isSequential(t) && t.Elem() == boolType
}

func matchList(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	return isSequential(t)
}

// seqElem returns T for function types shaped like iter.Seq[T].
func seqElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Func || t.NumIn() != 1 || t.NumOut() != 0 {
		return nil, false
	}
	yield := t.In(0)
	if yield.Kind() != reflect.Func || yield.NumIn() != 1 || yield.NumOut() != 1 || yield.Out(0) != boolType {
		return nil, false
	}
	return yield.In(0), true
}

func matchBoolSeq(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	elem, ok := seqElem(t)
	return ok && elem == boolType
}

func matchSeq(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	_, ok := seqElem(t)
	return ok
}

func matchEnumerable(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	return t == listPtrType || t.Implements(enumerableType)
}

var mathComponents = map[reflect.Type][]string{
	reflect.TypeFor[monitor.Vector2]():    {"X", "Y"},
	reflect.TypeFor[monitor.Vector3]():    {"X", "Y", "Z"},
	reflect.TypeFor[monitor.Vector4]():    {"X", "Y", "Z", "W"},
	reflect.TypeFor[monitor.Quaternion](): {"X", "Y", "Z", "W"},
	reflect.TypeFor[monitor.Color]():      {"R", "G", "B", "A"},
}

func matchMath(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	_, ok := mathComponents[t]
	return ok
}

func buildMath(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return scalar(fd, mathAppender(t, fd))
}

func matchFormattable(_ *Factory, t reflect.Type, fd monitor.FormatData) bool {
	return fd.Format != "" && (t.Implements(layouterType) || t.Implements(formatterType))
}

func buildFormattable(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return scalar(fd, formattableAppender(t, fd))
}

func buildObject(f *Factory, _ reflect.Type, fd monitor.FormatData) Func {
	return scalar(fd, objectAppender(fd))
}

var numberTypes = map[reflect.Type]bool{
	reflect.TypeFor[int]():     true,
	reflect.TypeFor[int32]():   true,
	reflect.TypeFor[int64]():   true,
	reflect.TypeFor[float32](): true,
	reflect.TypeFor[float64](): true,
}

func matchNumber(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	return numberTypes[t]
}

func buildNumber(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return scalar(fd, numberAppender(t, fd))
}

func matchValue(_ *Factory, t reflect.Type, _ monitor.FormatData) bool {
	return !isReference(t)
}

func buildValue(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return scalar(fd, plainAppender(t, fd))
}

func buildReference(f *Factory, t reflect.Type, fd monitor.FormatData) Func {
	return scalar(fd, f.element(t, fd))
}
