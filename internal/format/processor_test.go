package format

import (
	"errors"
	"iter"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/jpalmerr/watchboard/monitor"
)

type squad struct {
	Members []string
	Scores  map[string]int
	prefix  string
}

func (s *squad) Upper(name string) string { return s.prefix + strings.ToUpper(name) }
func (s *squad) Ranked(name string, i int) string {
	return strconv.Itoa(i+1) + "." + name
}
func (s *squad) Pair(k string, v int) string { return k + "=" + strconv.Itoa(v) }
func (s *squad) Count(m []string) string     { return strconv.Itoa(len(m)) + " members" }
func (s *squad) Wrong(n int) string          { return "" }

func joinStatic(name string) string { return "<" + name + ">" }

func TestClassify(t *testing.T) {
	strs := reflect.TypeFor[[]string]()
	tests := []struct {
		fn    any
		value reflect.Type
		want  Match
	}{
		{func([]string) string { return "" }, strs, Direct},
		{func(string) string { return "" }, strs, PerElement},
		{func(string, int) string { return "" }, strs, PerElementIndexed},
		{func(string, int) string { return "" }, reflect.TypeFor[map[string]int](), PerPair},
		{func(int) string { return "" }, reflect.TypeFor[iter.Seq[int]](), Sequence},
		{func(any) string { return "" }, reflect.TypeFor[int](), Direct},
		{func(int) string { return "" }, strs, Unsupported},
		{func(string) int { return 0 }, strs, Unsupported},
		{func(string, string) string { return "" }, strs, Unsupported},
	}
	for _, tt := range tests {
		if got := Classify(reflect.TypeOf(tt.fn), tt.value); got != tt.want {
			t.Errorf("Classify(%T, %v) = %s, want %s", tt.fn, tt.value, got, tt.want)
		}
	}
}

func bind(t *testing.T, f *Factory, name string, value reflect.Type, target *squad, fd monitor.FormatData) Func {
	t.Helper()
	src := ProcessorSource{
		Type: reflect.TypeFor[squad](),
		Statics: func(n string) (reflect.Value, bool) {
			if n == "Join" {
				return reflect.ValueOf(joinStatic), true
			}
			return reflect.Value{}, false
		},
	}
	binder, err := f.Processor(src, name, value, fd)
	if err != nil {
		t.Fatalf("Processor(%s) error = %v", name, err)
	}
	fn := binder(reflect.ValueOf(target).Elem())
	if fn == nil {
		t.Fatalf("binder(%s) returned nil", name)
	}
	return fn
}

func TestProcessor_IndexedFourElements(t *testing.T) {
	f := NewFactory(Options{})
	s := &squad{Members: []string{"ana", "bo", "cy", "di"}}
	fn := bind(t, f, "Ranked", reflect.TypeFor[[]string](), s, fdFor("Members", monitor.Tag{}))

	got := fn(reflect.ValueOf(s.Members))
	lines := strings.Split(got, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want header + 4: %q", len(lines), got)
	}
	for i, line := range lines[1:] {
		prefix := "  [" + strconv.Itoa(i) + "] "
		if !strings.HasPrefix(line, prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, line, prefix)
		}
		if !strings.HasSuffix(line, strconv.Itoa(i+1)+"."+s.Members[i]) {
			t.Errorf("line %d = %q, want processor output", i, line)
		}
	}
}

func TestProcessor_Shapes(t *testing.T) {
	f := NewFactory(Options{})
	s := &squad{Members: []string{"ana", "bo"}, Scores: map[string]int{"bo": 2, "ana": 5}, prefix: "!"}
	strs := reflect.TypeFor[[]string]()

	if got := bind(t, f, "Upper", strs, s, fdFor("M", monitor.Tag{}))(reflect.ValueOf(s.Members)); got != "M:\n  !ANA\n  !BO" {
		t.Errorf("per-element = %q", got)
	}
	if got := bind(t, f, "Count", strs, s, fdFor("M", monitor.Tag{}))(reflect.ValueOf(s.Members)); got != "M: 2 members" {
		t.Errorf("direct = %q", got)
	}
	mt := reflect.TypeFor[map[string]int]()
	if got := bind(t, f, "Pair", mt, s, fdFor("S", monitor.Tag{}))(reflect.ValueOf(s.Scores)); got != "S:\n  ana=5\n  bo=2" {
		t.Errorf("per-pair = %q", got)
	}
	if got := bind(t, f, "Join", strs, s, fdFor("M", monitor.Tag{}))(reflect.ValueOf(s.Members)); got != "M:\n  <ana>\n  <bo>" {
		t.Errorf("static per-element = %q", got)
	}
	seq := reflect.TypeFor[iter.Seq[string]]()
	if got := bind(t, f, "Upper", seq, s, fdFor("Q", monitor.Tag{}))(reflect.ValueOf(slices.Values(s.Members))); got != "Q:\n  !ANA\n  !BO" {
		t.Errorf("sequence = %q", got)
	}
}

func TestProcessor_Errors(t *testing.T) {
	f := NewFactory(Options{})
	src := ProcessorSource{Type: reflect.TypeFor[squad]()}
	strs := reflect.TypeFor[[]string]()
	fd := fdFor("M", monitor.Tag{})

	if _, err := f.Processor(src, "Missing", strs, fd); !errors.Is(err, ErrProcessorNotFound) {
		t.Errorf("missing error = %v, want ErrProcessorNotFound", err)
	}
	if _, err := f.Processor(src, "Wrong", strs, fd); !errors.Is(err, ErrProcessorSignature) {
		t.Errorf("mismatch error = %v, want ErrProcessorSignature", err)
	}

	src.Static = true
	if _, err := f.Processor(src, "Upper", strs, fd); !errors.Is(err, ErrProcessorNotFound) {
		t.Errorf("instance processor on static member error = %v, want ErrProcessorNotFound", err)
	}
}
