package accessor

import (
	"errors"
	"reflect"
	"testing"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/introspect"
	"github.com/jpalmerr/watchboard/monitor"
)

type stats struct {
	Kills int `monitor:""`
}

type ship struct {
	*stats
	Name    string           `monitor:""`
	fuel    float64          `monitor:""`
	Docked  bool             `monitor:"flags=readonly"`
	Damaged event.Event[int] `monitor:""`
	Alarm   *event.Signal    `monitor:""`
	speed   int
}

func (s *ship) Speed() int          { return s.speed }
func (s *ship) SetSpeed(v int)      { s.speed = v }
func (s *ship) Cargo() (int, error) { return 3, nil }
func (s *ship) Broken() (int, error) {
	return 0, errors.New("sensor offline")
}
func (s *ship) Position(x, y *float64) string {
	*x, *y = 1, 2
	return "sector 7"
}
func (s *ship) Visible() bool { return s.speed > 0 }

var (
	shipCount   = 4
	shipsOnline event.Signal
	limit       = 10
)

func shipLimit() int     { return limit }
func setShipLimit(v int) { limit = v }

func describe(t *testing.T) map[string]introspect.MemberDescriptor {
	t.Helper()
	c := catalog.New(catalog.Filter{})
	typ := reflect.TypeFor[ship]()
	for _, m := range []string{"Speed", "Cargo", "Broken", "Position"} {
		c.Annotate(typ, m, monitor.Tag{})
	}
	c.AddStatic(typ, catalog.Static{Name: "Count", Ref: reflect.ValueOf(&shipCount)})
	c.AddStatic(typ, catalog.Static{Name: "Online", Ref: reflect.ValueOf(&shipsOnline)})
	c.AddStatic(typ, catalog.Static{Name: "Limit", Ref: reflect.ValueOf(shipLimit), Setter: reflect.ValueOf(setShipLimit)})
	entry, _ := c.Lookup(typ)

	r := introspect.NewReflect(c, func(err error) { t.Errorf("unexpected report: %v", err) })
	out := make(map[string]introspect.MemberDescriptor)
	for _, static := range []bool{false, true} {
		for _, list := range [][]introspect.MemberDescriptor{
			r.Fields(entry, static), r.Properties(entry, static), r.Methods(entry, static), r.Events(entry, static),
		} {
			for _, d := range list {
				out[d.Name] = d
			}
		}
	}
	return out
}

func synth(t *testing.T, d introspect.MemberDescriptor) Accessor {
	t.Helper()
	acc, err := Reflect{}.Synthesize(d)
	if err != nil {
		t.Fatalf("Synthesize(%s) error = %v", d.Name, err)
	}
	return acc
}

func TestSynthesize_Fields(t *testing.T) {
	ds := describe(t)
	s := &ship{Name: "Aurora", fuel: 0.5}
	target := reflect.ValueOf(s).Elem()

	name := synth(t, ds["Name"])
	v, err := name.Get(target)
	if err != nil || v.Interface() != "Aurora" {
		t.Fatalf("Get(Name) = %v, %v", v, err)
	}
	if err := name.Set(target, reflect.ValueOf("Borealis")); err != nil {
		t.Fatalf("Set(Name) error = %v", err)
	}
	if s.Name != "Borealis" {
		t.Errorf("Name = %q, want Borealis", s.Name)
	}

	fuel := synth(t, ds["fuel"])
	v, err = fuel.Get(target)
	if err != nil {
		t.Fatalf("Get(fuel) error = %v", err)
	}
	if got := v.Interface().(float64); got != 0.5 {
		t.Errorf("fuel = %v, want 0.5", got)
	}

	if synth(t, ds["Docked"]).Set != nil {
		t.Error("read-only field has a setter")
	}

	if _, err := name.Get(reflect.Value{}); !errors.Is(err, ErrNilTarget) {
		t.Errorf("Get(nil target) error = %v, want ErrNilTarget", err)
	}
}

func TestSynthesize_PropertiesAndMethods(t *testing.T) {
	ds := describe(t)
	s := &ship{speed: 3}
	target := reflect.ValueOf(s).Elem()

	speed := synth(t, ds["Speed"])
	if v, _ := speed.Get(target); v.Int() != 3 {
		t.Errorf("Speed = %v, want 3", v)
	}
	if err := speed.Set(target, reflect.ValueOf(9)); err != nil {
		t.Fatalf("Set(Speed) error = %v", err)
	}
	if s.speed != 9 {
		t.Errorf("speed = %d, want 9", s.speed)
	}

	if v, err := synth(t, ds["Cargo"]).Get(target); err != nil || v.Int() != 3 {
		t.Errorf("Cargo = %v, %v", v, err)
	}
	if _, err := synth(t, ds["Broken"]).Get(target); err == nil || err.Error() != "sensor offline" {
		t.Errorf("Broken error = %v, want sensor offline", err)
	}

	v, err := synth(t, ds["Position"]).Get(target)
	if err != nil {
		t.Fatalf("Position error = %v", err)
	}
	got := v.Interface().([]any)
	if len(got) != 3 || got[0] != "sector 7" || got[1] != 1.0 || got[2] != 2.0 {
		t.Errorf("Position = %v, want [sector 7 1 2]", got)
	}

	if _, err := speed.Get(reflect.Zero(reflect.TypeFor[ship]())); !errors.Is(err, ErrNotAddressable) {
		t.Errorf("Get(unaddressable) error = %v, want ErrNotAddressable", err)
	}
}

func TestSynthesize_Events(t *testing.T) {
	ds := describe(t)
	s := &ship{}
	target := reflect.ValueOf(s).Elem()

	damaged := synth(t, ds["Damaged"])
	s.Damaged.Subscribe(func(any, int) {})
	s.Damaged.Subscribe(func(any, int) {})
	if v, _ := damaged.Get(target); v.Int() != 2 {
		t.Errorf("Damaged count = %v, want 2", v)
	}
	src, err := damaged.Source(target)
	if err != nil || src != event.Source(&s.Damaged) {
		t.Errorf("Source() = %v, %v", src, err)
	}

	alarm := synth(t, ds["Alarm"])
	if v, err := alarm.Get(target); err != nil || v.Int() != 0 {
		t.Errorf("nil Alarm count = %v, %v; want 0", v, err)
	}
}

func TestSynthesize_Statics(t *testing.T) {
	ds := describe(t)

	count := synth(t, ds["Count"])
	if v, _ := count.Get(reflect.Value{}); v.Int() != 4 {
		t.Errorf("Count = %v, want 4", v)
	}
	if err := count.Set(reflect.Value{}, reflect.ValueOf(5)); err != nil || shipCount != 5 {
		t.Errorf("Set(Count) = %v, shipCount = %d", err, shipCount)
	}

	lim := synth(t, ds["Limit"])
	if err := lim.Set(reflect.Value{}, reflect.ValueOf(12)); err != nil {
		t.Fatalf("Set(Limit) error = %v", err)
	}
	if v, _ := lim.Get(reflect.Value{}); v.Int() != 12 {
		t.Errorf("Limit = %v, want 12", v)
	}

	shipsOnline.Subscribe(func() {})
	if v, _ := synth(t, ds["Online"]).Get(reflect.Value{}); v.Int() != 1 {
		t.Errorf("Online count = %v, want 1", v)
	}
}

func TestSynthesize_PromotedThroughNilPointer(t *testing.T) {
	c := catalog.New(catalog.Filter{})
	entry, _ := c.Add(reflect.TypeFor[ship]())
	r := introspect.NewReflect(c, nil)
	sf, _ := reflect.TypeFor[ship]().FieldByName("Kills")

	d := introspect.MemberDescriptor{Name: "Kills", Kind: introspect.KindField, DeclaringType: entry, ValueType: sf.Type, Index: sf.Index}
	if _, err := r.Resolve(d, entry); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	acc := synth(t, d)
	if _, err := acc.Get(reflect.ValueOf(&ship{}).Elem()); !errors.Is(err, ErrNilTarget) {
		t.Errorf("Get() through nil embed error = %v, want ErrNilTarget", err)
	}
	v, err := acc.Get(reflect.ValueOf(&ship{stats: &stats{Kills: 2}}).Elem())
	if err != nil || v.Int() != 2 {
		t.Errorf("Get() = %v, %v; want 2", v, err)
	}
}

type gauge[T any] struct {
	Reading T
}

func (g *gauge[T]) Current() T { return g.Reading }

// sensor embeds a gauge and hides both of its members.
type sensor struct {
	gauge[int]
	Reading string
}

func (s *sensor) Current() string { return s.Reading }

func TestSynthesize_ResolvedGenericBehindShadowingMembers(t *testing.T) {
	c := catalog.New(catalog.Filter{})
	proto, _ := c.AddGeneric(reflect.TypeFor[gauge[any]]())
	c.Annotate(reflect.TypeFor[gauge[any]](), "Reading", monitor.Tag{})
	c.Annotate(reflect.TypeFor[gauge[any]](), "Current", monitor.Tag{})
	closed, _ := c.Add(reflect.TypeFor[sensor]())
	r := introspect.NewReflect(c, func(err error) { t.Errorf("unexpected report: %v", err) })

	s := &sensor{Reading: "shadow"}
	s.gauge.Reading = 7
	target := reflect.ValueOf(s).Elem()

	for _, d := range append(r.Fields(proto, false), r.Properties(proto, false)...) {
		resolved, err := r.Resolve(d, closed)
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", d.Name, err)
		}
		v, err := synth(t, resolved).Get(target)
		if err != nil {
			t.Fatalf("%s Get() error = %v", d.Name, err)
		}
		if v.Kind() != reflect.Int || v.Int() != 7 {
			t.Errorf("%s Get() = %v, want 7", d.Name, v)
		}
	}
}

func TestLookups(t *testing.T) {
	s := &ship{speed: 1}
	view := reflect.ValueOf(s).Elem()

	src, err := EventByName(view, "Damaged")
	if err != nil || src == nil {
		t.Fatalf("EventByName(Damaged) = %v, %v", src, err)
	}
	if _, err := EventByName(view, "Nope"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("EventByName(Nope) error = %v", err)
	}

	docked, err := BoolByName(view, "Docked")
	if err != nil {
		t.Fatalf("BoolByName(Docked) error = %v", err)
	}
	s.Docked = true
	if ok, _ := docked(); !ok {
		t.Error("Docked reader did not observe the write")
	}

	visible, err := BoolByName(view, "Visible")
	if err != nil {
		t.Fatalf("BoolByName(Visible) error = %v", err)
	}
	s.speed = 0
	if ok, _ := visible(); ok {
		t.Error("Visible() = true, want false")
	}

	if _, err := BoolByName(view, "Name"); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("BoolByName(Name) error = %v", err)
	}
}
