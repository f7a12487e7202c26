package handle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/internal/introspect"
	"github.com/jpalmerr/watchboard/internal/profile"
	"github.com/jpalmerr/watchboard/internal/surface"
	"github.com/jpalmerr/watchboard/monitor"
)

type stats struct {
	Kills int `monitor:""`
}

type player struct {
	stats
	Score        int              `monitor:"event=ScoreChanged"`
	Name         string           `monitor:"if=Alive"`
	Level        int              `monitor:"event=LevelUp"`
	Alive        bool
	ScoreChanged event.Event[int]
	LevelUp      event.Signal
	health       int
}

func (p *player) Health() int { return p.health }

type crate struct {
	Weight float64 `monitor:""`
}

var frame = 7

type recorder struct {
	created, updated, disposed []string
}

func (r *recorder) HandleCreated(s surface.Snapshot)  { r.created = append(r.created, s.Member) }
func (r *recorder) HandleUpdated(s surface.Snapshot)  { r.updated = append(r.updated, s.Member) }
func (r *recorder) HandleDisposed(s surface.Snapshot) { r.disposed = append(r.disposed, s.Member) }

func testSink() *diag.Sink {
	return diag.NewSink(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}

func buildProfiles(t *testing.T) *profile.Registry {
	t.Helper()
	c := catalog.New(catalog.Filter{})
	c.Add(reflect.TypeFor[player]())
	c.Add(reflect.TypeFor[stats]())
	c.Add(reflect.TypeFor[crate]())
	c.Annotate(reflect.TypeFor[player](), "Health", monitor.Tag{})
	c.AddStatic(reflect.TypeFor[player](), catalog.Static{Name: "Frame", Ref: reflect.ValueOf(&frame), Tag: monitor.Tag{}})

	b := profile.NewBuilder(profile.Config{
		Introspector: introspect.NewReflect(c, nil),
		Defaults:     monitor.DefaultDefaults(),
		Sink:         testSink(),
	})
	reg, err := b.Build(context.Background(), c.Candidates())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return reg
}

func newRegistry(t *testing.T) (*Registry, *recorder) {
	t.Helper()
	rec := &recorder{}
	r := NewRegistry(Config{Sink: testSink(), Surface: rec})
	r.Complete(buildProfiles(t))
	return r, rec
}

func members(hs []*Handle) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Profile().Name()
	}
	return out
}

func TestRegister_CreatesHandlesAcrossHierarchy(t *testing.T) {
	r, rec := newRegistry(t)
	p := &player{Alive: true}

	if err := r.Register(p); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got := members(r.ForTarget(p))
	want := []string{"Health", "Level", "Name", "Score", "Kills"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ForTarget() = %v, want %v", got, want)
	}
	for _, h := range r.ForTarget(p) {
		if h.State() != StateActive {
			t.Errorf("%s state = %v, want active", h, h.State())
		}
	}
	if len(r.Static()) != 1 {
		t.Errorf("Static() = %d handles, want 1", len(r.Static()))
	}
	if len(rec.created) != 6 {
		t.Errorf("created notifications = %v, want 6", rec.created)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{}

	r.Register(p)
	before := r.Len()
	if err := r.Register(p); err != nil {
		t.Fatalf("second Register() error = %v", err)
	}
	if r.Len() != before {
		t.Errorf("Len() = %d after duplicate register, want %d", r.Len(), before)
	}
	if r.Targets() != 1 {
		t.Errorf("Targets() = %d, want 1", r.Targets())
	}
}

func TestRegister_InvalidTargets(t *testing.T) {
	r, _ := newRegistry(t)
	var nilPlayer *player
	n := 3

	for _, target := range []any{nil, player{}, nilPlayer, &n} {
		if err := r.Register(target); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Register(%T) error = %v, want ErrInvalidTarget", target, err)
		}
	}
}

func TestUnregister_RemovesOnlyThatTarget(t *testing.T) {
	r, rec := newRegistry(t)
	a, b := &player{}, &player{}
	r.Register(a)
	r.Register(b)

	oldIDs := map[string]bool{}
	for _, h := range r.ForTarget(a) {
		oldIDs[h.ID()] = true
	}
	disposed := r.ForTarget(a)

	r.Unregister(a)

	if len(r.ForTarget(a)) != 0 {
		t.Error("ForTarget(a) still has handles")
	}
	if len(r.ForTarget(b)) != 5 {
		t.Errorf("ForTarget(b) = %d handles, want 5", len(r.ForTarget(b)))
	}
	for _, h := range disposed {
		if h.State() != StateDisposed {
			t.Errorf("%s state = %v, want disposed", h, h.State())
		}
		if h.Enable() {
			t.Errorf("%s re-enabled after dispose", h)
		}
	}
	if len(rec.disposed) != 5 {
		t.Errorf("disposed notifications = %d, want 5", len(rec.disposed))
	}

	r.Register(a)
	for _, h := range r.ForTarget(a) {
		if oldIDs[h.ID()] {
			t.Errorf("handle id %s reused after re-register", h.ID())
		}
	}
}

func TestRegister_BeforeComplete(t *testing.T) {
	r := NewRegistry(Config{Sink: testSink()})
	a, b := &player{}, &crate{}
	r.Register(a)
	r.Register(b)
	r.Register(a)

	if r.Len() != 0 || r.Pending() != 2 {
		t.Fatalf("Len() = %d, Pending() = %d; want 0 and 2", r.Len(), r.Pending())
	}

	r.Complete(buildProfiles(t))

	if r.Pending() != 0 {
		t.Errorf("Pending() = %d after Complete, want 0", r.Pending())
	}
	got := members(r.Handles())
	want := []string{"Frame", "Health", "Level", "Name", "Score", "Kills", "Weight"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Handles() = %v, want %v", got, want)
	}
}

func TestUnregister_Pending(t *testing.T) {
	r := NewRegistry(Config{Sink: testSink()})
	a := &crate{}
	r.Register(a)
	r.Unregister(a)
	r.Complete(buildProfiles(t))

	if len(r.ForTarget(a)) != 0 {
		t.Error("unregistered pending target was bound")
	}
}

func handleFor(t *testing.T, r *Registry, target any, member string) *Handle {
	t.Helper()
	for _, h := range r.ForTarget(target) {
		if h.Profile().Name() == member {
			return h
		}
	}
	t.Fatalf("no %s handle", member)
	return nil
}

func TestHandle_Refresh(t *testing.T) {
	r, rec := newRegistry(t)
	p := &player{health: 80}
	p.Kills = 3
	r.Register(p)

	kills := handleFor(t, r, p, "Kills")
	changed, err := kills.Refresh()
	if err != nil || !changed {
		t.Fatalf("Refresh() = %v, %v; want true, nil", changed, err)
	}
	if kills.Text() != "Kills: 3" {
		t.Errorf("Text() = %q, want %q", kills.Text(), "Kills: 3")
	}

	health := handleFor(t, r, p, "Health")
	health.Refresh()
	if health.Text() != "Health: 80" {
		t.Errorf("Text() = %q, want %q", health.Text(), "Health: 80")
	}

	if changed, _ := kills.Refresh(); changed {
		t.Error("Refresh() reported a change for an unchanged value")
	}

	rec.updated = nil
	if n := r.Publish(); n != 2 {
		t.Errorf("Publish() = %d, want 2", n)
	}
	if n := r.Publish(); n != 0 {
		t.Errorf("second Publish() = %d, want 0", n)
	}
}

func TestHandle_ValueEvent(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{Score: 1}
	r.Register(p)

	score := handleFor(t, r, p, "Score")
	if !score.EventDriven() {
		t.Fatal("Score is not event driven")
	}

	// the first pass primes the text
	score.Refresh()
	if score.Text() != "Score: 1" {
		t.Fatalf("Text() = %q, want %q", score.Text(), "Score: 1")
	}

	// later passes leave it to the event
	p.Score = 5
	score.Refresh()
	if score.Text() != "Score: 1" {
		t.Errorf("Text() = %q after poll, want unchanged", score.Text())
	}

	p.ScoreChanged.Raise(p, 9)
	if score.Text() != "Score: 1" {
		t.Error("event delivery ran before Drain")
	}
	if n := r.Drain(); n != 1 {
		t.Errorf("Drain() = %d, want 1", n)
	}
	if score.Text() != "Score: 1" || !score.Stale() {
		t.Errorf("Text() = %q after Drain, want unchanged and stale", score.Text())
	}
	if n := r.Flush(); n != 1 {
		t.Errorf("Flush() = %d, want 1", n)
	}
	if score.Text() != "Score: 9" {
		t.Errorf("Text() = %q, want %q", score.Text(), "Score: 9")
	}

	r.Unregister(p)
	if p.ScoreChanged.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() = %d after unregister, want 0", p.ScoreChanged.SubscriberCount())
	}
}

func TestHandle_SignalForcesRead(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{Level: 1}
	r.Register(p)

	level := handleFor(t, r, p, "Level")
	level.Refresh()
	p.Level = 2
	p.LevelUp.Raise()
	r.Drain()
	r.Flush()

	if level.Text() != "Level: 2" {
		t.Errorf("Text() = %q, want %q", level.Text(), "Level: 2")
	}
}

func TestHandle_EventsCollapseUntilFlush(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{Score: 1}
	r.Register(p)

	score := handleFor(t, r, p, "Score")
	score.Refresh()

	for i := 2; i <= 1000; i++ {
		p.ScoreChanged.Raise(p, i)
	}
	r.Drain()
	if score.Text() != "Score: 1" {
		t.Errorf("Text() = %q before Flush, want unchanged", score.Text())
	}
	if n := r.Flush(); n != 1 {
		t.Errorf("Flush() = %d, want one render for 999 events", n)
	}
	if score.Text() != "Score: 1000" {
		t.Errorf("Text() = %q, want the last delivered value", score.Text())
	}
	if n := r.Flush(); n != 0 {
		t.Errorf("second Flush() = %d, want 0", n)
	}
}

func TestHandle_RefreshAppliesStaleEvent(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{Level: 1}
	r.Register(p)

	level := handleFor(t, r, p, "Level")
	level.Refresh()
	p.Level = 3
	p.LevelUp.Raise()
	r.Drain()

	// a refresh pass renders the pending event in place of a flush
	if changed, err := level.Refresh(); err != nil || !changed {
		t.Fatalf("Refresh() = %v, %v; want true, nil", changed, err)
	}
	if level.Text() != "Level: 3" {
		t.Errorf("Text() = %q, want %q", level.Text(), "Level: 3")
	}
	if n := r.Flush(); n != 0 {
		t.Errorf("Flush() = %d after refresh, want 0", n)
	}
}

func TestRegistry_Validate(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{Alive: false}
	r.Register(p)

	name := handleFor(t, r, p, "Name")
	r.Validate()
	if name.Visible() {
		t.Error("Name visible while Alive is false")
	}
	p.Alive = true
	r.Validate()
	if !name.Visible() {
		t.Error("Name hidden while Alive is true")
	}
}

func TestRegistry_FailDisables(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{}
	r.Register(p)

	h := handleFor(t, r, p, "Kills")
	r.Fail(h, errors.New("boom"))

	if h.Enabled() {
		t.Error("handle still enabled after failure")
	}
	if h.Err() == nil || !strings.Contains(h.Err().Error(), "correlation_id") {
		t.Errorf("Err() = %v, want correlation id", h.Err())
	}
	if changed, err := h.Refresh(); changed || err != nil {
		t.Errorf("Refresh() on disabled handle = %v, %v", changed, err)
	}

	if !h.Enable() {
		t.Fatal("Enable() = false")
	}
	if h.Err() != nil || !h.Enabled() {
		t.Error("Enable() did not clear the failure")
	}
}

func TestHandle_Set(t *testing.T) {
	r, _ := newRegistry(t)
	p := &player{}
	r.Register(p)

	kills := handleFor(t, r, p, "Kills")
	if err := kills.Set(4); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if p.Kills != 4 || kills.Text() != "Kills: 4" {
		t.Errorf("Kills = %d, Text() = %q", p.Kills, kills.Text())
	}

	health := handleFor(t, r, p, "Health")
	if err := health.Set(1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Set() error = %v, want ErrReadOnly", err)
	}
}

func TestRegistry_DrainRecoversPanics(t *testing.T) {
	r, _ := newRegistry(t)
	ran := false
	r.Post(func() { panic("boom") })
	r.Post(func() { ran = true })

	if n := r.Drain(); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if !ran {
		t.Error("work after a panic did not run")
	}
}

func TestRegistry_Close(t *testing.T) {
	r, rec := newRegistry(t)
	r.Register(&player{})
	r.Register(&crate{})

	r.Close()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after Close, want 0", r.Len())
	}
	if len(rec.disposed) != 7 {
		t.Errorf("disposed notifications = %d, want 7", len(rec.disposed))
	}
}
