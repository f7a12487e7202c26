package main

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/jpalmerr/watchboard/event"
	"github.com/jpalmerr/watchboard/monitor"
)

// Tracker remembers the last value applied to its owner. It is declared
// generic so every instantiation is monitored from one registration.
type Tracker[T any] struct {
	Last T `monitor:"label=Last change"`
}

// Player is a simulated arena player.
type Player struct {
	Tracker[int]

	Name      string          `monitor:"order=1,color=#61afef"`
	Health    int             `monitor:"label=HP,order=2"`
	Position  monitor.Vector3 `monitor:"format=%.1f,order=3"`
	Inventory []string        `monitor:"flags=index,order=4"`
	Score     int             `monitor:"event=ScoreChanged,order=5"`
	Respawn   int             `monitor:"label=Respawn in,if=Dead,order=6"`

	ScoreChanged event.Event[int]

	heading float64
}

// Dead reports whether the player is waiting to respawn.
func (p *Player) Dead() bool { return p.Health <= 0 }

// Status is a read-only property shown next to the fields.
func (p *Player) Status() string {
	switch {
	case p.Dead():
		return "down"
	case p.Health < 30:
		return "critical"
	default:
		return "ok"
	}
}

// Enemy is a simulated arena enemy.
type Enemy struct {
	Tracker[string]

	Kind    string          `monitor:"order=1"`
	Target  *Player         `monitor:"processor=TargetName,order=2"`
	Spawned monitor.Vector2 `monitor:"order=3"`
}

// TargetName renders the player the enemy is chasing.
func (e *Enemy) TargetName(p *Player) string {
	if p == nil {
		return "none"
	}
	return p.Name
}

var loot = []string{"potion", "shield", "arrow", "key", "map"}

// World steps the simulation. All mutation happens from the update loop.
type World struct {
	Players []*Player
	Enemies []*Enemy
	Speed   float64

	tick int
	rng  *rand.Rand
}

func newWorld(seed int64) *World {
	w := &World{Speed: 1, rng: rand.New(rand.NewSource(seed))}
	for _, name := range []string{"ada", "grace", "linus"} {
		w.Players = append(w.Players, &Player{Name: name, Health: 100})
	}
	for i, kind := range []string{"slime", "bat"} {
		w.Enemies = append(w.Enemies, &Enemy{
			Kind:    kind,
			Spawned: monitor.Vector2{X: float64(i * 10), Y: 5},
		})
	}
	return w
}

// Step advances every entity by one simulation tick.
func (w *World) Step() {
	w.tick++
	for _, p := range w.Players {
		w.stepPlayer(p)
	}
	for _, e := range w.Enemies {
		if w.rng.Intn(20) == 0 {
			e.Target = w.Players[w.rng.Intn(len(w.Players))]
			e.Last = fmt.Sprintf("retarget at tick %d", w.tick)
		}
	}
}

func (w *World) stepPlayer(p *Player) {
	if p.Dead() {
		p.Respawn--
		if p.Respawn <= 0 {
			p.Health = 100
			p.Last = 100
		}
		return
	}

	p.heading += (w.rng.Float64() - 0.5) * 0.4
	p.Position.X += math.Cos(p.heading) * w.Speed
	p.Position.Z += math.Sin(p.heading) * w.Speed

	switch w.rng.Intn(10) {
	case 0:
		dmg := 5 + w.rng.Intn(20)
		p.Health -= dmg
		p.Last = -dmg
		if p.Dead() {
			p.Health = 0
			p.Respawn = 30
			p.Inventory = nil
		}
	case 1:
		p.Score += 10
		p.ScoreChanged.Raise(p, p.Score)
	case 2:
		if len(p.Inventory) < 4 {
			p.Inventory = append(p.Inventory, loot[w.rng.Intn(len(loot))])
		}
	}
}

// Tick returns the number of simulation steps taken.
func (w *World) Tick() int { return w.tick }
