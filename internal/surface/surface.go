package surface

import (
	"fmt"
	"log/slog"
	"time"
)

// Snapshot is the state of one Handle at the time of a notification.
type Snapshot struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Member    string    `json:"member"`
	Label     string    `json:"label"`
	Kind      string    `json:"kind"`
	Static    bool      `json:"static"`
	Target    string    `json:"target,omitempty"`
	Group     string    `json:"group,omitempty"`
	Order     int       `json:"order"`
	Text      string    `json:"text"`
	Enabled   bool      `json:"enabled"`
	Visible   bool      `json:"visible"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Surface receives Handle lifecycle notifications. Calls are made from the
// engine's update loop and must not block for long.
type Surface interface {
	HandleCreated(s Snapshot)
	HandleUpdated(s Snapshot)
	HandleDisposed(s Snapshot)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) HandleCreated(Snapshot)  {}
func (Nop) HandleUpdated(Snapshot)  {}
func (Nop) HandleDisposed(Snapshot) {}

// Multi forwards each notification to every surface in order.
type Multi []Surface

func (m Multi) HandleCreated(s Snapshot) {
	for _, sf := range m {
		sf.HandleCreated(s)
	}
}

func (m Multi) HandleUpdated(s Snapshot) {
	for _, sf := range m {
		sf.HandleUpdated(s)
	}
}

func (m Multi) HandleDisposed(s Snapshot) {
	for _, sf := range m {
		sf.HandleDisposed(s)
	}
}

// Join returns a surface forwarding to every non-nil surface in list.
func Join(list ...Surface) Surface {
	var out Multi
	for _, s := range list {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	}
	return out
}

// Event names used by [Callback] and [Publisher].
const (
	EventCreated  = "created"
	EventUpdated  = "updated"
	EventDisposed = "disposed"
)

// Callback adapts a function to [Surface]. Panics in the function are
// logged and do not reach the engine.
type Callback struct {
	Fn     func(event string, s Snapshot)
	Logger *slog.Logger
}

func (c Callback) HandleCreated(s Snapshot)  { c.invoke(EventCreated, s) }
func (c Callback) HandleUpdated(s Snapshot)  { c.invoke(EventUpdated, s) }
func (c Callback) HandleDisposed(s Snapshot) { c.invoke(EventDisposed, s) }

func (c Callback) invoke(event string, s Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			logger := c.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("handle callback panicked",
				"panic", fmt.Sprintf("%v", r),
				"event", event,
				"handle", s.ID,
				"member", s.Identity,
			)
		}
	}()
	c.Fn(event, s)
}
