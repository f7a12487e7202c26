package watchboard

import (
	"time"

	"github.com/jpalmerr/watchboard/internal/store"
	"github.com/jpalmerr/watchboard/internal/surface"
)

// HandleEvent names a Handle lifecycle notification.
//
// HandleEvent is a string type so it logs and serialises readably. The
// three values are [HandleCreated], [HandleUpdated] and [HandleDisposed].
type HandleEvent string

const (
	// HandleCreated is delivered once when a Handle is bound, before its
	// first refresh.
	HandleCreated HandleEvent = surface.EventCreated

	// HandleUpdated is delivered after a refresh pass changed the Handle's
	// text, enabled state or visibility.
	HandleUpdated HandleEvent = surface.EventUpdated

	// HandleDisposed is delivered when the Handle's target is unregistered
	// or the engine stops. The Handle never updates again.
	HandleDisposed HandleEvent = surface.EventDisposed
)

// String returns the event name.
func (e HandleEvent) String() string {
	return string(e)
}

// HandleSnapshot is the state of one Handle at a point in time.
//
// Snapshots are values; they are safe to retain and share between
// goroutines. They are delivered to callbacks registered with
// [WithHandleCallback] and returned by [Watchboard.Snapshot].
type HandleSnapshot struct {
	// ID is the Handle's ULID. It is unique for the life of the process;
	// re-registering a target yields new ids.
	ID string

	// Identity is the member identity shared by every Handle of the same
	// member, e.g. "game.Player.Score".
	Identity string

	// Member is the declared member name.
	Member string

	// Label is the display label.
	Label string

	// Kind is field, property, method or event.
	Kind string

	// Static is set for members not bound to a target.
	Static bool

	// Target is the type name of the registered target, empty for statics.
	Target string

	Group string
	Order int

	// Text is the latest formatted value. It may contain <color=#rrggbb>
	// markup from the configured palette.
	Text string

	// Enabled is false once a refresh failed or the Handle was disabled.
	Enabled bool

	// Visible reflects the member's visibility condition.
	Visible bool

	// Error holds the last failure with its correlation id, or "".
	Error string

	UpdatedAt time.Time
}

// Failed reports whether the Handle stopped because of an error.
func (s HandleSnapshot) Failed() bool {
	return s.Error != ""
}

// snapshotFromSurface converts the internal notification payload to the
// public type.
func snapshotFromSurface(s surface.Snapshot) HandleSnapshot {
	return HandleSnapshot{
		ID:        s.ID,
		Identity:  s.Identity,
		Member:    s.Member,
		Label:     s.Label,
		Kind:      s.Kind,
		Static:    s.Static,
		Target:    s.Target,
		Group:     s.Group,
		Order:     s.Order,
		Text:      s.Text,
		Enabled:   s.Enabled,
		Visible:   s.Visible,
		Error:     s.Error,
		UpdatedAt: s.UpdatedAt,
	}
}

// snapshotFromState converts a stored state to the public type.
func snapshotFromState(st store.HandleState) HandleSnapshot {
	s := HandleSnapshot{
		ID:        st.ID,
		Identity:  st.Identity,
		Member:    st.Member,
		Label:     st.Label,
		Kind:      st.Kind,
		Static:    st.Static,
		Target:    st.Target,
		Group:     st.Group,
		Order:     st.Order,
		Text:      st.Text,
		Enabled:   st.Enabled,
		Visible:   st.Visible,
		UpdatedAt: st.UpdatedAt,
	}
	if st.Error != nil {
		s.Error = *st.Error
	}
	return s
}
