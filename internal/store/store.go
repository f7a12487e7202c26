package store

import "time"

// HandleState is the current state of one Handle as shown by the display
// surface.
//
// HandleState is the storage representation used by the REST API, SSE and
// WebSocket streams. It is decoupled from the engine's internal types so
// the wire shape can evolve independently.
type HandleState struct {
	// ID is the Handle's ULID.
	ID string `json:"id"`

	// Identity is the member identity, e.g. "game.Player.Score".
	Identity string `json:"identity"`

	// Member is the declared member name.
	Member string `json:"member"`

	// Label is the display label of the member.
	Label string `json:"label"`

	// Kind is the member kind: field, property, method or event.
	Kind string `json:"kind"`

	// Static is set for members not bound to a target.
	Static bool `json:"static"`

	// Target is the type name of the registered target, empty for statics.
	Target string `json:"target,omitempty"`

	// Group is the placement group; the dashboard renders one panel per group.
	Group string `json:"group,omitempty"`

	// Order sorts Handles within a group.
	Order int `json:"order"`

	// Text is the latest formatted value, possibly containing colour markup.
	Text string `json:"text"`

	// Enabled is false once a refresh has failed or the Handle was disabled.
	Enabled bool `json:"enabled"`

	// Visible reflects the Handle's visibility condition.
	Visible bool `json:"visible"`

	// Error contains the last failure, including its correlation id.
	Error *string `json:"error"`

	// UpdatedAt is the time of the last text change.
	UpdatedAt time.Time `json:"updated_at"`
}

// Change types carried by [Change].
const (
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// Change is one notification delivered to subscribers.
type Change struct {
	Type   string      `json:"type"`
	Handle HandleState `json:"handle"`
}

// Store defines the interface for storing and subscribing to Handle state.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a Handle state and notifies all subscribers.
	// States are keyed by ID, so subsequent updates replace previous values.
	Update(state HandleState)

	// Remove deletes the state with id and notifies subscribers.
	// Removing an unknown id is a no-op.
	Remove(id string)

	// Get returns the state stored for id.
	Get(id string) (HandleState, bool)

	// GetAll returns all currently stored states, ordered by group, order
	// and label. The returned slice is a snapshot.
	GetAll() []HandleState

	// Subscribe returns a channel that receives changes.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Change

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Change)
}
