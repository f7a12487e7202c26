package store

import (
	"cmp"
	"slices"
	"sync"
)

// subscriberBuffer is the channel capacity given to each subscriber.
const subscriberBuffer = 256

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. States are keyed by Handle ID, with new states
// replacing previous values.
//
// Subscribers receive changes via buffered channels. Changes are sent
// non-blocking; if a subscriber's buffer is full, the change is dropped for
// that subscriber to prevent blocking the update loop.
type MemoryStore struct {
	mu          sync.RWMutex
	states      map[string]HandleState
	subscribers map[chan Change]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:      make(map[string]HandleState),
		subscribers: make(map[chan Change]struct{}),
	}
}

// Update stores a [HandleState] and notifies all subscribers.
func (m *MemoryStore) Update(state HandleState) {
	m.mu.Lock()
	m.states[state.ID] = state
	m.mu.Unlock()

	m.notifySubscribers(Change{Type: ChangeUpdated, Handle: state})
}

// Remove deletes the state with id and notifies subscribers.
func (m *MemoryStore) Remove(id string) {
	m.mu.Lock()
	state, ok := m.states[id]
	delete(m.states, id)
	m.mu.Unlock()

	if ok {
		m.notifySubscribers(Change{Type: ChangeRemoved, Handle: state})
	}
}

// Get returns the state stored for id.
func (m *MemoryStore) Get(id string) (HandleState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[id]
	return state, ok
}

// GetAll returns a sorted snapshot of all stored states.
//
// Statics come first, then states ordered by group, order, label and ID.
func (m *MemoryStore) GetAll() []HandleState {
	m.mu.RLock()
	results := make([]HandleState, 0, len(m.states))
	for _, state := range m.states {
		results = append(results, state)
	}
	m.mu.RUnlock()

	slices.SortFunc(results, func(a, b HandleState) int {
		if a.Static != b.Static {
			if a.Static {
				return -1
			}
			return 1
		}
		return cmp.Or(
			cmp.Compare(a.Group, b.Group),
			cmp.Compare(a.Order, b.Order),
			cmp.Compare(a.Label, b.Label),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return results
}

// Len returns the number of stored states.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Subscribe creates a new subscription and returns a channel for receiving
// changes.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Change {
	ch := make(chan Change, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Change) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends c to all active subscribers without blocking.
func (m *MemoryStore) notifySubscribers(c Change) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- c:
		default:
			// subscriber is slow, drop the message
		}
	}
}
