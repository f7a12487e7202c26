package event

import (
	"reflect"
	"sync"
)

// Subscription identifies one registered handler.
type Subscription uint64

// Source is implemented by every event type.
type Source interface {
	SubscriberCount() int
	Unsubscribe(id Subscription) bool
}

// ValueSource is a [Source] delivering values of ValueType.
type ValueSource interface {
	Source
	ValueType() reflect.Type
	SubscribeValue(fn func(sender, value any)) Subscription
}

// NotifySource is a [Source] delivering bare notifications.
type NotifySource interface {
	Source
	SubscribeNotify(fn func()) Subscription
}

// Handler receives a raised value along with the object that raised it.
type Handler[T any] func(sender any, value T)

type binding[F any] struct {
	id Subscription
	fn F
}

// handlers is the subscription list shared by Event and Signal.
type handlers[F any] struct {
	mu    sync.RWMutex
	next  Subscription
	items []binding[F]
}

func (h *handlers[F]) add(fn F) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	h.items = append(h.items, binding[F]{id: h.next, fn: fn})
	return h.next
}

func (h *handlers[F]) remove(id Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, b := range h.items {
		if b.id == id {
			h.items = append(h.items[:i:i], h.items[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot returns the handlers to invoke; raising never holds the lock.
func (h *handlers[F]) snapshot() []binding[F] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.items
}

func (h *handlers[F]) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Event is a value-carrying multicast event.
type Event[T any] struct {
	handlers handlers[Handler[T]]
}

// Subscribe registers fn and returns its subscription id.
func (e *Event[T]) Subscribe(fn Handler[T]) Subscription {
	return e.handlers.add(fn)
}

// SubscribeValue registers an untyped handler. It lets code that only knows
// the event through reflection listen to it.
func (e *Event[T]) SubscribeValue(fn func(sender, value any)) Subscription {
	return e.handlers.add(func(sender any, v T) { fn(sender, v) })
}

// Unsubscribe removes the handler registered under id. It reports whether
// the subscription existed.
func (e *Event[T]) Unsubscribe(id Subscription) bool {
	return e.handlers.remove(id)
}

// Raise invokes every handler in subscription order.
func (e *Event[T]) Raise(sender any, value T) {
	for _, b := range e.handlers.snapshot() {
		b.fn(sender, value)
	}
}

// SubscriberCount returns the number of registered handlers.
func (e *Event[T]) SubscriberCount() int {
	return e.handlers.len()
}

// ValueType returns the reflect type of T.
func (e *Event[T]) ValueType() reflect.Type {
	return reflect.TypeFor[T]()
}

// Signal is a multicast notification without a payload.
type Signal struct {
	handlers handlers[func()]
}

// Subscribe registers fn and returns its subscription id.
func (s *Signal) Subscribe(fn func()) Subscription {
	return s.handlers.add(fn)
}

// SubscribeNotify is Subscribe under the [NotifySource] name.
func (s *Signal) SubscribeNotify(fn func()) Subscription {
	return s.handlers.add(fn)
}

// Unsubscribe removes the handler registered under id.
func (s *Signal) Unsubscribe(id Subscription) bool {
	return s.handlers.remove(id)
}

// Raise invokes every handler in subscription order.
func (s *Signal) Raise() {
	for _, b := range s.handlers.snapshot() {
		b.fn()
	}
}

// SubscriberCount returns the number of registered handlers.
func (s *Signal) SubscriberCount() int {
	return s.handlers.len()
}

var sourceType = reflect.TypeFor[Source]()

// IsSource reports whether values of t, or pointers to them, implement
// [Source]. Fields of such types are monitored as events.
func IsSource(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(sourceType) {
		return true
	}
	return t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(sourceType)
}
