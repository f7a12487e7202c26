// Package event provides the typed multicast events host types expose so the
// engine can refresh a monitored member as soon as its value changes instead
// of waiting for the next poll.
//
// [Event] carries a value; a monitored member whose update event is an
// Event[T] with T assignable to the member's type is re-rendered straight
// from the delivered value. [Signal] carries none and makes the engine
// re-read the member.
//
// Both types are usable as zero values and safe for concurrent use.
package event
