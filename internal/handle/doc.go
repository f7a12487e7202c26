// Package handle binds Profiles to live targets.
//
// A [Handle] pairs one Profile with one registered target (or with no
// target for static members) and caches the member's formatted text. The
// [Registry] creates Handles when targets are registered, disposes them
// when targets are unregistered and owns the queue of work posted from
// other goroutines.
//
// Apart from [Registry.Post], every method must be called from the single
// goroutine running the update loop.
package handle
