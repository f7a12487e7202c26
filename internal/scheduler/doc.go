// Package scheduler drives Handle refreshes.
//
// The [Scheduler] is a cooperative poll loop: the host calls
// [Scheduler.Tick] once per frame with the frame's duration, or lets
// [Scheduler.Run] do so from a ticker. Each tick drains work posted to the
// handle registry; once the accumulated (optionally time-scaled) delta
// reaches the refresh threshold, every active and enabled Handle is
// refreshed, visibility conditions are evaluated and changed texts are
// published to the display surface.
//
// A Handle whose refresh returns an error or panics is logged once with a
// correlation id and disabled; the rest of the pass continues.
//
// Scheduler methods must be called from the loop goroutine. Other
// goroutines post work through the handle registry.
package scheduler
