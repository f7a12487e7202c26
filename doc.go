// Package watchboard is an embeddable live inspector: it discovers the
// members of your types marked for monitoring, keeps one Handle per member
// and registered object, refreshes their formatted text on a schedule and
// shows it on a web dashboard.
//
// # Quick Start
//
// Mark fields with the `monitor` struct tag, register the type and an
// instance, and start the engine:
//
//	type Player struct {
//	    Name  string  `monitor:"order=1"`
//	    Score int     `monitor:"label=Points,event=ScoreChanged"`
//	    Speed float64 `monitor:"format=%.1f"`
//
//	    ScoreChanged event.Event[int]
//	}
//
//	player := &Player{Name: "Ada"}
//	wb, _ := watchboard.New(
//	    watchboard.WithType[Player](),
//	    watchboard.WithTarget(player),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	wb.Start(ctx) // blocks until context is cancelled
//
// # Members
//
// Fields and events are marked with struct tags. Methods cannot carry
// tags, so properties (func() V methods) and methods (any other method
// with an output) are marked with [Annotate]. Package-level variables and
// functions become statics via [NewStatic] and [WithStatic].
//
// Embedded structs are walked: a Player embedding Tracker[int] shows the
// Tracker's members under the Tracker's identity. Register one
// instantiation of a generic type with [WithGenericType] and its members
// are resolved for every type that embeds any instantiation of it.
//
// # Updates
//
// Handles are refreshed by polling every refresh threshold (see
// [WithRefreshThreshold]). A member whose marker names an update event is
// refreshed when the event fires instead. A member whose marker names an
// "if" condition is shown only while the condition's bool member is true.
//
// A refresh that fails or panics disables only its Handle; the error and a
// correlation id are logged and shown on the dashboard.
//
// # Display surfaces
//
// The HTTP dashboard serves:
//
//   - GET /: the web UI
//   - GET /api/handles: all Handle states as JSON
//   - GET /api/sse and GET /api/ws: live changes
//   - GET /metrics: Prometheus metrics
//   - POST /api/handles/{id}/enable and POST /api/visibility: controls
//
// Handle events can also be delivered to callbacks ([WithHandleCallback])
// and published to any watermill publisher ([WithPublisher]).
//
// # Architecture
//
// Watchboard consists of several internal packages (under internal/):
//
//   - internal/catalog: candidate types, statics and annotations
//   - internal/introspect: member discovery over reflection
//   - internal/accessor: getters, setters and invokers per member
//   - internal/format: value formatter selection
//   - internal/profile: discovery passes producing Profiles
//   - internal/handle: Handles and their registry
//   - internal/scheduler: the update loop
//   - internal/store, internal/surface, internal/server: display surfaces
//
// The internal packages are not part of the public API and may change
// without notice.
package watchboard
