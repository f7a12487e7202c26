package monitor

// Node is a hierarchical value rendered as an indented tree.
//
// Version must change whenever the node or any of its descendants change;
// the rendered tree is cached until it does.
type Node interface {
	NodeName() string
	Children() []Node
	Version() uint64
}

// Object is an engine-managed object that can be destroyed while still
// referenced. A dead object renders as null.
type Object interface {
	Alive() bool
	String() string
}

// Enumerable is a non-generic sequence of values.
type Enumerable interface {
	Enumerate(yield func(any) bool)
}

// OptOut is implemented by types that must never be scanned even when
// registered.
type OptOut interface {
	MonitorOptOut()
}

// Vector2 is a two component vector.
type Vector2 struct{ X, Y float64 }

// Vector3 is a three component vector.
type Vector3 struct{ X, Y, Z float64 }

// Vector4 is a four component vector.
type Vector4 struct{ X, Y, Z, W float64 }

// Quaternion is a rotation.
type Quaternion struct{ X, Y, Z, W float64 }

// Color is an RGBA colour with components in [0, 1].
type Color struct{ R, G, B, A float64 }
