package introspect

import (
	"reflect"

	"github.com/jpalmerr/watchboard/internal/catalog"
	"github.com/jpalmerr/watchboard/monitor"
)

// Kind is the category of a monitored member.
type Kind uint8

const (
	KindField Kind = iota + 1
	KindProperty
	KindMethod
	KindEvent
)

func (k Kind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindProperty:
		return "property"
	case KindMethod:
		return "method"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// MemberDescriptor describes one monitored member. Descriptors are values
// and are never modified after the introspector returns them.
type MemberDescriptor struct {
	Name          string
	Kind          Kind
	Static        bool
	DeclaringType *catalog.Type
	// ValueType is the type the member reads as. It is nil for methods
	// without outputs.
	ValueType reflect.Type
	Tag       monitor.Tag

	// Index is the field path for instance fields and events.
	Index []int
	// Method is the method name for instance properties and methods.
	Method string
	// Setter is the Set<Name> method of a settable instance property.
	Setter string
	// Receiver, when set, is the embedded type whose pointer method set
	// holds Method and Setter, reached from the declaring type through
	// ReceiverIndex.
	Receiver      reflect.Type
	ReceiverIndex []int
	// Ref is the variable pointer, function or event of a static member.
	Ref reflect.Value
	// SetterRef is the optional setter function of a static property.
	SetterRef reflect.Value

	origin string
}

// Identity returns the key used to de-duplicate members across a type
// hierarchy. Members resolved from a generic definition share the identity
// of the definition's member.
func (d MemberDescriptor) Identity() string {
	if d.origin != "" {
		return d.origin
	}
	return d.localIdentity()
}

func (d MemberDescriptor) localIdentity() string {
	owner := ""
	if d.DeclaringType != nil {
		owner = d.DeclaringType.Name()
		if def := d.DeclaringType.Definition(); def != "" {
			owner = def
		}
	}
	if d.Static {
		return owner + "::" + d.Name
	}
	return owner + "." + d.Name
}

// Resolved reports whether the descriptor was resolved from a generic
// definition against a closed type.
func (d MemberDescriptor) Resolved() bool {
	return d.origin != ""
}

// Generic reports whether the member is declared on an open generic
// prototype and must be resolved before use.
func (d MemberDescriptor) Generic() bool {
	return d.DeclaringType != nil && d.DeclaringType.IsGeneric() && d.origin == ""
}

// TypeIntrospector lists monitored members of a type.
type TypeIntrospector interface {
	Fields(t *catalog.Type, static bool) []MemberDescriptor
	Properties(t *catalog.Type, static bool) []MemberDescriptor
	Methods(t *catalog.Type, static bool) []MemberDescriptor
	Events(t *catalog.Type, static bool) []MemberDescriptor
	// Resolve looks up the member d, declared on a generic prototype, on
	// the closed type that embeds an instantiation of it.
	Resolve(d MemberDescriptor, closed *catalog.Type) (MemberDescriptor, error)
}
