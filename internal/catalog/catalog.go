package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/jpalmerr/watchboard/internal/diag"
	"github.com/jpalmerr/watchboard/monitor"
)

var (
	// ErrUnnamed is returned when registering an anonymous type.
	ErrUnnamed = fmt.Errorf("%w: type must be a named type", diag.ErrMalformed)
	// ErrNotStruct is returned when a generic prototype is not a struct.
	ErrNotStruct = fmt.Errorf("%w: generic prototype must be a struct", diag.ErrMalformed)
	// ErrNotGeneric is returned when a prototype is not a generic instantiation.
	ErrNotGeneric = fmt.Errorf("%w: prototype must be an instantiation of a generic type", diag.ErrMalformed)
	// ErrInvalidStatic is returned for static members that are neither a
	// non-nil pointer nor a function.
	ErrInvalidStatic = fmt.Errorf("%w: static member must be a non-nil pointer or function", diag.ErrMalformed)
)

var optOutType = reflect.TypeFor[monitor.OptOut]()

// Static is a package-level member attached to an owner type.
type Static struct {
	Name string
	// Ref is a pointer to a package-level variable or event, or a function.
	Ref reflect.Value
	// Setter is an optional func(T) used to write a function-backed member.
	Setter reflect.Value
	Tag    monitor.Tag
}

// Annotation marks a method, property or field of a type by name.
type Annotation struct {
	Member string
	Tag    monitor.Tag
}

// Type is one registered candidate type.
type Type struct {
	goType      reflect.Type
	generic     bool
	definition  string
	optOut      bool
	annotations []Annotation
	statics     []Static
}

// Go returns the reflect type.
func (t *Type) Go() reflect.Type { return t.goType }

// Name returns the package-qualified type name, e.g. "game.Player".
func (t *Type) Name() string { return t.goType.String() }

// Module returns the package path the type is declared in.
func (t *Type) Module() string { return t.goType.PkgPath() }

// IsGeneric reports whether t is the prototype of an open generic type.
func (t *Type) IsGeneric() bool { return t.generic }

// Definition returns the generic definition identity for prototypes and
// instantiations, or "" for non-generic types.
func (t *Type) Definition() string { return t.definition }

// IsValueType reports whether the type is not a struct. Value types carry
// static members only.
func (t *Type) IsValueType() bool { return t.goType.Kind() != reflect.Struct }

// OptedOut reports whether the type implements [monitor.OptOut].
func (t *Type) OptedOut() bool { return t.optOut }

// Annotation returns the marker registered for member.
func (t *Type) Annotation(member string) (monitor.Tag, bool) {
	for _, a := range t.annotations {
		if a.Member == member {
			return a.Tag, true
		}
	}
	return monitor.Tag{}, false
}

// Annotations returns the registered markers in registration order.
// The slice must not be modified.
func (t *Type) Annotations() []Annotation { return t.annotations }

// Statics returns the registered static members in registration order.
// The slice must not be modified.
func (t *Type) Statics() []Static { return t.statics }

// Static returns the static member called name.
func (t *Type) Static(name string) (Static, bool) {
	for _, s := range t.statics {
		if s.Name == name {
			return s, true
		}
	}
	return Static{}, false
}

// Catalog is the set of candidate types.
//
// Registration is safe for concurrent use; discovery reads the catalog
// after registration has finished.
type Catalog struct {
	mu     sync.RWMutex
	types  []*Type
	byType map[reflect.Type]*Type
	filter Filter
}

// New creates an empty catalog using filter.
func New(filter Filter) *Catalog {
	return &Catalog{
		byType: make(map[reflect.Type]*Type),
		filter: filter,
	}
}

// normalize dereferences a single pointer so callers may pass either T or *T.
func normalize(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, errors.New("nil type")
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return nil, fmt.Errorf("%s: %w", t, ErrUnnamed)
	}
	return t, nil
}

// Add registers t as a candidate. Registering the same type twice returns
// the existing entry.
func (c *Catalog) Add(t reflect.Type) (*Type, error) {
	t, err := normalize(t)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(t), nil
}

func (c *Catalog) addLocked(t reflect.Type) *Type {
	if existing, ok := c.byType[t]; ok {
		return existing
	}
	def, _ := DefinitionOf(t)
	entry := &Type{
		goType:     t,
		definition: def,
		optOut:     t.Implements(optOutType) || reflect.PointerTo(t).Implements(optOutType),
	}
	c.types = append(c.types, entry)
	c.byType[t] = entry
	return entry
}

// AddGeneric registers proto, an instantiation of a generic struct such as
// Tracker[any], as the stand-in for the open generic definition. Members
// found on it are resolved against every closed candidate that embeds an
// instantiation of the same definition.
func (c *Catalog) AddGeneric(proto reflect.Type) (*Type, error) {
	proto, err := normalize(proto)
	if err != nil {
		return nil, err
	}
	if proto.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s: %w", proto, ErrNotStruct)
	}
	if _, ok := DefinitionOf(proto); !ok {
		return nil, fmt.Errorf("%s: %w", proto, ErrNotGeneric)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.addLocked(proto)
	entry.generic = true
	return entry, nil
}

// Annotate marks member of t, registering t if needed. A later annotation
// of the same member replaces the earlier one.
func (c *Catalog) Annotate(t reflect.Type, member string, tag monitor.Tag) error {
	t, err := normalize(t)
	if err != nil {
		return err
	}
	if member == "" {
		return fmt.Errorf("%s: %w: empty member name", t, diag.ErrMalformed)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.addLocked(t)
	for i, a := range entry.annotations {
		if a.Member == member {
			entry.annotations[i].Tag = tag
			return nil
		}
	}
	entry.annotations = append(entry.annotations, Annotation{Member: member, Tag: tag})
	return nil
}

// AddStatic attaches a package-level member to owner, registering owner if
// needed.
func (c *Catalog) AddStatic(owner reflect.Type, s Static) error {
	owner, err := normalize(owner)
	if err != nil {
		return err
	}
	if s.Name == "" {
		return fmt.Errorf("%s: %w: empty static name", owner, diag.ErrMalformed)
	}
	switch {
	case !s.Ref.IsValid():
		return fmt.Errorf("%s.%s: %w", owner, s.Name, ErrInvalidStatic)
	case s.Ref.Kind() == reflect.Func, s.Ref.Kind() == reflect.Pointer:
		if s.Ref.IsNil() {
			return fmt.Errorf("%s.%s: %w", owner, s.Name, ErrInvalidStatic)
		}
	default:
		return fmt.Errorf("%s.%s: %w", owner, s.Name, ErrInvalidStatic)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.addLocked(owner)
	for i, existing := range entry.statics {
		if existing.Name == s.Name {
			entry.statics[i] = s
			return nil
		}
	}
	entry.statics = append(entry.statics, s)
	return nil
}

// Lookup returns the entry registered for t.
func (c *Catalog) Lookup(t reflect.Type) (*Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.byType[t]
	return entry, ok
}

// Candidates returns the registered types that pass the module filter and
// have not opted out, in registration order.
func (c *Catalog) Candidates() []*Type {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Type, 0, len(c.types))
	for _, t := range c.types {
		if t.optOut || !c.filter.Allows(t.Module()) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Len returns the number of registered types, filtered or not.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

// Filter restricts candidates by package path.
type Filter struct {
	// Allow lists package path prefixes; empty allows every package.
	Allow []string
	// Deny lists package path prefixes excluded even when allowed.
	Deny []string
}

// Allows reports whether types declared in pkg are candidates.
func (f Filter) Allows(pkg string) bool {
	for _, d := range f.Deny {
		if hasPathPrefix(pkg, d) {
			return false
		}
	}
	if len(f.Allow) == 0 {
		return true
	}
	for _, a := range f.Allow {
		if hasPathPrefix(pkg, a) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole path elements: "a/b" matches "a/b" and
// "a/b/c" but not "a/bc".
func hasPathPrefix(pkg, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	return pkg == prefix || strings.HasPrefix(pkg, prefix+"/")
}

// SortedNames returns the names of types, sorted. Used for diagnostics.
func SortedNames(types []*Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.Name()
	}
	sort.Strings(names)
	return names
}
