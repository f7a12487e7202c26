package catalog

import (
	"reflect"
	"strings"
)

// modulePath is the path of this module, derived from the catalog package.
var modulePath = strings.TrimSuffix(reflect.TypeFor[Catalog]().PkgPath(), "/internal/catalog")

// IsSystem reports whether pkg belongs to the standard library or to the
// engine's own public packages. Types from such packages are never treated
// as monitored base types.
func IsSystem(pkg string) bool {
	if pkg == "" {
		return true
	}
	first, _, _ := strings.Cut(pkg, "/")
	if !strings.Contains(first, ".") {
		return true
	}
	switch pkg {
	case modulePath, modulePath + "/event", modulePath + "/monitor":
		return true
	}
	return false
}

// DefinitionOf returns the generic definition identity of t, the package
// path and type name with the type argument list stripped. ok is false for
// non-generic types.
func DefinitionOf(t reflect.Type) (def string, ok bool) {
	name := t.Name()
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return "", false
	}
	return t.PkgPath() + "." + name[:i], true
}

// Base is t itself or one of its embedded struct types.
type Base struct {
	Type reflect.Type
	// Index is the field path from the root struct to the embedded value,
	// empty for the root. Pointer embeds are part of the path.
	Index []int
}

// Hierarchy returns t followed by every struct it embeds, breadth first.
// Embedded types from system packages are not descended into, and a type
// reached through several paths is reported once, at its shallowest path.
func Hierarchy(t reflect.Type) []Base {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := []Base{{Type: t}}
	if t.Kind() != reflect.Struct {
		return out
	}

	seen := map[reflect.Type]bool{t: true}
	for i := 0; i < len(out); i++ {
		cur := out[i]
		if cur.Type.Kind() != reflect.Struct {
			continue
		}
		for f := 0; f < cur.Type.NumField(); f++ {
			sf := cur.Type.Field(f)
			if !sf.Anonymous {
				continue
			}
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() != reflect.Struct || seen[ft] || IsSystem(ft.PkgPath()) {
				continue
			}
			seen[ft] = true
			index := make([]int, len(cur.Index)+1)
			copy(index, cur.Index)
			index[len(cur.Index)] = f
			out = append(out, Base{Type: ft, Index: index})
		}
	}
	return out
}

// SubclassOf reports whether t is, or embeds, an instantiation of the
// generic definition def, returning the matching base.
func SubclassOf(t reflect.Type, def string) (Base, bool) {
	for _, b := range Hierarchy(t) {
		if d, ok := DefinitionOf(b.Type); ok && d == def {
			return b, true
		}
	}
	return Base{}, false
}
