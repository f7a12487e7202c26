// Package catalog holds the candidate types the engine scans for monitored
// members.
//
// Go has no runtime enumeration of a program's types, so candidates are
// registered explicitly: plain types with [Catalog.Add], open generic types
// through a prototype instantiation with [Catalog.AddGeneric], method and
// property markers with [Catalog.Annotate] and package-level members with
// [Catalog.AddStatic]. [Catalog.Candidates] applies the module allow/deny
// filter and drops opted-out types.
//
// The package also provides the hierarchy helpers the rest of the engine
// uses to treat embedded structs as base types.
package catalog
