// Package introspect lists the monitored members of catalog types.
//
// [TypeIntrospector] is the capability interface the profile builder
// consumes; [Reflect] implements it with the reflect package. Fields are
// marked with the `monitor` struct tag, methods and properties through
// catalog annotations, and statics through the catalog's static table.
package introspect
