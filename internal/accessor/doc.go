// Package accessor turns member descriptors into the closures that read,
// write, invoke and observe a member on a target.
//
// Targets are passed as the addressable struct value of the member's
// declaring type. Static members ignore the target.
package accessor
