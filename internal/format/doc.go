// Package format builds the value-to-text functions Handles render with.
//
// [Factory.Build] picks a formatter for a member's static type by walking an
// ordered rule list; the first rule that matches wins and its index is cached
// per type. Every Func owns its text buffer, so a Func must be used by one
// Handle at a time, and it returns a fresh string on every call.
//
// Output shape:
//
//	Score: 42
//	Alive: <color=#4ec94e>TRUE</color>
//	Items:
//	  [0] sword
//	  [1] shield
//
// Custom processors (a method or static function named in the member's tag)
// are matched by signature with [Classify] and bound per target with
// [Factory.Processor].
package format
