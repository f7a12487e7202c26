// Package profile builds the immutable per-member metadata the engine
// renders from.
//
// A [Builder] scans the catalog's candidates in three passes: static
// members, instance members, then the deferred members declared on open
// generic prototypes, resolved against every closed candidate that embeds
// an instantiation of the same definition. The result is a [Registry] of
// [Profile] values keyed by declaring type.
//
// Failures are per member: a member that cannot be described, accessed or
// formatted is reported to the diagnostics sink and skipped.
package profile
