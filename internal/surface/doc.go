// Package surface defines the contract between the engine and whatever
// displays Handle text.
//
// The engine calls a [Surface] from its update loop when a Handle is
// created, when its text or state changes and when it is disposed.
// Adapters in this package forward those notifications to the HTTP
// dashboard's store, to a watermill publisher and to user callbacks;
// [Multi] fans out to several of them.
package surface
