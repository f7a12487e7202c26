// Package store holds the current state of every Handle for the HTTP
// display surface.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [HandleState]: Storage representation of one Handle
//   - [Change]: Notification sent to subscribers
//
// The store is designed for concurrent access: the update loop writes to it
// while HTTP handlers read snapshots and stream changes. Subscribers receive
// changes via channels with non-blocking sends (slow subscribers will miss
// changes rather than block the loop).
package store
