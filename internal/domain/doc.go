// Package domain contains the core entities and value objects for courier.
//
// This package is the innermost layer. It has no dependencies on storage,
// transport, or logging and holds only the rules that every adapter and the
// application layer agree on.
//
// # Entities
//
//   - [CacheEntry]: a time-bounded snapshot of a domain value keyed by identifier
//   - [QueuedOperation]: a pending mutation awaiting acceptance by the remote system
//   - [Status]: point-in-time introspection of connectivity, cache, and queue
//
// # Operation kinds
//
// [Kind] is a closed set of built-in mutations (location updates, status
// updates, order acceptance and completion, message sends). Hosts extend the
// set by registering an executor for a new kind.
package domain
