// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// Ports are the boundaries between the synchronizer core and the outside
// world. They say what the core needs from external systems without saying
// how those needs are met.
//
// # Port Interfaces
//
//   - [Storage]: durable key/value records for cache entries and the queue
//   - [ReachabilityProbe]: best-effort check that the remote system is reachable
//   - [NetworkSignals]: platform online/offline notifications
//   - [Executor]: performs one queued operation against the remote system
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with files,
// Redis, HTTP, or NSQ.
package ports
