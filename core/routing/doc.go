// Package routing connects the invocation layer to actual cluster members.
//
// It provides the three collaborators the invocation package leaves
// abstract:
//
//   - [Router]: resolves a binding (connection, partition owner, explicit
//     target, or any member) to a transmission on a [Conn].
//   - [Dispatcher]: matches inbound frames to in-flight invocations by
//     correlation id, discards stale frames, fails invocations whose
//     connection died, and delivers event-stream frames to their handlers
//     in per-stream order.
//   - [Registry]: caches one connection per member address, deduplicating
//     concurrent dials.
//
// The wire itself is abstracted behind [Transport]; [MemoryTransport]
// serves tests and single-process demos, adapters/nats provides a
// NATS-backed implementation.
package routing
