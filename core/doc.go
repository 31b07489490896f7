// Package core provides the foundational domain types and interfaces shared by
// the orchestrator, agents, model router, tool registry and memory manager. It
// defines:
//
//   - Tasks (kind, priority, lifecycle status, context snapshot, result)
//   - Agents (closed set of kinds, configuration, lifecycle contract)
//   - Lifecycle events emitted by the orchestrator
//   - The error taxonomy used across every component
//   - Small storage interfaces so in-memory maps can be swapped for durable backends
//
// The package keeps implementation concerns (scheduling, persistence, model
// access) out of scope and depends only on the standard library and uuid.
package core
