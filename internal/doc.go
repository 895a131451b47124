// Package internal documents the EventEye server internals.
//
// The internal tree is organized by responsibility:
// - api: HTTP handlers, middleware, problem documents, and routing
// - domain: events, certificates, verification, stats, and users
// - storage: the key-value store contract and its backends
// - jobs: River workers for repair and certificate emails
// - auth, audit, config, email, metrics, sanitize, telemetry: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
