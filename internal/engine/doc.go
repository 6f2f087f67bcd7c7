// Package engine implements the offline-first synchronization engine.
//
// The engine reconciles two independently-mutable stores: the durable
// device-local event cache and the authoritative remote service. Every
// user action is written locally and published to the view before any
// network I/O happens, so visible state never blocks on connectivity.
// Remote propagation is best-effort and at-most-once per optimistic
// write; the durable `pending` status is the retry state, recovered by a
// later SyncEvents or LoadEvents cycle.
//
// # Error policy
//
// Local store failures always propagate: the optimistic-write contract
// depends on local durability succeeding. Remote failures during
// create/update are swallowed and logged, with one distinction: network
// failures are the expected offline case and log at info, while
// authorization and validation failures are real problems, log at error,
// and surface through the view's LastSyncErr so a UI can tell them apart
// from being offline.
//
// # Concurrency
//
// Engine operations are serialized by an internal mutex (single-flight
// per store instance; the local store rewrites durable state on every
// mutation, so interleaved operations could lose updates). The published
// view is single-writer, many-reader: all mutations replace the whole
// slice, so a reader holding a prior snapshot is never corrupted.
package engine
