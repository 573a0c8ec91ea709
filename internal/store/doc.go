// Package store provides SQLite-backed persistence for the three storage
// spaces (private, public, stage) of every item version.
//
// The store is the raw repository layer: it performs last-write-wins row
// operations with read-your-writes visibility and never interprets dirty
// flags or conflicts. Space semantics live in internal/space.
//
// # Row layout
//
//   - elements: one row per (space, item, version, element, revision).
//     Private rows use the zero revision; public rows are written once per
//     publish and older revisions stay readable.
//   - version_elements: the element map of each public revision
//     (element id -> revision id holding its content).
//   - element_sync_states / version_sync_states: dirty flag and publish time.
//   - stage_elements / stage_versions: staged entities awaiting commit.
//
// Payload columns (info, relations, staged entities) are encoded with CBOR
// Core Deterministic Encoding. Publish times are stored as Unix nanoseconds;
// NULL means never published.
//
// # Deterministic Query Results
//
// Every listing orders by id (or by publish time, newest first, for
// revisions) so results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks (5 seconds by default)
//   - foreign_keys=ON: Enforce referential integrity
package store
