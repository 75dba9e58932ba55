// Package store provides SQLite-backed durable storage for run traces.
//
// The store is an append-only record of finished (and failed) runs:
//   - Runs: one row per simulation, created when it starts and completed
//     once when it finishes
//   - Events: every trace event of a run, keyed by (run_id, seq)
//
// Nothing in the store is ever read back into a running simulation; it
// exists so a run can be listed and re-analysed after the fact.
//
// # Ordering
//
// Events are ordered by seq, the engine's logical clock, never by their
// wall-clock timestamps. Queries over events always include ORDER BY seq.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must belong to a recorded run
//
// Writes during a run go through a Recorder, which queues events emitted on
// agent goroutines and persists them in batches from a single writer.
package store
