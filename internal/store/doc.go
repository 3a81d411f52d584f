// Package store provides SQLite-backed persistence for the run
// registry: one record per analyze or tune run, carrying the input
// reference, the parameter snapshot, and a result summary.
//
// # Identity and Ordering
//
//   - Run IDs are UUIDv7, so ID order follows creation time
//   - Listing queries order by started_at DESC, id DESC for stable
//     results when timestamps collide
//   - params and summary are stored as JSON text; Go's json.Marshal
//     sorts map keys, keeping stored snapshots byte-stable
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
