// Package inventory is the asset identity core: it owns item writes,
// per-type serial allocation, asset tag derivation, and the append-only
// audit trail.
//
// # Identity
//
// Every item carries a type-scoped serial issued exactly once by the
// allocator and an asset tag derived as SDMM-<CODE>-<serial, zero-padded
// to 4 digits>. The tag is printed on physical labels: it survives
// archiving, re-derives its code part on type change (serial preserved),
// and is never reused. (type_id, type_serial) pairs are unique across
// all items, archived included.
//
// # Transactions
//
// Each mutation is one SQLite transaction covering validation, serial
// allocation, tag derivation, the row write, and the audit entry. Lock
// contention is retried a bounded number of times before surfacing
// ErrConflict. No partial writes ever persist.
//
// # Audit trail
//
// Every mutation appends an item_updates row with a reason, the
// field-level diff, and full before/after snapshots. Entries are ordered
// by (created_at_utc, id) and never rewritten; derived fields (asset_tag,
// updated_at_utc) never appear in the diff.
package inventory
