// Package session persists capture sessions in a SQLite ledger: one row per
// recorded match, tracking its two raw sources, pipeline status, resolved
// temporal offset, artifact paths, and stitching progress. A session that
// reached completed is immutable; failed sessions can be re-queued with
// RetryFailed, which is the only sanctioned path back to pending.
package session
