// Package history keeps a SQLite journal of committed offset changes.
//
// Every pack that is patched, or whose ledger is cleared, is appended as one
// commit row with a change row per rewritten chart. The journal is advisory:
// the per-pack ledgers remain the source of truth for baselines.
package history
