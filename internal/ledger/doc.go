// Package ledger persists per-pack baseline offsets in a CSV sidecar.
//
// The sidecar lives in the pack's directory and holds one row per chart with
// columns pack, song, file and initial_offset. Every numeric value in a pack's
// ledger is written with the same number of fractional digits, and that width
// is what a later load reports as each entry's precision. A missing ledger is
// an empty ledger.
package ledger
