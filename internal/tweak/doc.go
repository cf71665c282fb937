// Package tweak plans and applies offset changes pack by pack.
//
// The Planner reads every chart's current offset, reconciles it with the
// pack's ledger baseline, and proposes final offsets for a single signed delta.
// The Engine then walks the packs in order: it asks a Confirmer for approval,
// patches the changed charts, and commits the new baselines to the ledger (or
// removes the ledger when the delta is zero). Nothing is written for a pack
// unless its Confirmer approved it.
package tweak
