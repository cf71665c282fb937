// Package locator enumerates chart files beneath a library root.
//
// Files are grouped by their two parent directories: the grandparent is the
// pack and the parent is the song. Traversal is depth-first with a
// case-insensitive ordering at every level so approval prompts and ledger rows
// come out in the same order on every run.
package locator
