// Package main hosts the offsettweak CLI entrypoint and command graph.
//
// The root command takes one library directory and a delta flag, walks the
// charts below it, and asks for approval pack by pack before rewriting any
// #OFFSET field. Subcommands cover the history journal and configuration
// scaffolding. Domain logic lives in the internal packages; this package only
// resolves configuration, wires collaborators and renders results.
package main
