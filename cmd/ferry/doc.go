// Package main hosts the ferry CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into transfer runs
// (catalog walks and batch lists), ledger maintenance, staging cleanup,
// preflight diagnostics, and configuration scaffolding. It centralizes
// configuration resolution, logger construction, and collaborator wiring so
// subcommands stay declarative.
//
// Add new behaviour to the internal packages first, then surface it through a
// dedicated command or flag here.
package main
