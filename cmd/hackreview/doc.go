// Package main hosts the hackreview CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the whole review pipeline or a single
// stage against an output directory, prints run and status summaries, and
// scaffolds or validates configuration. It centralizes configuration
// resolution, run directory locking, state store access, and structured
// logging setup so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
