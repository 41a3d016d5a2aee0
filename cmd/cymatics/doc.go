// Package main hosts the cymatics CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground and
// translates the remaining invocations into HTTP calls against it: status,
// history, uploads and engine unloads. It centralizes configuration
// resolution and API address discovery so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
