// Package preflight provides readiness checks for the filesystem paths and
// external tools the daemon depends on.
//
// The daemon runs RunAll and CheckSystemDeps at start and logs every result.
// A failing check is a warning: the job tree and the engine report their own
// errors per file, so nothing here stops the daemon.
package preflight
