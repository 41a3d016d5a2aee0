// Package version carries the build version, overridable with
// -ldflags "-X cymatics/internal/version.Version=...".
package version

// Version is the release version of the binary.
var Version = "0.1.0"
