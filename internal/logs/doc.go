// Package logs reads the daemon's run log for the CLI.
//
// Last returns the final lines of a file with bounded memory and the offset
// where reading stopped; Follow polls from an offset and delivers appended
// lines until its context ends. Both tolerate the file not existing yet,
// which is the normal state before the first daemon run.
package logs
