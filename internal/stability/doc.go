// Package stability decides when a file dropped into the incoming directory
// has finished being written.
//
// A file is stable once its modification time is older than the debounce
// window and its size matched on two consecutive observations. Records are
// created on first sight and removed as soon as the file is declared stable,
// so the detector only holds state for files still being watched.
package stability
