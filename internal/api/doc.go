// Package api exposes the daemon over HTTP and provides the client the CLI
// uses to reach it.
//
// The server is built on echo. Uploads are written under a hidden name inside
// incoming and renamed into place once complete, so discovery never sees a
// partial file. Error responses carry a single "detail" field.
package api
