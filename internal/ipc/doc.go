// Package ipc exposes the running daemon over JSON-RPC on a Unix socket and
// ships the client used by the CLI.
//
// The CLI is a second popup front-end: it labels the active tab, asks the
// daemon to check the current post and reads back the cached analysis.
package ipc
