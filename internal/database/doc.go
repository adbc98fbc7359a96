// Package database provides SQLite-based storage for uiprobe run history.
//
// Every verification run is stored as a JSON document together with the
// columns needed to list and compare runs without decoding it: target,
// scenario, status, start time and the digests of both screenshots.
//
// The database is a single file (uiprobe.db) under the XDG data directory,
// opened through the CGO-free modernc.org/sqlite driver.
package database
