// Package storage persists index builds in SQLite.
//
// Every full indexing run writes into its own build. Fragments and their
// embeddings are tagged with the build ID, and queries only ever read the
// build referenced by the single-row active_build table. FinishBuild flips
// that pointer and removes older builds in one transaction, so readers see
// either the previous index or the new one, never a partial mix. FailBuild
// deletes whatever a failed run managed to write.
//
// # Tables
//
//   - builds: one row per run with its status (building, ready, failed)
//   - active_build: pointer to the build serving queries
//   - fragments: indexed text with source metadata and build ordinal
//   - embeddings: little-endian float32 vectors keyed by fragment
//
// # Build Tags
//
// The default build uses modernc.org/sqlite. Building with the sqlite_cgo tag
// switches to github.com/mattn/go-sqlite3. Similarity is computed in Go in
// both modes.
package storage
