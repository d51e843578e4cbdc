// Package state persists the outcome of every pipeline stage for every
// submission. It is the single source of truth for resume decisions: a
// clone or video on disk without a SUCCESS record here counts as absent.
//
// SQLiteStore keeps one table per stage in data/state.db (WAL journal with
// synchronous=FULL so a returned Put survives a crash). MemoryStore backs
// tests. Both keep only the latest record per (submission, stage).
package state
