// Package reporting renders the REPORT stage and the run level artifacts.
//
// Every artifact is a pure function of the persisted stage records, so
// reports are rebuilt on each run instead of resumed. Per-project markdown
// is written by the stage handler; flags.md, summary.md and
// leaderboard.csv are written by Aggregate once the stage completes.
package reporting
