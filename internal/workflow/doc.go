// Package workflow advances submissions through the review pipeline.
//
// The Manager parses the submissions CSV, then runs the per-item stages
// (clone, download, analyze, report) in dependency order. For every stage it
// marks items whose upstream record is not SUCCESS as SKIPPED, asks the
// resume planner which candidates still need work, prepares the stage
// handler only when there is work, and hands the items to the stage
// executor. After the report stage it renders the aggregate reports and
// returns a RunSummary with per-stage counts, flags, and the run outcome.
//
// The state store is the only record of what has been done. A second run
// over the same output directory reuses every SUCCESS record and performs
// no clone, download, or LLM work for them.
//
// Add new stages by extending StageSet and state.Stages; this package is the
// authoritative home for the transition rules between them.
package workflow
