// Package stageexec runs one stage's processing function over a set of
// items with per-item isolation, turning each outcome into a persisted
// stage record.
package stageexec
