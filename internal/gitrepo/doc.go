// Package gitrepo wraps the git executable for cloning submission
// repositories and reading their commit history.
//
// Clone failures are classified with the services markers (not found,
// private, invalid URL, timeout, transient network errors) so the clone
// stage can record a meaningful error category and decide whether a retry
// is worthwhile. Summarize compares commit dates with the hackathon window
// to surface single-commit dumps and pre-existing projects.
package gitrepo
