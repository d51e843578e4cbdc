// Package cloning implements the CLONE stage: each submission's repository
// is cloned into the run directory, inspected, and its commit history
// checked against the hackathon window.
package cloning
