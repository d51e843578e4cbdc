// Package submission parses the hackathon submissions CSV.
//
// Columns are resolved from the [columns] configuration first and then from
// common header aliases. Each row becomes a Submission with a stable id,
// classified repository and video URLs, parsed team members, and a lateness
// category computed against the configured deadline. Structural problems
// (missing required columns, malformed rows, duplicate ids) are reported
// together in a ParseError, which callers treat as fatal.
package submission
