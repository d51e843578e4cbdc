// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The download stage uses Prober.Duration to confirm that a fetched file is
// a playable video and to decide whether it must be trimmed before upload.
package ffprobe
