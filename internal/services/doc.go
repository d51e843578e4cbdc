// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp submission IDs, stage names, and run
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and the mapping from
//     those markers to the failure categories persisted on stage records.
//   - Transience classification and Retry-After hints consumed by the retry
//     loop.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
