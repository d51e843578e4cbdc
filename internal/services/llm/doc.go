// Package llm provides the HTTP plumbing shared by the review providers.
//
// # Entry Points
//
// NewClient: construct a client with a per-request timeout.
// Client.PostJSON / Client.Do: send one request and classify the outcome.
// Client.Chat: OpenAI-compatible chat completion (used for OpenRouter).
// DecodeLLMJSON: decode model output that may be fenced or wrapped in prose.
//
// # Error Classification
//
// Every failure is wrapped with a services marker so the stage executor can
// record a category: 401/403 become ErrAuth, 429, 529 and other 5xx become
// ErrRateLimit, 408/504 and network timeouts become ErrTimeout, and payloads
// that cannot be interpreted become ErrInvalidResponse. Retry-After headers
// are surfaced through StatusError.RetryAfter.
//
// # Retry Behaviour
//
// The client never retries. Callers wrap calls in retry.Do so the attempt
// budget is shared with the rest of the pipeline and counted on the record.
package llm
