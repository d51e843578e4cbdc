// Package review talks to the LLM providers that judge submissions.
//
// Code review runs against anthropic, gemini, or openrouter; video analysis
// runs against gemini or is disabled with provider "none". Every call is a
// single attempt whose failure carries a services marker (AUTH, RATE_LIMIT,
// TIMEOUT, INVALID_RESPONSE), so the analysis stage decides what to retry.
package review
