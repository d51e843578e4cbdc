// Package config loads, normalizes, and validates hackreview configuration.
//
// It supplies repository defaults, reads TOML (or YAML) files, loads .env
// files, and honours credential environment variables such as
// ANTHROPIC_API_KEY and GEMINI_API_KEY. The Config type centralizes the
// column mapping, provider selection, hackathon window, scoring rubric,
// worker pool sizes, retry budget, and per-call timeouts.
//
// Always obtain settings through this package so downstream code receives
// trimmed values, canonical provider names, and clear validation errors.
package config
