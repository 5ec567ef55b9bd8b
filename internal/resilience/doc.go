// Package resilience wraps outbound classifier calls with bounded retries,
// exponential backoff, and a circuit breaker so a degraded API fails fast
// instead of stalling a whole batch.
package resilience
