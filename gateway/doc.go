// Package gateway presents every configured LLM backend behind a single
// streaming Send call. It resolves credentials, picks a provider in a fixed
// priority order at call start, retries transient connection failures with
// exponential backoff, and feeds token usage into the pricing tables. Once a
// provider accepts a request there is no mid-stream fallback.
package gateway
