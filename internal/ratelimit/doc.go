// Package ratelimit implements client-side throttling for outbound API
// getters. A Guard wraps a getter with one or more sliding-window Limiters
// that score every response (request count, error count, byte volume) and
// delay the next call until the window has room again.
package ratelimit
