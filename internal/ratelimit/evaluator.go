package ratelimit

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Observation is the read-only view of a response that limiters score.
type Observation interface {
	// Status returns the HTTP status code.
	Status() int

	// Size returns the byte length of the response body.
	Size() int

	// Cached reports whether the response was served from a local cache.
	Cached() bool

	// RetryAfter returns the server-declared retry hint, or zero.
	RetryAfter() time.Duration
}

// Score is one observation's contribution toward a limit.
type Score struct {
	Contribution float64
	ForcedWait   time.Duration
}

// Evaluator scores observations for a single limit kind.
type Evaluator interface {
	Evaluate(obs Observation) Score
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(obs Observation) Score

// Evaluate calls f(obs).
func (f EvaluatorFunc) Evaluate(obs Observation) Score {
	return f(obs)
}

// Kind identifies a built-in evaluator.
type Kind string

const (
	KindRequests Kind = "requests"
	KindErrors   Kind = "errors"
	KindBytes    Kind = "bytes"
)

// ParseKind normalizes a kind name. Common aliases are accepted.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "requests", "request", "request-count", "request_count":
		return KindRequests, nil
	case "errors", "error", "error-count", "error_count":
		return KindErrors, nil
	case "bytes", "size", "byte-volume", "byte_volume":
		return KindBytes, nil
	default:
		return "", fmt.Errorf("unknown limit kind: %q", value)
	}
}

// Evaluator returns the built-in evaluator for the kind.
func (k Kind) Evaluator() (Evaluator, error) {
	switch k {
	case KindRequests:
		return RequestCount{}, nil
	case KindErrors:
		return ErrorCount{}, nil
	case KindBytes:
		return ByteVolume{}, nil
	default:
		return nil, fmt.Errorf("unknown limit kind: %q", string(k))
	}
}

// RequestCount contributes one per live response.
type RequestCount struct{}

func (RequestCount) Evaluate(obs Observation) Score {
	if obs == nil || obs.Cached() {
		return Score{}
	}
	return Score{Contribution: 1, ForcedWait: forcedWait(obs)}
}

// ErrorCount contributes one per live response whose status is not 200.
type ErrorCount struct{}

func (ErrorCount) Evaluate(obs Observation) Score {
	if obs == nil || obs.Cached() {
		return Score{}
	}
	score := Score{ForcedWait: forcedWait(obs)}
	if obs.Status() != http.StatusOK {
		score.Contribution = 1
	}
	return score
}

// ByteVolume contributes the body length of live responses.
type ByteVolume struct{}

func (ByteVolume) Evaluate(obs Observation) Score {
	if obs == nil || obs.Cached() {
		return Score{}
	}
	return Score{Contribution: float64(obs.Size()), ForcedWait: forcedWait(obs)}
}

// forcedWait honors a retry hint only on throttling statuses.
func forcedWait(obs Observation) time.Duration {
	switch obs.Status() {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
	default:
		return 0
	}
	wait := obs.RetryAfter()
	if wait < 0 {
		return 0
	}
	return wait
}
