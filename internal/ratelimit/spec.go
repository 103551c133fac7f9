package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// Spec describes one limit: a kind, a ceiling within a window, and an
// optional safety buffer that permanently lowers the ceiling.
type Spec struct {
	Kind    Kind          `mapstructure:"kind" json:"kind" yaml:"kind"`
	Ceiling float64       `mapstructure:"ceiling" json:"ceiling" yaml:"ceiling"`
	Window  time.Duration `mapstructure:"window" json:"window" yaml:"window"`
	Buffer  float64       `mapstructure:"buffer" json:"buffer,omitempty" yaml:"buffer,omitempty"`
}

// Requests is shorthand for a request-count spec.
func Requests(ceiling float64, window time.Duration) Spec {
	return Spec{Kind: KindRequests, Ceiling: ceiling, Window: window}
}

// Errors is shorthand for an error-count spec.
func Errors(ceiling float64, window time.Duration) Spec {
	return Spec{Kind: KindErrors, Ceiling: ceiling, Window: window}
}

// Bytes is shorthand for a byte-volume spec.
func Bytes(ceiling float64, window time.Duration) Spec {
	return Spec{Kind: KindBytes, Ceiling: ceiling, Window: window}
}

// WithBuffer returns a copy of the spec with the given buffer fraction.
func (s Spec) WithBuffer(buffer float64) Spec {
	s.Buffer = buffer
	return s
}

// Validate checks the spec's numeric bounds.
func (s Spec) Validate() error {
	if _, err := s.Kind.Evaluator(); err != nil {
		return err
	}
	if s.Ceiling <= 0 {
		return fmt.Errorf("%s limit: ceiling must be positive", s.Kind)
	}
	if s.Window <= 0 {
		return fmt.Errorf("%s limit: window must be positive", s.Kind)
	}
	if s.Buffer < 0 || s.Buffer >= 1 {
		return fmt.Errorf("%s limit: buffer must be in [0, 1)", s.Kind)
	}
	return nil
}

// EffectiveCeiling is the ceiling lowered by the buffer fraction.
func (s Spec) EffectiveCeiling() float64 {
	return s.Ceiling * (1 - s.Buffer)
}

// Build constructs a limiter for the spec.
func (s Spec) Build(opts ...LimiterOption) (*Limiter, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	evaluator, err := s.Kind.Evaluator()
	if err != nil {
		return nil, err
	}
	return NewLimiter(evaluator, s, opts...)
}

// BuildAll constructs one limiter per spec, in order.
func BuildAll(specs []Spec, opts ...LimiterOption) ([]*Limiter, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one limit is required")
	}
	limiters := make([]*Limiter, 0, len(specs))
	for _, spec := range specs {
		limiter, err := spec.Build(opts...)
		if err != nil {
			return nil, err
		}
		limiters = append(limiters, limiter)
	}
	return limiters, nil
}
