package httpx

import (
	"github.com/theOGognf/finagg/internal/ratelimit"
)

// Guard is a rate limit guard around Client.Get.
type Guard = ratelimit.Guard[Request, *Response]

// NewGuard wraps client.Get with one limiter per spec.
func NewGuard(name string, client *Client, specs []ratelimit.Spec, limiterOpts []ratelimit.LimiterOption, opts ...ratelimit.GuardOption) (*Guard, error) {
	limiters, err := ratelimit.BuildAll(specs, limiterOpts...)
	if err != nil {
		return nil, err
	}
	opts = append([]ratelimit.GuardOption{ratelimit.WithTarget(requestTarget)}, opts...)
	return ratelimit.NewGuard[Request, *Response](name, client.Get, limiters, opts...), nil
}

func requestTarget(req any) string {
	if r, ok := req.(Request); ok {
		return r.URL
	}
	return ""
}
