package rate

import "errors"

var (
	// ErrRateLimited is returned when a window budget is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures to the counter backend.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
