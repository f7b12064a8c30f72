package model

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures so callers can tell them apart.
type Kind int

const (
	KindUnknown Kind = iota
	KindUpstreamTimeout
	KindUpstreamRateLimitExhausted
	KindUpstreamFailed
	KindRateLimited
	KindInvalidArgument
	KindCacheUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUpstreamTimeout:
		return "upstream_timeout"
	case KindUpstreamRateLimitExhausted:
		return "upstream_rate_limit_exhausted"
	case KindUpstreamFailed:
		return "upstream_failed"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindCacheUnavailable:
		return "cache_unavailable"
	default:
		return "unknown"
	}
}

// IsUpstream reports whether the kind describes an upstream outage.
func (k Kind) IsUpstream() bool {
	return k == KindUpstreamTimeout || k == KindUpstreamRateLimitExhausted || k == KindUpstreamFailed
}

// Sentinels for errors.Is checks against a Kind.
var (
	ErrUpstreamTimeout            = &Error{Kind: KindUpstreamTimeout}
	ErrUpstreamRateLimitExhausted = &Error{Kind: KindUpstreamRateLimitExhausted}
	ErrUpstreamFailed             = &Error{Kind: KindUpstreamFailed}
	ErrRateLimited                = &Error{Kind: KindRateLimited}
	ErrInvalidArgument            = &Error{Kind: KindInvalidArgument}
	ErrCacheUnavailable           = &Error{Kind: KindCacheUnavailable}
)

// Error is a classified failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string // e.g. "GET /api/v3/klines"
	Err  error  // underlying cause, may be nil
}

// NewError creates a classified error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates a classified error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
