package service

import "errors"

var (
	// ErrNotFound means the slug is unknown or the widget is disabled.
	// Posts returns it or a wrapped widget lookup failure, everything past the lookup degrades to fallback.
	ErrNotFound = errors.New("widget not found")

	ErrCredential   = errors.New("credential error")
	ErrUpstream     = errors.New("upstream error")
	ErrRateExceeded = errors.New("rate limit exceeded")
)

// Fallback reasons, used as the reason label of widget_fallbacks_total.
const (
	ReasonRateExceeded = "rate_exceeded"
	ReasonCredential   = "credential"
	ReasonUpstream     = "upstream"
)

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrRateExceeded):
		return ReasonRateExceeded
	case errors.Is(err, ErrCredential):
		return ReasonCredential
	default:
		return ReasonUpstream
	}
}
