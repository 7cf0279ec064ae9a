package metrics

import "time"

// Nop discards everything, used when metrics are disabled and in tests.
type Nop struct{}

func (Nop) IncTotal(string, string, string)                   {}
func (Nop) IncStatus(string, string, string)                  {}
func (Nop) ObserveResponseTime(string, string, time.Duration) {}
func (Nop) IncCacheLookup(string, string)                     {}
func (Nop) IncCacheBackendError(string)                       {}
func (Nop) IncUpstreamCall(string)                            {}
func (Nop) IncFallback(string)                                {}
