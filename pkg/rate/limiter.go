package rate

import (
	"context"
	"sync"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/clock"
	"github.com/Borislavv/notion-widget-cache/pkg/config"
)

// DefaultIdentifier is used for the account-wide upstream quota.
const DefaultIdentifier = "default"

const (
	DefaultRegularLimit  = 3
	DefaultRegularWindow = time.Second
	DefaultBurstLimit    = 10
	DefaultBurstWindow   = 10 * time.Second
)

type Limiter interface {
	CanMakeRequest(identifier string) bool
	RecordRequest(identifier string)
	WaitForNextAvailable(ctx context.Context, identifier string) error
	Stats(identifier string) Stats
}

type Stats struct {
	RegularRequests    int  `json:"regularRequests"`
	MaxRegularRequests int  `json:"maxRegularRequests"`
	BurstRequests      int  `json:"burstRequests"`
	MaxBurstRequests   int  `json:"maxBurstRequests"`
	CanMakeRequest     bool `json:"canMakeRequest"`
}

type window struct {
	limit  int
	length time.Duration
	stamps []time.Time // ascending
}

// prune drops timestamps which are at least one window length old.
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.length)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

func (w *window) isFull() bool {
	return len(w.stamps) >= w.limit
}

type bucket struct {
	mu      sync.Mutex
	regular window
	burst   window
}

// SlidingWindow keeps two sliding windows of call timestamps per identifier.
type SlidingWindow struct {
	cfg   config.Rate
	clock clock.Clock

	mu      sync.RWMutex
	buckets map[string]*bucket
}

// NewLimiter creates a limiter, zero values in cfg are replaced with defaults.
func NewLimiter(cfg config.Rate, clk clock.Clock) *SlidingWindow {
	if cfg.RegularLimit <= 0 {
		cfg.RegularLimit = DefaultRegularLimit
	}
	if cfg.RegularWindow <= 0 {
		cfg.RegularWindow = DefaultRegularWindow
	}
	if cfg.BurstLimit <= 0 {
		cfg.BurstLimit = DefaultBurstLimit
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = DefaultBurstWindow
	}
	return &SlidingWindow{
		cfg:     cfg,
		clock:   clk,
		buckets: make(map[string]*bucket),
	}
}

func (l *SlidingWindow) bucket(identifier string) *bucket {
	if identifier == "" {
		identifier = DefaultIdentifier
	}

	l.mu.RLock()
	b, ok := l.buckets[identifier]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[identifier]; ok {
		return b
	}
	b = &bucket{
		regular: window{limit: l.cfg.RegularLimit, length: l.cfg.RegularWindow},
		burst:   window{limit: l.cfg.BurstLimit, length: l.cfg.BurstWindow},
	}
	l.buckets[identifier] = b
	return b
}

// CanMakeRequest reports whether both windows have room for one more call.
// It does not reserve the slot, see RecordRequest.
func (l *SlidingWindow) CanMakeRequest(identifier string) bool {
	b := l.bucket(identifier)
	now := l.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.regular.prune(now)
	b.burst.prune(now)
	return !b.regular.isFull() && !b.burst.isFull()
}

// RecordRequest must be called once per actual upstream call attempt.
func (l *SlidingWindow) RecordRequest(identifier string) {
	b := l.bucket(identifier)
	now := l.clock.Now()

	b.mu.Lock()
	b.regular.prune(now)
	b.burst.prune(now)
	b.regular.stamps = append(b.regular.stamps, now)
	b.burst.stamps = append(b.burst.stamps, now)
	b.mu.Unlock()
}

// WaitForNextAvailable blocks until the oldest call of a full regular window leaves it.
// It is a pacing aid only: the burst window is not consulted and concurrent callers
// may take the freed slot, so CanMakeRequest must be checked afterwards.
func (l *SlidingWindow) WaitForNextAvailable(ctx context.Context, identifier string) error {
	b := l.bucket(identifier)
	now := l.clock.Now()

	b.mu.Lock()
	b.regular.prune(now)
	if !b.regular.isFull() {
		b.mu.Unlock()
		return nil
	}
	delay := b.regular.stamps[0].Add(b.regular.length).Sub(now)
	b.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(delay):
		return nil
	}
}

func (l *SlidingWindow) Stats(identifier string) Stats {
	b := l.bucket(identifier)
	now := l.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.regular.prune(now)
	b.burst.prune(now)
	return Stats{
		RegularRequests:    len(b.regular.stamps),
		MaxRegularRequests: b.regular.limit,
		BurstRequests:      len(b.burst.stamps),
		MaxBurstRequests:   b.burst.limit,
		CanMakeRequest:     !b.regular.isFull() && !b.burst.isFull(),
	}
}
