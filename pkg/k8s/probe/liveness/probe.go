package liveness

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 5 * time.Second

// Service is anything the probe watches.
type Service interface {
	IsAlive(ctx context.Context) bool
}

type Prober interface {
	Watch(services ...Service)
	IsAlive() bool
}

// Probe is alive while every watched service answers true within the timeout.
type Probe struct {
	timeout time.Duration

	mu       sync.RWMutex
	services []Service
}

func NewProbe(timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Probe{timeout: timeout}
}

func (p *Probe) Watch(services ...Service) {
	p.mu.Lock()
	p.services = append(p.services, services...)
	p.mu.Unlock()
}

func (p *Probe) IsAlive() bool {
	p.mu.RLock()
	services := p.services
	p.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	for _, service := range services {
		aliveCh := make(chan bool, 1)
		go func(s Service) { aliveCh <- s.IsAlive(ctx) }(service)

		select {
		case <-ctx.Done():
			log.Warn().Msgf("[probe] service did not answer within %s", p.timeout)
			return false
		case alive := <-aliveCh:
			if !alive {
				return false
			}
		}
	}
	return true
}
