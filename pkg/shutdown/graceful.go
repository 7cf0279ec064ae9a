package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultGracefulTimeout = 10 * time.Second

var ErrShutdownTimeout = errors.New("graceful shutdown timed out")

type Gracefuller interface {
	Add(n int)
	Done()
}

// Graceful cancels the root context on SIGINT/SIGTERM and waits for registered services to call Done.
type Graceful struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewGraceful(ctx context.Context, cancel context.CancelFunc) *Graceful {
	return &Graceful{ctx: ctx, cancel: cancel, timeout: defaultGracefulTimeout}
}

func (g *Graceful) SetGracefulTimeout(timeout time.Duration) {
	g.timeout = timeout
}

func (g *Graceful) Add(n int) {
	g.wg.Add(n)
}

func (g *Graceful) Done() {
	g.wg.Done()
}

// ListenCancelAndAwait blocks until a signal arrives or the context is canceled,
// then waits up to the graceful timeout for every registered service.
func (g *Graceful) ListenCancelAndAwait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("[shutdown] %s signal received", sig)
	case <-g.ctx.Done():
		log.Info().Msg("[shutdown] context canceled")
	}
	g.cancel()

	doneCh := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		log.Info().Msg("[shutdown] all services have been stopped")
		return nil
	case <-time.After(g.timeout):
		return ErrShutdownTimeout
	}
}
