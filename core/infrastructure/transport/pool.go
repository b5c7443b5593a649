package transport

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/carlosrabelo/arava/core/domain/ports"
	"github.com/carlosrabelo/arava/core/infrastructure/metrics"
)

// DefaultPoolSize bounds concurrent device sessions per process.
const DefaultPoolSize = 50

// Pool serializes access to a bounded number of concurrent sessions.
// Every session borrows one slot for its whole lifetime; the slot is
// released on every exit path.
type Pool struct {
	sem     *semaphore.Weighted
	size    int64
	log     *zap.Logger
	metrics *metrics.Metrics

	degradeWarned sync.Map

	// newDriver is swapped in tests to avoid real network dials.
	newDriver func(params DialParams) ports.SessionDriver
}

// NewPool builds a pool of the given size; zero or negative means the
// default.
func NewPool(size int, log *zap.Logger, m *metrics.Metrics) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		sem:       semaphore.NewWeighted(int64(size)),
		size:      int64(size),
		log:       log,
		metrics:   m,
		newDriver: defaultDriver,
	}
}

func defaultDriver(params DialParams) ports.SessionDriver {
	if params.Transport == TransportTelnet {
		return NewTelnetDriver(params)
	}
	return NewSSHDriver(params)
}

// Size reports the configured slot count.
func (p *Pool) Size() int {
	return int(p.size)
}

// WithSession acquires a slot, opens a session and hands it to fn. The
// slot and session are released no matter how fn returns. Acquisition
// and open both honor context cancellation.
func (p *Pool) WithSession(ctx context.Context, params DialParams, fn func(ctx context.Context, session ports.SessionDriver) error) error {
	p.warnUnknownVendor(params)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire session slot for %s: %w", params.Host, err)
	}
	defer p.sem.Release(1)

	p.metrics.SessionStarted()
	defer p.metrics.SessionEnded()

	session := p.newDriver(params)
	if err := session.Open(ctx); err != nil {
		p.metrics.SessionOpen("failure")
		p.log.Warn("session open failed",
			zap.String("host", params.Host),
			zap.String("transport", params.Transport),
			zap.Error(err))
		return fmt.Errorf("open session to %s: %w", params.Host, err)
	}
	p.metrics.SessionOpen("success")
	defer session.Close()

	p.log.Debug("session opened",
		zap.String("host", params.Host),
		zap.String("transport", params.Transport))
	return fn(ctx, session)
}

// warnUnknownVendor logs once per unrecognized brand when a session
// degrades to the generic dialect.
func (p *Pool) warnUnknownVendor(params DialParams) {
	if SelectVariant(params.Brand, params.Platform) != VariantGeneric {
		return
	}
	key := params.Brand + "/" + params.Platform
	if _, loaded := p.degradeWarned.LoadOrStore(key, struct{}{}); !loaded {
		p.log.Warn("no vendor profile, using generic session dialect",
			zap.String("brand", params.Brand),
			zap.String("platform", params.Platform))
	}
}
