package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	ErrAcquireTimeout  = errors.New("resource acquire timed out")
	ErrLaunchFailed    = errors.New("resource launch failed")
	ErrInvalidCapacity = errors.New("pool capacity must be positive")
)

const (
	acquireOutcomeAcquired = "acquired"
	acquireOutcomeTimeout  = "timeout"
	acquireOutcomeLaunch   = "launch_failed"
)

type PoolOptions struct {
	Capacity int
	// LaunchRate caps driver launches per second. Zero disables throttling.
	LaunchRate  float64
	LaunchBurst int
}

type LaunchSpec struct {
	Config  domain.LaunchConfig
	Cookies []domain.Cookie
}

type PoolStats struct {
	Capacity int
	InUse    int
	Acquired int64
	Released int64
}

// Lease is exclusive ownership of a launched driver for one tenant.
type Lease struct {
	ID         string
	TenantID   domain.TenantID
	Driver     ports.Driver
	AcquiredAt time.Time

	once    sync.Once
	release func()
}

// Release closes the driver and returns the slot and tenant lock. It is safe
// to call more than once.
func (l *Lease) Release() {
	if l == nil || l.release == nil {
		return
	}
	l.once.Do(l.release)
}

// ResourcePool bounds live drivers to a fixed capacity and allows at most
// one lease per tenant at a time.
type ResourcePool struct {
	launcher ports.DriverLauncher
	capacity int
	slots    *semaphore.Weighted
	limiter  *rate.Limiter
	locks    *tenantLocks
	logger   zerolog.Logger
	metrics  ports.Metrics
	clock    ports.Clock

	inUse    atomic.Int64
	acquired atomic.Int64
	released atomic.Int64
}

func NewResourcePool(launcher ports.DriverLauncher, opts PoolOptions, logger zerolog.Logger, metrics ports.Metrics, clock ports.Clock) (*ResourcePool, error) {
	if launcher == nil {
		return nil, errors.New("driver launcher is nil")
	}
	if opts.Capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, opts.Capacity)
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	var limiter *rate.Limiter
	if opts.LaunchRate > 0 {
		burst := opts.LaunchBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.LaunchRate), burst)
	}

	return &ResourcePool{
		launcher: launcher,
		capacity: opts.Capacity,
		slots:    semaphore.NewWeighted(int64(opts.Capacity)),
		limiter:  limiter,
		locks:    newTenantLocks(),
		logger:   logger.With().Str("component", "resource_pool").Logger(),
		metrics:  metrics,
		clock:    clock,
	}, nil
}

// Acquire takes the tenant lock, then a global slot, then launches a driver
// configured for the tenant. The deadline of ctx bounds the whole wait.
func (p *ResourcePool) Acquire(ctx context.Context, tenantID domain.TenantID, spec LaunchSpec) (*Lease, error) {
	started := p.clock.Now()
	logger := p.logger.With().Str("tenant_id", string(tenantID)).Logger()

	unlock, err := p.locks.lock(ctx, tenantID)
	if err != nil {
		p.metrics.ObserveAcquire(acquireOutcomeTimeout, p.clock.Now().Sub(started))
		return nil, fmt.Errorf("%w: wait for tenant %q lock: %w", ErrAcquireTimeout, tenantID, err)
	}

	if err := p.slots.Acquire(ctx, 1); err != nil {
		unlock()
		p.metrics.ObserveAcquire(acquireOutcomeTimeout, p.clock.Now().Sub(started))
		return nil, fmt.Errorf("%w: wait for pool slot: %w", ErrAcquireTimeout, err)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.slots.Release(1)
			unlock()
			p.metrics.ObserveAcquire(acquireOutcomeTimeout, p.clock.Now().Sub(started))
			return nil, fmt.Errorf("%w: wait for launch rate: %w", ErrAcquireTimeout, err)
		}
	}

	driver, err := p.launcher.Launch(ctx, spec.Config)
	if err != nil {
		p.slots.Release(1)
		unlock()
		p.metrics.ObserveAcquire(acquireOutcomeLaunch, p.clock.Now().Sub(started))
		return nil, fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}

	if len(spec.Cookies) > 0 {
		if err := driver.RestoreCookies(ctx, spec.Cookies); err != nil {
			logger.Warn().Err(err).Int("cookies", len(spec.Cookies)).Msg("restore session cookies failed")
		}
	}

	lease := &Lease{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Driver:     driver,
		AcquiredAt: p.clock.Now(),
	}
	lease.release = func() {
		// The slot and the tenant lock are returned even if Close panics.
		defer func() {
			p.slots.Release(1)
			unlock()
			p.released.Add(1)
			p.metrics.SetInUse(int(p.inUse.Add(-1)))
			logger.Debug().Str("lease_id", lease.ID).Msg("lease released")
		}()
		if err := driver.Close(); err != nil {
			logger.Warn().Err(err).Str("lease_id", lease.ID).Msg("close driver failed")
		}
	}

	p.acquired.Add(1)
	p.metrics.SetInUse(int(p.inUse.Add(1)))
	p.metrics.ObserveAcquire(acquireOutcomeAcquired, lease.AcquiredAt.Sub(started))
	logger.Debug().Str("lease_id", lease.ID).Dur("wait", lease.AcquiredAt.Sub(started)).Msg("lease acquired")

	return lease, nil
}

func (p *ResourcePool) Release(lease *Lease) {
	lease.Release()
}

// Drain blocks until no lease is outstanding or ctx is done.
func (p *ResourcePool) Drain(ctx context.Context) error {
	if err := p.slots.Acquire(ctx, int64(p.capacity)); err != nil {
		return fmt.Errorf("drain resource pool: %w", err)
	}
	p.slots.Release(int64(p.capacity))
	return nil
}

func (p *ResourcePool) Stats() PoolStats {
	return PoolStats{
		Capacity: p.capacity,
		InUse:    int(p.inUse.Load()),
		Acquired: p.acquired.Load(),
		Released: p.released.Load(),
	}
}

type tenantLock struct {
	held chan struct{}
	refs int
}

// tenantLocks is a keyed mutex whose entries are dropped once no caller
// holds or waits on them.
type tenantLocks struct {
	mu      sync.Mutex
	entries map[domain.TenantID]*tenantLock
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{entries: map[domain.TenantID]*tenantLock{}}
}

func (l *tenantLocks) lock(ctx context.Context, id domain.TenantID) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &tenantLock{held: make(chan struct{}, 1)}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.held <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.held
				l.drop(id, entry)
			})
		}, nil
	case <-ctx.Done():
		l.drop(id, entry)
		return nil, ctx.Err()
	}
}

func (l *tenantLocks) drop(id domain.TenantID, entry *tenantLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, id)
	}
}

func (l *tenantLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
