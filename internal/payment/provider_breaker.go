package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	id "agegate/pkg/domain"
	"agegate/pkg/platform/circuit"
)

// ErrProcessorUnavailable is returned instead of calling the processor while
// its circuit is open.
var ErrProcessorUnavailable = errors.New("payment processor unavailable")

const defaultProbeInterval = 30 * time.Second

// BreakerProvider guards hold creation behind a circuit breaker. Only new
// holds are gated: capture and release always reach the processor, because an
// authorized hold must be resolved regardless of processor health, and their
// outcomes keep feeding the breaker. While open, one probe request per
// interval is let through to detect recovery.
type BreakerProvider struct {
	next    Provider
	breaker *circuit.Breaker

	mu            sync.Mutex
	lastProbe     time.Time
	probeInterval time.Duration
}

type BreakerOption func(*BreakerProvider)

func WithProbeInterval(d time.Duration) BreakerOption {
	return func(p *BreakerProvider) { p.probeInterval = d }
}

func WithBreaker(b *circuit.Breaker) BreakerOption {
	return func(p *BreakerProvider) { p.breaker = b }
}

func NewBreakerProvider(next Provider, opts ...BreakerOption) *BreakerProvider {
	p := &BreakerProvider{
		next:          next,
		breaker:       circuit.New("payment-processor"),
		probeInterval: defaultProbeInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// allowHold reports whether a new hold request may reach the processor.
func (p *BreakerProvider) allowHold() bool {
	if !p.breaker.IsOpen() {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if now.Sub(p.lastProbe) < p.probeInterval {
		return false
	}
	p.lastProbe = now
	return true
}

func (p *BreakerProvider) record(err error) {
	if err == nil {
		p.breaker.RecordSuccess()
		return
	}
	// The probe clock starts when the circuit opens, so the first probe
	// waits out a full interval.
	if _, change := p.breaker.RecordFailure(); change.Opened {
		p.mu.Lock()
		p.lastProbe = time.Now()
		p.mu.Unlock()
	}
}

func (p *BreakerProvider) CreateHold(ctx context.Context, amountCents int64, customerRef id.ReferenceID) (HoldResult, error) {
	if !p.allowHold() {
		return HoldResult{}, ErrProcessorUnavailable
	}
	result, err := p.next.CreateHold(ctx, amountCents, customerRef)
	p.record(err)
	return result, err
}

func (p *BreakerProvider) Capture(ctx context.Context, holdRef id.HoldRef) (CaptureResult, error) {
	result, err := p.next.Capture(ctx, holdRef)
	p.record(err)
	return result, err
}

func (p *BreakerProvider) Release(ctx context.Context, holdRef id.HoldRef) (ReleaseResult, error) {
	result, err := p.next.Release(ctx, holdRef)
	p.record(err)
	return result, err
}
