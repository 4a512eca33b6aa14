package payment

import (
	"context"
	"fmt"
	"sync"

	id "agegate/pkg/domain"
	"agegate/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// FakeProvider is an in-process processor stand-in. State is scoped to the
// instance, not the package, so parallel tests and dev runs never share holds.
type FakeProvider struct {
	mu    sync.Mutex
	holds map[id.HoldRef]string // holdRef -> status
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{holds: make(map[id.HoldRef]string)}
}

func (p *FakeProvider) CreateHold(_ context.Context, amountCents int64, _ id.ReferenceID) (HoldResult, error) {
	if amountCents <= 0 {
		return HoldResult{}, fmt.Errorf("fake processor: non-positive amount")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ref := id.HoldRef("hold_" + uuid.NewString())
	p.holds[ref] = "requires_capture"
	return HoldResult{HoldRef: ref, Status: "requires_capture"}, nil
}

func (p *FakeProvider) Capture(_ context.Context, holdRef id.HoldRef) (CaptureResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.holds[holdRef]
	if !ok {
		return CaptureResult{}, sentinel.ErrNotFound
	}
	if status != "requires_capture" {
		return CaptureResult{}, fmt.Errorf("fake processor: hold %s already %s: %w", holdRef, status, sentinel.ErrInvalidState)
	}
	p.holds[holdRef] = "captured"
	return CaptureResult{Status: "captured"}, nil
}

func (p *FakeProvider) Release(_ context.Context, holdRef id.HoldRef) (ReleaseResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	status, ok := p.holds[holdRef]
	if !ok {
		return ReleaseResult{}, sentinel.ErrNotFound
	}
	if status != "requires_capture" {
		return ReleaseResult{}, fmt.Errorf("fake processor: hold %s already %s: %w", holdRef, status, sentinel.ErrInvalidState)
	}
	p.holds[holdRef] = "released"
	return ReleaseResult{Status: "released"}, nil
}

// CaptureCount reports how many holds reached captured state. Test hook.
func (p *FakeProvider) CaptureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, status := range p.holds {
		if status == "captured" {
			n++
		}
	}
	return n
}
