package proof

import (
	"context"
	"sync"

	"agegate/pkg/platform/sentinel"

	"github.com/google/uuid"
)

// Anchor is the external ledger-anchor contract. The real anchoring chain is a
// black box; only store/retrieve matter here.
type Anchor interface {
	Store(ctx context.Context, hash string) (anchorRef string, err error)
	Retrieve(ctx context.Context, anchorRef string) (ProofMetadata, error)
}

// ProofMetadata is what an anchor lookup returns.
type ProofMetadata struct {
	Hash      string `json:"hash"`
	AnchorRef string `json:"anchor_ref"`
}

// FakeAnchor is an injected anchor stand-in with instance-scoped state.
type FakeAnchor struct {
	mu      sync.Mutex
	anchors map[string]string // anchorRef -> hash
}

func NewFakeAnchor() *FakeAnchor {
	return &FakeAnchor{anchors: make(map[string]string)}
}

func (a *FakeAnchor) Store(_ context.Context, hash string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ref := "anchor_" + uuid.NewString()
	a.anchors[ref] = hash
	return ref, nil
}

func (a *FakeAnchor) Retrieve(_ context.Context, anchorRef string) (ProofMetadata, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	hash, ok := a.anchors[anchorRef]
	if !ok {
		return ProofMetadata{}, sentinel.ErrNotFound
	}
	return ProofMetadata{Hash: hash, AnchorRef: anchorRef}, nil
}
