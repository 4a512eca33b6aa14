// Package payment is the hold manager: it authorizes, captures, and releases
// funds against an external processor with exactly-once semantics enforced by
// persisted state, never by trusting the processor's own duplicate rejection.
package payment

import (
	"context"

	id "agegate/pkg/domain"
)

//go:generate mockgen -source=provider.go -destination=mocks/provider.go -package=mocks Provider

// HoldResult is the processor's answer to a hold request.
type HoldResult struct {
	HoldRef id.HoldRef
	Status  string
}

// CaptureResult is the processor's answer to a capture request.
type CaptureResult struct {
	Status        string
	CapturedCents int64
}

// ReleaseResult is the processor's answer to a release request.
type ReleaseResult struct {
	Status string
}

// Provider is the external payment processor contract. The processor is
// assumed to reject duplicate capture/release on a finalized hold, but the
// service re-checks its own persisted state first and never relies on it.
type Provider interface {
	CreateHold(ctx context.Context, amountCents int64, customerRef id.ReferenceID) (HoldResult, error)
	Capture(ctx context.Context, holdRef id.HoldRef) (CaptureResult, error)
	Release(ctx context.Context, holdRef id.HoldRef) (ReleaseResult, error)
}
