package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"agegate/internal/payment"
	"agegate/internal/payment/mocks"
	id "agegate/pkg/domain"
	"agegate/pkg/platform/circuit"
)

func TestBreakerProviderFailsFastWhenOpen(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockProvider(ctrl)
	provider := payment.NewBreakerProvider(next,
		payment.WithBreaker(circuit.New("test", circuit.WithFailureThreshold(2))),
		payment.WithProbeInterval(time.Hour),
	)
	ref := id.NewReferenceID("buyer")

	// Two failures open the circuit. The opening call itself still reached
	// the processor; everything after is rejected locally.
	next.EXPECT().
		CreateHold(gomock.Any(), int64(500), ref).
		Return(payment.HoldResult{}, errors.New("processor down")).
		Times(2)

	for range 2 {
		_, err := provider.CreateHold(context.Background(), 500, ref)
		require.Error(t, err)
	}

	_, err := provider.CreateHold(context.Background(), 500, ref)
	require.ErrorIs(t, err, payment.ErrProcessorUnavailable)
}

func TestBreakerProviderProbesAndRecovers(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockProvider(ctrl)
	provider := payment.NewBreakerProvider(next,
		payment.WithBreaker(circuit.New("test",
			circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))),
		payment.WithProbeInterval(0),
	)
	ref := id.NewReferenceID("buyer")

	next.EXPECT().
		CreateHold(gomock.Any(), int64(500), ref).
		Return(payment.HoldResult{}, errors.New("processor down"))

	_, err := provider.CreateHold(context.Background(), 500, ref)
	require.Error(t, err)

	// Zero probe interval lets the next request through as a probe; its
	// success closes the circuit again.
	next.EXPECT().
		CreateHold(gomock.Any(), int64(500), ref).
		Return(payment.HoldResult{HoldRef: "hold_ok"}, nil)

	result, err := provider.CreateHold(context.Background(), 500, ref)
	require.NoError(t, err)
	require.Equal(t, id.HoldRef("hold_ok"), result.HoldRef)
}

func TestBreakerProviderNeverGatesCaptureOrRelease(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockProvider(ctrl)
	breaker := circuit.New("test", circuit.WithFailureThreshold(1))
	provider := payment.NewBreakerProvider(next,
		payment.WithBreaker(breaker),
		payment.WithProbeInterval(time.Hour),
	)
	ref := id.NewReferenceID("buyer")

	next.EXPECT().
		CreateHold(gomock.Any(), int64(500), ref).
		Return(payment.HoldResult{}, errors.New("processor down"))
	_, err := provider.CreateHold(context.Background(), 500, ref)
	require.Error(t, err)
	require.True(t, breaker.IsOpen())

	// An already authorized hold must still be resolvable.
	next.EXPECT().
		Capture(gomock.Any(), id.HoldRef("hold_abc")).
		Return(payment.CaptureResult{Status: "captured"}, nil)
	_, err = provider.Capture(context.Background(), "hold_abc")
	require.NoError(t, err)

	next.EXPECT().
		Release(gomock.Any(), id.HoldRef("hold_def")).
		Return(payment.ReleaseResult{Status: "released"}, nil)
	_, err = provider.Release(context.Background(), "hold_def")
	require.NoError(t, err)
}
