package checkoutflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_EnsureIntentOnce(t *testing.T) {
	var calls int32
	s := NewSession(func(ctx context.Context) (Intent, error) {
		atomic.AddInt32(&calls, 1)
		return Intent{ExternalID: "tx1"}, nil
	}, nil)

	in, err := s.EnsureIntent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tx1", in.ExternalID)

	// second mount-effect invocation: no second intent created
	in2, err := s.EnsureIntent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tx1", in2.ExternalID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSession_RetryCreatesExactlyOneNewIntent(t *testing.T) {
	var calls int32
	s := NewSession(func(ctx context.Context) (Intent, error) {
		n := atomic.AddInt32(&calls, 1)
		return Intent{ExternalID: "tx" + string(rune('0'+n))}, nil
	}, nil)

	_, err := s.EnsureIntent(context.Background())
	require.NoError(t, err)

	in, err := s.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tx2", in.ExternalID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// and the new session state is once again single-shot
	_, err = s.EnsureIntent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestSession_FailureRetriesBounded(t *testing.T) {
	boom := errors.New("processor down")
	var calls int32
	s := NewSession(func(ctx context.Context) (Intent, error) {
		atomic.AddInt32(&calls, 1)
		return Intent{}, boom
	}, nil)

	for i := 0; i < DefaultMaxRetries; i++ {
		_, err := s.EnsureIntent(context.Background())
		assert.ErrorIs(t, err, boom)
	}

	// cap reached: surfaced as terminal, no further processor calls
	_, err := s.EnsureIntent(context.Background())
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, int32(DefaultMaxRetries), atomic.LoadInt32(&calls))

	// explicit user retry clears the counter
	_, err = s.Retry(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(DefaultMaxRetries+1), atomic.LoadInt32(&calls))
}

func TestSession_NotReadyIsNoOp(t *testing.T) {
	var calls int32
	s := NewSession(func(ctx context.Context) (Intent, error) {
		atomic.AddInt32(&calls, 1)
		return Intent{}, nil
	}, nil, WithReady(func() bool { return false }))

	_, err := s.EnsureIntent(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestSession_PollUntilApproved(t *testing.T) {
	var polls int32
	s := NewSession(nil, func(ctx context.Context, id string) (string, error) {
		if atomic.AddInt32(&polls, 1) < 3 {
			return StatusPending, nil
		}
		return StatusApproved, nil
	})
	s.PollInterval = 5 * time.Millisecond

	st, err := s.PollUntilTerminal(context.Background(), Intent{
		ExternalID: "tx1",
		ExpiresAt:  time.Now().Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, st)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(3))
}

func TestSession_PollSurvivesTransientErrors(t *testing.T) {
	var polls int32
	s := NewSession(nil, func(ctx context.Context, id string) (string, error) {
		if atomic.AddInt32(&polls, 1) == 1 {
			return "", errors.New("timeout")
		}
		return StatusRejected, nil
	})
	s.PollInterval = 5 * time.Millisecond

	st, err := s.PollUntilTerminal(context.Background(), Intent{
		ExternalID: "tx1",
		ExpiresAt:  time.Now().Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, st)
}

func TestSession_CountdownExpires(t *testing.T) {
	s := NewSession(nil, func(ctx context.Context, id string) (string, error) {
		return StatusPending, nil
	})
	s.PollInterval = 5 * time.Millisecond

	st, err := s.PollUntilTerminal(context.Background(), Intent{
		ExternalID: "tx1",
		ExpiresAt:  time.Now().Add(30 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, st)
}

func TestSession_PollStopsOnTeardown(t *testing.T) {
	s := NewSession(nil, func(ctx context.Context, id string) (string, error) {
		return StatusPending, nil
	})
	s.PollInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.PollUntilTerminal(ctx, Intent{
		ExternalID: "tx1",
		ExpiresAt:  time.Now().Add(time.Second),
	})
	assert.ErrorIs(t, err, context.Canceled)
}
