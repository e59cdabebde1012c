package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_Wait_OnFailure(t *testing.T) {
	config := auth.TimingConfig{
		BaseDelayMs:    100,
		RandomDelayMs:  50,
		DelayOnSuccess: false,
	}

	timing := auth.NewTimingDelay(config)
	startTime := time.Now()

	timing.Wait(context.Background(), false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}

func TestTimingDelay_Wait_OnSuccess_NoDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100, RandomDelayMs: 50})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.Less(t, time.Since(startTime), 10*time.Millisecond)
}

func TestTimingDelay_Wait_OnSuccess_WithDelay(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100, DelayOnSuccess: true})
	startTime := time.Now()

	timing.Wait(context.Background(), true)

	assert.GreaterOrEqual(t, time.Since(startTime), 100*time.Millisecond)
}

func TestTimingDelay_WaitFrom_AdjustsForElapsedTime(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 100})
	startTime := time.Now()

	// Simulate a credential check that already took some time
	time.Sleep(50 * time.Millisecond)

	timing.WaitFrom(context.Background(), startTime, false)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 140*time.Millisecond)
}

func TestTimingDelay_WaitFrom_NoWaitIfAlreadyExceeded(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 50})
	startTime := time.Now().Add(-100 * time.Millisecond)

	before := time.Now()
	timing.WaitFrom(context.Background(), startTime, false)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_Wait_ContextCancelled(t *testing.T) {
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 5000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	startTime := time.Now()
	timing.Wait(ctx, false)

	assert.Less(t, time.Since(startTime), 50*time.Millisecond)
}

func TestTimingDelay_NilIsNoop(t *testing.T) {
	var timing *auth.TimingDelay
	assert.NotPanics(t, func() {
		timing.Wait(context.Background(), false)
	})
}
