package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/waveline/crm-services/dispatcher/internal/config"
	"github.com/waveline/crm-services/dispatcher/internal/service"
	"go.uber.org/zap"
)

func newGovernor(absMax float64) service.RateGovernor {
	cfg := &config.Config{Governor: config.Governor{AbsoluteMax: absMax}}
	return service.NewRateGovernor(cfg, zap.NewNop())
}

func TestGovernor_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("paces acquisitions at the campaign rate", func(t *testing.T) {
		g := newGovernor(100)
		g.SetChannelCeiling(1, 100)

		// 10 msg/s: five extra tokens need roughly half a second.
		start := time.Now()
		for i := 0; i < 6; i++ {
			assert.NoError(t, g.Acquire(ctx, 1, 1, 10))
		}
		elapsed := time.Since(start)

		assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
		assert.Less(t, elapsed, 2*time.Second)
	})

	t.Run("channel ceiling caps a faster campaign", func(t *testing.T) {
		g := newGovernor(100)
		g.SetChannelCeiling(1, 5)

		// Campaign asks for 50/s but the channel allows 5/s.
		start := time.Now()
		for i := 0; i < 3; i++ {
			assert.NoError(t, g.Acquire(ctx, 1, 1, 50))
		}
		elapsed := time.Since(start)

		assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	})

	t.Run("shared channel is never exceeded by concurrent campaigns", func(t *testing.T) {
		g := newGovernor(100)
		g.SetChannelCeiling(1, 10)

		const acquisitions = 8

		var wg sync.WaitGroup
		start := time.Now()
		for campaign := int64(1); campaign <= 2; campaign++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				for i := 0; i < acquisitions/2; i++ {
					assert.NoError(t, g.Acquire(ctx, 1, id, 10))
				}
			}(campaign)
		}
		wg.Wait()
		elapsed := time.Since(start)

		// 8 sends through a 10/s channel need at least ~0.7s past the burst.
		assert.GreaterOrEqual(t, elapsed, 600*time.Millisecond)
	})

	t.Run("absolute maximum caps everything", func(t *testing.T) {
		g := newGovernor(2)

		start := time.Now()
		for i := 0; i < 3; i++ {
			assert.NoError(t, g.Acquire(ctx, 9, 9, 50))
		}
		elapsed := time.Since(start)

		// 2/s absolute max: two extra tokens need about a second.
		assert.GreaterOrEqual(t, elapsed, 800*time.Millisecond)
	})

	t.Run("cancelled context unblocks a waiter", func(t *testing.T) {
		g := newGovernor(100)
		g.SetChannelCeiling(1, 1)

		assert.NoError(t, g.Acquire(ctx, 1, 1, 1))

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		err := g.Acquire(waitCtx, 1, 1, 1)
		assert.Error(t, err)
	})

	t.Run("released campaign starts fresh on the next run", func(t *testing.T) {
		g := newGovernor(100)
		g.SetChannelCeiling(1, 100)

		assert.NoError(t, g.Acquire(ctx, 1, 5, 1))
		g.ReleaseCampaign(5)

		// A fresh limiter has a full burst token; no wait expected.
		start := time.Now()
		assert.NoError(t, g.Acquire(ctx, 1, 5, 1))
		assert.Less(t, time.Since(start), 500*time.Millisecond)
	})
}
