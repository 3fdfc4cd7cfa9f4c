package service

import (
	"context"
	"sync"

	"github.com/waveline/crm-services/dispatcher/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateGovernor paces sends per channel across concurrent campaign runs.
// Waiters queue FIFO on the limiter's reservations, so no campaign can
// starve another on a shared channel.
type RateGovernor interface {
	// Acquire blocks until both the campaign's own pace and the channel
	// ceiling allow one more send, or ctx is done.
	Acquire(ctx context.Context, channelID, campaignID int64, perSecond float64) error

	// SetChannelCeiling registers the provider-level limit for a channel.
	SetChannelCeiling(channelID int64, perSecond float64)

	// ReleaseCampaign drops the per-campaign limiter once a run finishes.
	ReleaseCampaign(campaignID int64)
}

type governor struct {
	mu        sync.Mutex
	absMax    float64
	channels  map[int64]*rate.Limiter
	campaigns map[int64]*rate.Limiter
	logger    *zap.Logger
}

func NewRateGovernor(cfg *config.Config, logger *zap.Logger) RateGovernor {
	absMax := cfg.Governor.AbsoluteMax
	if absMax <= 0 {
		absMax = 20
	}

	return &governor{
		absMax:    absMax,
		channels:  make(map[int64]*rate.Limiter),
		campaigns: make(map[int64]*rate.Limiter),
		logger:    logger,
	}
}

func (g *governor) Acquire(ctx context.Context, channelID, campaignID int64, perSecond float64) error {
	campaignLimiter, channelLimiter := g.limitersFor(channelID, campaignID, perSecond)

	// The mutex is never held across these waits; a slow channel only blocks
	// callers targeting that channel.
	if err := campaignLimiter.Wait(ctx); err != nil {
		return err
	}

	return channelLimiter.Wait(ctx)
}

func (g *governor) limitersFor(channelID, campaignID int64, perSecond float64) (*rate.Limiter, *rate.Limiter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	channelLimiter, ok := g.channels[channelID]
	if !ok {
		channelLimiter = rate.NewLimiter(rate.Limit(g.absMax), 1)
		g.channels[channelID] = channelLimiter
	}

	effective := perSecond
	if effective <= 0 {
		effective = 1
	}
	if ceiling := float64(channelLimiter.Limit()); effective > ceiling {
		effective = ceiling
	}
	if effective > g.absMax {
		effective = g.absMax
	}

	campaignLimiter, ok := g.campaigns[campaignID]
	if !ok {
		campaignLimiter = rate.NewLimiter(rate.Limit(effective), 1)
		g.campaigns[campaignID] = campaignLimiter
	} else if campaignLimiter.Limit() != rate.Limit(effective) {
		campaignLimiter.SetLimit(rate.Limit(effective))
	}

	return campaignLimiter, channelLimiter
}

func (g *governor) SetChannelCeiling(channelID int64, perSecond float64) {
	if perSecond <= 0 || perSecond > g.absMax {
		perSecond = g.absMax
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if limiter, ok := g.channels[channelID]; ok {
		if limiter.Limit() != rate.Limit(perSecond) {
			limiter.SetLimit(rate.Limit(perSecond))
			g.logger.Debug("channel ceiling updated",
				zap.Int64("channelID", channelID),
				zap.Float64("perSecond", perSecond))
		}
		return
	}

	g.channels[channelID] = rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (g *governor) ReleaseCampaign(campaignID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.campaigns, campaignID)
}
