package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-ledger/internal/metrics"
)

// ClickIncrementer bumps a coupon's click counter without a transaction.
type ClickIncrementer interface {
	IncrementClicks(ctx context.Context, couponID string) error
}

// ClickService records coupon clicks. Clicks are best effort and never fail the caller.
type ClickService struct {
	clicks ClickIncrementer
}

// NewClickService creates a new ClickService.
func NewClickService(clicks ClickIncrementer) *ClickService {
	return &ClickService{clicks: clicks}
}

// RecordClick increments the click counter of couponID and reports whether it stuck.
// It does not touch remaining uses and never conflicts with a redemption.
func (s *ClickService) RecordClick(ctx context.Context, couponID string) bool {
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		metrics.ClickFailuresTotal.Inc()
		return false
	}

	if err := s.clicks.IncrementClicks(ctx, couponID); err != nil {
		metrics.ClickFailuresTotal.Inc()
		log.Warn().Err(err).Str("coupon_id", couponID).Msg("failed to record click")
		return false
	}

	metrics.ClicksTotal.Inc()
	return true
}
