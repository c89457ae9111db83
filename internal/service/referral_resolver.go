package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// ReferralMatch is a referrer eligible for the first-redemption bonus.
type ReferralMatch struct {
	Referrer *model.Account
	Referral *model.Referral
}

// ReferralResolver finds the pending referral a first redemption should reward.
type ReferralResolver struct{}

// Resolve returns the referrer and pending referral of customer, or nil when no
// bonus is due: the customer already redeemed, has no referrer, the referrer account
// is gone, there is no pending referral, or the referral names a different referrer.
// Must be called during the read phase of tx.
func (ReferralResolver) Resolve(ctx context.Context, tx *ledger.Tx, customer *model.Account) (*ReferralMatch, error) {
	if customer.HasRedeemedFirstCoupon || !customer.HasReferrer() {
		return nil, nil
	}

	referrer, err := tx.Account(ctx, *customer.ReferredBy)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Warn().
				Str("account_id", customer.ID).
				Str("referrer_id", *customer.ReferredBy).
				Msg("referrer account missing, skipping referral bonus")
			return nil, nil
		}
		return nil, fmt.Errorf("load referrer: %w", err)
	}

	referral, err := tx.PendingReferral(ctx, customer.ID)
	if err != nil {
		return nil, fmt.Errorf("find pending referral: %w", err)
	}
	if referral == nil {
		return nil, nil
	}

	if referral.ReferrerID != referrer.ID {
		log.Warn().
			Str("account_id", customer.ID).
			Str("referrer_id", referrer.ID).
			Str("referral_id", referral.ID).
			Str("referral_referrer_id", referral.ReferrerID).
			Msg("pending referral names a different referrer, skipping referral bonus")
		return nil, nil
	}

	return &ReferralMatch{Referrer: referrer, Referral: referral}, nil
}
