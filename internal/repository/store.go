package repository

import (
	"context"

	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// Store groups the non-transactional lookups the services need.
type Store struct {
	coupons     *CouponRepository
	accounts    *AccountRepository
	redemptions *RedemptionRepository
}

// NewStore creates a Store over the given repositories.
func NewStore(coupons *CouponRepository, accounts *AccountRepository, redemptions *RedemptionRepository) *Store {
	return &Store{coupons: coupons, accounts: accounts, redemptions: redemptions}
}

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.accounts.GetAccount(ctx, id)
}

func (s *Store) ListRedemptions(ctx context.Context, customerID, couponID string) ([]model.Redemption, error) {
	return s.redemptions.ListRedemptions(ctx, customerID, couponID)
}

func (s *Store) IncrementClicks(ctx context.Context, couponID string) error {
	return s.coupons.IncrementClicks(ctx, couponID)
}
