package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
	"github.com/fairyhunter13/coupon-ledger/pkg/database"
)

// ReferralRepository provides data access for referrals. Every method runs inside
// a ledger transaction.
type ReferralRepository struct{}

// NewReferralRepository creates a new ReferralRepository.
func NewReferralRepository() *ReferralRepository {
	return &ReferralRepository{}
}

// FindPendingForUpdate locks the pending referral of referredID.
// Returns ledger.ErrNotFound if there is none.
func (r *ReferralRepository) FindPendingForUpdate(ctx context.Context, tx database.TxQuerier, referredID string) (*model.Referral, error) {
	query := `SELECT id, referrer_id, referred_id, status, created_at, rewarded_at
		FROM referrals
		WHERE referred_id = $1 AND status = 'pending'
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE`

	var ref model.Referral
	err := tx.QueryRow(ctx, query, referredID).Scan(
		&ref.ID,
		&ref.ReferrerID,
		&ref.ReferredID,
		&ref.Status,
		&ref.CreatedAt,
		&ref.RewardedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("find pending referral for %s: %w", referredID, err)
	}
	return &ref, nil
}

// markRewarded moves a referral from pending to rewarded.
// Returns ledger.ErrConflict if the referral is no longer pending.
func (r *ReferralRepository) markRewarded(ctx context.Context, tx database.TxQuerier, id string) error {
	query := `UPDATE referrals SET status = 'rewarded', rewarded_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark referral %s rewarded: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("referral %s is not pending: %w", id, ledger.ErrConflict)
	}
	return nil
}
