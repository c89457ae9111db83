package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/coupon-ledger/internal/model"
	"github.com/fairyhunter13/coupon-ledger/pkg/database"
)

// RedemptionPoolInterface defines the database operations needed by RedemptionRepository.
type RedemptionPoolInterface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RedemptionRepository provides data access for redemptions and their audit entries.
// Both tables are append-only.
type RedemptionRepository struct {
	pool RedemptionPoolInterface
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// NewRedemptionRepositoryWithPool creates a new RedemptionRepository with a custom pool interface.
// This is primarily used for testing.
func NewRedemptionRepositoryWithPool(pool RedemptionPoolInterface) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// ListRedemptions retrieves a customer's redemptions of a coupon, newest first.
// On success, returns an empty slice (not nil) when there are none.
func (r *RedemptionRepository) ListRedemptions(ctx context.Context, customerID, couponID string) ([]model.Redemption, error) {
	query := `SELECT id, coupon_id, coupon_title, shop_id, customer_id, affiliate_id,
			affiliate_commission, customer_reward, created_at
		FROM redemptions
		WHERE customer_id = $1 AND coupon_id = $2
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, customerID, couponID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions of %s by %s: %w", couponID, customerID, err)
	}
	defer rows.Close()

	var items []model.Redemption
	for rows.Next() {
		var red model.Redemption
		if err := rows.Scan(
			&red.ID,
			&red.CouponID,
			&red.CouponTitle,
			&red.ShopID,
			&red.CustomerID,
			&red.AffiliateID,
			&red.AffiliateCommission,
			&red.CustomerReward,
			&red.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		items = append(items, red)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redemption rows: %w", err)
	}

	if items == nil {
		items = []model.Redemption{}
	}

	return items, nil
}

// insert inserts a redemption record within a transaction. The timestamp is
// assigned by the database.
func (r *RedemptionRepository) insert(ctx context.Context, tx database.TxQuerier, red model.Redemption) error {
	query := `INSERT INTO redemptions
		(id, coupon_id, coupon_title, shop_id, customer_id, affiliate_id, affiliate_commission, customer_reward)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		red.ID,
		red.CouponID,
		red.CouponTitle,
		red.ShopID,
		red.CustomerID,
		red.AffiliateID,
		red.AffiliateCommission,
		red.CustomerReward,
	)
	if err != nil {
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

// appendAudit inserts an audit log entry within a transaction.
func (r *RedemptionRepository) appendAudit(ctx context.Context, tx database.TxQuerier, entry model.AuditLogEntry) error {
	query := `INSERT INTO audit_log
		(id, redemption_id, category, beneficiary_id, beneficiary_name, amount)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.Exec(ctx, query,
		entry.ID,
		entry.RedemptionID,
		string(entry.Category),
		entry.BeneficiaryID,
		entry.BeneficiaryName,
		entry.Amount,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}
