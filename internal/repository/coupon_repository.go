package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
	"github.com/fairyhunter13/coupon-ledger/pkg/database"
)

// PoolInterface defines the database operations needed by repositories.
// This allows for easier testing with mocks.
type PoolInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const couponColumns = `id, shop_id, title, remaining_uses, expires_at, valid_for_days,
	affiliate_commission, customer_reward, clicks, created_at`

// CouponRepository provides data access for coupons using pgx.
type CouponRepository struct {
	pool PoolInterface
}

// NewCouponRepository creates a new CouponRepository with the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// NewCouponRepositoryWithPool creates a new CouponRepository with a custom pool interface.
// This is primarily used for testing.
func NewCouponRepositoryWithPool(pool PoolInterface) *CouponRepository {
	return &CouponRepository{pool: pool}
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(
		&c.ID,
		&c.ShopID,
		&c.Title,
		&c.RemainingUses,
		&c.ExpiresAt,
		&c.ValidForDays,
		&c.AffiliateCommission,
		&c.CustomerReward,
		&c.Clicks,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetForUpdate retrieves a coupon with a row lock (SELECT FOR UPDATE).
// This locks the row until the transaction completes.
// Returns ledger.ErrNotFound if the coupon doesn't exist.
func (r *CouponRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id string) (*model.Coupon, error) {
	query := `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1 FOR UPDATE`

	coupon, err := scanCoupon(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get coupon for update %s: %w", id, err)
	}
	return coupon, nil
}

// decrementUses takes one use off a coupon.
// Must be called within a transaction after locking the row. The guard on
// remaining_uses turns a would-be negative counter into ledger.ErrInvariant.
func (r *CouponRepository) decrementUses(ctx context.Context, tx database.TxQuerier, id string) error {
	query := `UPDATE coupons SET remaining_uses = remaining_uses - 1 WHERE id = $1 AND remaining_uses > 0`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("decrement uses for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("coupon %s has no uses left: %w", id, ledger.ErrInvariant)
	}
	return nil
}

// IncrementClicks bumps the click counter outside any transaction.
// Returns ledger.ErrNotFound if the coupon doesn't exist.
func (r *CouponRepository) IncrementClicks(ctx context.Context, id string) error {
	query := `UPDATE coupons SET clicks = clicks + 1 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment clicks for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrNotFound
	}
	return nil
}
