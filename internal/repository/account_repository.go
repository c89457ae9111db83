package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
	"github.com/fairyhunter13/coupon-ledger/pkg/database"
)

const accountColumns = `id, display_name, credits, referred_by, has_redeemed_first_coupon, created_at`

// AccountRepository provides data access for accounts using pgx.
type AccountRepository struct {
	pool PoolInterface
}

// NewAccountRepository creates a new AccountRepository with the given pool.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// NewAccountRepositoryWithPool creates a new AccountRepository with a custom pool interface.
// This is primarily used for testing.
func NewAccountRepositoryWithPool(pool PoolInterface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.DisplayName,
		&a.Credits,
		&a.ReferredBy,
		&a.HasRedeemedFirstCoupon,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount retrieves an account without locking it.
// Returns ledger.ErrNotFound if the account doesn't exist.
func (r *AccountRepository) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return account, nil
}

// GetForUpdate retrieves an account with a row lock.
// Returns ledger.ErrNotFound if the account doesn't exist.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx database.TxQuerier, id string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	account, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get account for update %s: %w", id, err)
	}
	return account, nil
}

// credit adds amount to an account's balance.
func (r *AccountRepository) credit(ctx context.Context, tx database.TxQuerier, id string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("credit of %d to %s: %w", amount, id, ledger.ErrInvariant)
	}

	tag, err := tx.Exec(ctx, `UPDATE accounts SET credits = credits + $2 WHERE id = $1`, id, amount)
	if err != nil {
		return fmt.Errorf("credit account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit account %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// latchFirstRedemption marks the account as having redeemed a coupon. The flag never
// goes back to false.
func (r *AccountRepository) latchFirstRedemption(ctx context.Context, tx database.TxQuerier, id string) error {
	tag, err := tx.Exec(ctx, `UPDATE accounts SET has_redeemed_first_coupon = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("latch first redemption for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("latch first redemption for %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}
