package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// TxBeginner defines the interface for beginning transactions.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// ParseIsolation maps a config value to a pgx isolation level.
func ParseIsolation(level string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "serializable":
		return pgx.Serializable, nil
	case "repeatable_read", "repeatable read":
		return pgx.RepeatableRead, nil
	case "read_committed", "read committed":
		return pgx.ReadCommitted, nil
	default:
		return "", fmt.Errorf("unsupported isolation level %q", level)
	}
}

// LedgerBackend runs ledger transactions against PostgreSQL. Every read takes a row
// lock, so concurrent redemptions of the same coupon serialize on the coupon row.
type LedgerBackend struct {
	pool        TxBeginner
	isolation   pgx.TxIsoLevel
	coupons     *CouponRepository
	accounts    *AccountRepository
	referrals   *ReferralRepository
	redemptions *RedemptionRepository
}

// NewLedgerBackend creates a LedgerBackend over the given repositories.
func NewLedgerBackend(pool TxBeginner, isolation pgx.TxIsoLevel, coupons *CouponRepository, accounts *AccountRepository, referrals *ReferralRepository, redemptions *RedemptionRepository) *LedgerBackend {
	return &LedgerBackend{
		pool:        pool,
		isolation:   isolation,
		coupons:     coupons,
		accounts:    accounts,
		referrals:   referrals,
		redemptions: redemptions,
	}
}

// Begin opens a database transaction.
func (b *LedgerBackend) Begin(ctx context.Context) (ledger.Session, error) {
	tx, err := b.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: b.isolation})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", mapTxError(err))
	}
	return &pgSession{backend: b, tx: tx}, nil
}

type pgSession struct {
	backend *LedgerBackend
	tx      pgx.Tx
}

func (s *pgSession) GetCoupon(ctx context.Context, id string) (*model.Coupon, error) {
	c, err := s.backend.coupons.GetForUpdate(ctx, s.tx, id)
	return c, mapTxError(err)
}

func (s *pgSession) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	a, err := s.backend.accounts.GetForUpdate(ctx, s.tx, id)
	return a, mapTxError(err)
}

func (s *pgSession) FindPendingReferral(ctx context.Context, referredID string) (*model.Referral, error) {
	r, err := s.backend.referrals.FindPendingForUpdate(ctx, s.tx, referredID)
	return r, mapTxError(err)
}

func (s *pgSession) Apply(ctx context.Context, m ledger.Mutation) error {
	var err error
	switch m := m.(type) {
	case ledger.DecrementUses:
		err = s.backend.coupons.decrementUses(ctx, s.tx, m.CouponID)
	case ledger.Credit:
		err = s.backend.accounts.credit(ctx, s.tx, m.AccountID, m.Amount)
	case ledger.LatchFirstRedemption:
		err = s.backend.accounts.latchFirstRedemption(ctx, s.tx, m.AccountID)
	case ledger.RewardReferral:
		err = s.backend.referrals.markRewarded(ctx, s.tx, m.ReferralID)
	case ledger.AppendAudit:
		err = s.backend.redemptions.appendAudit(ctx, s.tx, m.Entry)
	case ledger.InsertRedemption:
		err = s.backend.redemptions.insert(ctx, s.tx, m.Redemption)
	default:
		err = fmt.Errorf("unsupported mutation %T", m)
	}
	return mapTxError(err)
}

func (s *pgSession) Commit(ctx context.Context) error {
	return mapTxError(s.tx.Commit(ctx))
}

func (s *pgSession) Rollback(ctx context.Context) error {
	err := s.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// mapTxError turns serialization failures and deadlocks into ledger.ErrConflict.
func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %w", pgErr.Message, ledger.ErrConflict)
		}
	}
	return err
}
