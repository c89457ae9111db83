// Package ledger provides the transactional store contract used by the redemption engine.
//
// A transaction has two phases. During the read phase the caller loads every record it
// needs; calling BeginWrites closes the read phase for good and hands out the only value
// that can stage mutations. Staged mutations are applied in order at commit, so a backend
// never sees a write before the transaction's reads are complete.
package ledger

import (
	"context"
	"errors"

	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

var (
	// ErrNotFound is returned by every backend when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict signals that a concurrent transaction touched the read set.
	// Transactions failing with ErrConflict are safe to retry.
	ErrConflict = errors.New("transaction conflict")

	// ErrReadPhaseClosed is returned when a read is attempted after BeginWrites.
	ErrReadPhaseClosed = errors.New("read attempted after write phase began")

	// ErrWritePhaseClosed is returned when a mutation is staged on a finished transaction.
	ErrWritePhaseClosed = errors.New("mutation staged on a finished transaction")

	// ErrInvariant is returned by a backend when applying a mutation would break a
	// record invariant (for example a negative remaining-uses counter).
	ErrInvariant = errors.New("ledger invariant violated")
)

// Backend opens sessions against a concrete store.
type Backend interface {
	Begin(ctx context.Context) (Session, error)
}

// Session is one backend transaction. Reads must observe a consistent snapshot and
// Commit must fail with ErrConflict if any record read was changed concurrently.
type Session interface {
	GetCoupon(ctx context.Context, id string) (*model.Coupon, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	// FindPendingReferral returns ErrNotFound when the account has no pending referral.
	FindPendingReferral(ctx context.Context, referredID string) (*model.Referral, error)
	Apply(ctx context.Context, m Mutation) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Mutation is a single staged write. The set of mutations is closed.
type Mutation interface {
	mutation()
}

// DecrementUses takes one use off a coupon's remaining-uses counter.
type DecrementUses struct {
	CouponID string
}

// Credit increments an account's credit balance.
type Credit struct {
	AccountID string
	Amount    int64
}

// LatchFirstRedemption flips an account's first-redemption flag to true.
type LatchFirstRedemption struct {
	AccountID string
}

// RewardReferral moves a referral from pending to rewarded.
type RewardReferral struct {
	ReferralID string
}

// AppendAudit appends an audit log entry.
type AppendAudit struct {
	Entry model.AuditLogEntry
}

// InsertRedemption creates a redemption record.
type InsertRedemption struct {
	Redemption model.Redemption
}

func (DecrementUses) mutation()        {}
func (Credit) mutation()               {}
func (LatchFirstRedemption) mutation() {}
func (RewardReferral) mutation()       {}
func (AppendAudit) mutation()          {}
func (InsertRedemption) mutation()     {}
