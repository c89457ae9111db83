package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

type phase int

const (
	phaseReading phase = iota
	phaseWriting
	phaseDone
)

// Tx is a two-phase transaction over a Session.
// A Tx is not safe for concurrent use.
type Tx struct {
	sess   Session
	phase  phase
	staged []Mutation
	err    error
}

func newTx(sess Session) *Tx {
	return &Tx{sess: sess}
}

// Coupon loads a coupon. Returns ErrNotFound if it does not exist.
func (t *Tx) Coupon(ctx context.Context, id string) (*model.Coupon, error) {
	if t.phase != phaseReading {
		return nil, ErrReadPhaseClosed
	}
	coupon, err := t.sess.GetCoupon(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := coupon.Validate(); err != nil {
		return nil, err
	}
	return coupon, nil
}

// Account loads an account. Returns ErrNotFound if it does not exist.
func (t *Tx) Account(ctx context.Context, id string) (*model.Account, error) {
	if t.phase != phaseReading {
		return nil, ErrReadPhaseClosed
	}
	account, err := t.sess.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

// PendingReferral loads the pending referral of referredID.
// Returns nil, nil when there is none.
func (t *Tx) PendingReferral(ctx context.Context, referredID string) (*model.Referral, error) {
	if t.phase != phaseReading {
		return nil, ErrReadPhaseClosed
	}
	referral, err := t.sess.FindPendingReferral(ctx, referredID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := referral.Validate(); err != nil {
		return nil, err
	}
	return referral, nil
}

// BeginWrites closes the read phase and returns the write set.
// Calling it more than once returns the same write set.
func (t *Tx) BeginWrites() *WriteSet {
	if t.phase == phaseReading {
		t.phase = phaseWriting
	}
	return &WriteSet{tx: t}
}

// Staged returns a copy of the mutations staged so far.
func (t *Tx) Staged() []Mutation {
	return append([]Mutation(nil), t.staged...)
}

func (t *Tx) stage(m Mutation) {
	if t.phase != phaseWriting {
		if t.err == nil {
			t.err = ErrWritePhaseClosed
		}
		return
	}
	t.staged = append(t.staged, m)
}

// commit applies every staged mutation in order and commits the session.
func (t *Tx) commit(ctx context.Context) error {
	if t.err != nil {
		return t.err
	}
	t.phase = phaseDone
	for _, m := range t.staged {
		if err := t.sess.Apply(ctx, m); err != nil {
			return fmt.Errorf("apply %T: %w", m, err)
		}
	}
	if err := t.sess.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (t *Tx) finish() {
	t.phase = phaseDone
}

// WriteSet stages mutations. It can only be obtained from Tx.BeginWrites.
type WriteSet struct {
	tx *Tx
}

// DecrementUses stages a decrement of the coupon's remaining uses.
func (w *WriteSet) DecrementUses(couponID string) {
	w.tx.stage(DecrementUses{CouponID: couponID})
}

// Credit stages a credit of amount to the account.
func (w *WriteSet) Credit(accountID string, amount int64) {
	w.tx.stage(Credit{AccountID: accountID, Amount: amount})
}

// LatchFirstRedemption stages the account's first-redemption latch.
func (w *WriteSet) LatchFirstRedemption(accountID string) {
	w.tx.stage(LatchFirstRedemption{AccountID: accountID})
}

// RewardReferral stages the pending -> rewarded transition.
func (w *WriteSet) RewardReferral(referralID string) {
	w.tx.stage(RewardReferral{ReferralID: referralID})
}

// AppendAudit stages an audit entry.
func (w *WriteSet) AppendAudit(entry model.AuditLogEntry) {
	w.tx.stage(AppendAudit{Entry: entry})
}

// InsertRedemption stages a redemption record.
func (w *WriteSet) InsertRedemption(r model.Redemption) {
	w.tx.stage(InsertRedemption{Redemption: r})
}
