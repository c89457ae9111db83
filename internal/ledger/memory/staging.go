package memory

import (
	"fmt"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// staging collects the effect of a commit on copies of the touched records.
// Nothing is visible in the store until publish.
type staging struct {
	store       *Store
	coupons     map[string]model.Coupon
	accounts    map[string]model.Account
	referrals   map[string]model.Referral
	redemptions []model.Redemption
	audit       []model.AuditLogEntry
}

func newStaging(s *Store) *staging {
	return &staging{
		store:     s,
		coupons:   make(map[string]model.Coupon),
		accounts:  make(map[string]model.Account),
		referrals: make(map[string]model.Referral),
	}
}

func (st *staging) coupon(id string) (model.Coupon, error) {
	if c, ok := st.coupons[id]; ok {
		return c, nil
	}
	rec, ok := st.store.coupons[id]
	if !ok {
		return model.Coupon{}, fmt.Errorf("coupon %s: %w", id, ledger.ErrNotFound)
	}
	return rec.value, nil
}

func (st *staging) account(id string) (model.Account, error) {
	if a, ok := st.accounts[id]; ok {
		return a, nil
	}
	rec, ok := st.store.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ledger.ErrNotFound)
	}
	return rec.value, nil
}

func (st *staging) apply(m ledger.Mutation) error {
	now := st.store.now().UTC()

	switch m := m.(type) {
	case ledger.DecrementUses:
		c, err := st.coupon(m.CouponID)
		if err != nil {
			return err
		}
		if c.RemainingUses <= 0 {
			return fmt.Errorf("coupon %s has no uses left: %w", c.ID, ledger.ErrInvariant)
		}
		c.RemainingUses--
		st.coupons[c.ID] = c

	case ledger.Credit:
		if m.Amount <= 0 {
			return fmt.Errorf("credit of %d to %s: %w", m.Amount, m.AccountID, ledger.ErrInvariant)
		}
		a, err := st.account(m.AccountID)
		if err != nil {
			return err
		}
		a.Credits += m.Amount
		st.accounts[a.ID] = a

	case ledger.LatchFirstRedemption:
		a, err := st.account(m.AccountID)
		if err != nil {
			return err
		}
		a.HasRedeemedFirstCoupon = true
		st.accounts[a.ID] = a

	case ledger.RewardReferral:
		r, ok := st.referrals[m.ReferralID]
		if !ok {
			rec, exists := st.store.referrals[m.ReferralID]
			if !exists {
				return fmt.Errorf("referral %s: %w", m.ReferralID, ledger.ErrNotFound)
			}
			r = rec.value
		}
		if r.Status != model.ReferralStatusPending {
			return fmt.Errorf("referral %s is %s: %w", r.ID, r.Status, ledger.ErrConflict)
		}
		r.Status = model.ReferralStatusRewarded
		r.RewardedAt = &now
		st.referrals[r.ID] = r

	case ledger.AppendAudit:
		e := m.Entry
		e.CreatedAt = now
		st.audit = append(st.audit, e)

	case ledger.InsertRedemption:
		r := m.Redemption
		r.CreatedAt = now
		st.redemptions = append(st.redemptions, r)

	default:
		return fmt.Errorf("unsupported mutation %T", m)
	}
	return nil
}

// publish swaps the staged records into the store. Caller must hold the store lock.
func (st *staging) publish() {
	s := st.store
	for id, c := range st.coupons {
		s.coupons[id] = versioned[model.Coupon]{value: c, version: s.coupons[id].version + 1}
	}
	for id, a := range st.accounts {
		s.accounts[id] = versioned[model.Account]{value: a, version: s.accounts[id].version + 1}
	}
	for id, r := range st.referrals {
		s.referrals[id] = versioned[model.Referral]{value: r, version: s.referrals[id].version + 1}
	}
	s.redemptions = append(s.redemptions, st.redemptions...)
	s.auditLog = append(s.auditLog, st.audit...)
}
