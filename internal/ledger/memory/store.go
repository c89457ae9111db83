// Package memory is an in-memory ledger backend with optimistic concurrency control.
// Each record carries a version; a session remembers the versions it read and its
// commit aborts with ledger.ErrConflict when any of them changed in the meantime.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

type versioned[T any] struct {
	value   T
	version uint64
}

// Store holds coupons, accounts, referrals, redemptions and the audit log in memory.
type Store struct {
	mu sync.RWMutex

	coupons     map[string]versioned[model.Coupon]
	accounts    map[string]versioned[model.Account]
	referrals   map[string]versioned[model.Referral]
	redemptions []model.Redemption
	auditLog    []model.AuditLogEntry

	now func() time.Time

	// FailApply, when set, is consulted for every mutation at commit time.
	// Returning an error aborts the commit; used to simulate store failures.
	FailApply func(m ledger.Mutation) error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		coupons:   make(map[string]versioned[model.Coupon]),
		accounts:  make(map[string]versioned[model.Account]),
		referrals: make(map[string]versioned[model.Referral]),
		now:       time.Now,
	}
}

// SetClock replaces the clock used for server-assigned timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutCoupon inserts or replaces a coupon.
func (s *Store) PutCoupon(c model.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coupons[c.ID] = versioned[model.Coupon]{value: c, version: s.coupons[c.ID].version + 1}
}

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(a model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = versioned[model.Account]{value: a, version: s.accounts[a.ID].version + 1}
}

// PutReferral inserts or replaces a referral.
func (s *Store) PutReferral(r model.Referral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrals[r.ID] = versioned[model.Referral]{value: r, version: s.referrals[r.ID].version + 1}
}

// Coupon returns a snapshot of a coupon.
func (s *Store) Coupon(id string) (model.Coupon, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.coupons[id]
	return rec.value, ok
}

// GetAccount implements the non-transactional account lookup.
func (s *Store) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.accounts[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	account := rec.value
	return &account, nil
}

// Referral returns a snapshot of a referral.
func (s *Store) Referral(id string) (model.Referral, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.referrals[id]
	return rec.value, ok
}

// Redemptions returns a copy of all redemption records in insertion order.
func (s *Store) Redemptions() []model.Redemption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Redemption(nil), s.redemptions...)
}

// AuditLog returns a copy of all audit entries in insertion order.
func (s *Store) AuditLog() []model.AuditLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AuditLogEntry(nil), s.auditLog...)
}

// ListRedemptions returns the customer's redemptions of a coupon, newest first.
func (s *Store) ListRedemptions(_ context.Context, customerID, couponID string) ([]model.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Redemption, 0)
	for _, r := range s.redemptions {
		if r.CustomerID == customerID && r.CouponID == couponID {
			items = append(items, r)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// IncrementClicks bumps a coupon's click counter outside any transaction.
// It does not change the coupon's version, so it never conflicts with a redemption.
func (s *Store) IncrementClicks(_ context.Context, couponID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.coupons[couponID]
	if !ok {
		return ledger.ErrNotFound
	}
	rec.value.Clicks++
	s.coupons[couponID] = rec
	return nil
}

// Begin implements ledger.Backend.
func (s *Store) Begin(_ context.Context) (ledger.Session, error) {
	return &session{
		store: s,
		reads: make(map[string]uint64),
	}, nil
}

type session struct {
	store   *Store
	reads   map[string]uint64
	pending []ledger.Mutation
	done    bool
}

func couponKey(id string) string   { return "coupon/" + id }
func accountKey(id string) string  { return "account/" + id }
func referralKey(id string) string { return "referral/" + id }
func pendingKey(id string) string  { return "pending-referral/" + id }

func (s *session) GetCoupon(_ context.Context, id string) (*model.Coupon, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	rec, ok := s.store.coupons[id]
	s.reads[couponKey(id)] = rec.version
	if !ok {
		return nil, ledger.ErrNotFound
	}
	c := rec.value
	return &c, nil
}

func (s *session) GetAccount(_ context.Context, id string) (*model.Account, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	rec, ok := s.store.accounts[id]
	s.reads[accountKey(id)] = rec.version
	if !ok {
		return nil, ledger.ErrNotFound
	}
	a := rec.value
	return &a, nil
}

func (s *session) FindPendingReferral(_ context.Context, referredID string) (*model.Referral, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()

	s.reads[pendingKey(referredID)] = s.store.pendingVersion(referredID)
	for id, rec := range s.store.referrals {
		if rec.value.ReferredID == referredID && rec.value.Status == model.ReferralStatusPending {
			s.reads[referralKey(id)] = rec.version
			r := rec.value
			return &r, nil
		}
	}
	return nil, ledger.ErrNotFound
}

// pendingVersion folds the versions of every referral of referredID so that a
// concurrent status change on any of them is visible to the predicate read.
// Caller must hold s.mu.
func (s *Store) pendingVersion(referredID string) uint64 {
	var sum uint64
	for _, rec := range s.referrals {
		if rec.value.ReferredID == referredID {
			sum += rec.version
		}
	}
	return sum
}

func (s *session) Apply(_ context.Context, m ledger.Mutation) error {
	if s.done {
		return fmt.Errorf("session finished: %w", ledger.ErrWritePhaseClosed)
	}
	s.pending = append(s.pending, m)
	return nil
}

func (s *session) Rollback(_ context.Context) error {
	s.done = true
	s.pending = nil
	return nil
}

func (s *session) Commit(_ context.Context) error {
	if s.done {
		return fmt.Errorf("session finished: %w", ledger.ErrWritePhaseClosed)
	}
	s.done = true

	st := s.store
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := s.validateReads(); err != nil {
		return err
	}

	stage := newStaging(st)
	for _, m := range s.pending {
		if st.FailApply != nil {
			if err := st.FailApply(m); err != nil {
				return err
			}
		}
		if err := stage.apply(m); err != nil {
			return err
		}
	}
	stage.publish()
	return nil
}

// validateReads must be called with the store lock held.
func (s *session) validateReads() error {
	st := s.store
	for key, version := range s.reads {
		var current uint64
		switch {
		case strings.HasPrefix(key, "coupon/"):
			current = st.coupons[strings.TrimPrefix(key, "coupon/")].version
		case strings.HasPrefix(key, "account/"):
			current = st.accounts[strings.TrimPrefix(key, "account/")].version
		case strings.HasPrefix(key, "referral/"):
			current = st.referrals[strings.TrimPrefix(key, "referral/")].version
		case strings.HasPrefix(key, "pending-referral/"):
			current = st.pendingVersion(strings.TrimPrefix(key, "pending-referral/"))
		}
		if current != version {
			return fmt.Errorf("%s changed since read: %w", key, ledger.ErrConflict)
		}
	}
	return nil
}
