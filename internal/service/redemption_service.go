package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/coupon-ledger/internal/ledger"
	"github.com/fairyhunter13/coupon-ledger/internal/metrics"
	"github.com/fairyhunter13/coupon-ledger/internal/model"
)

// DefaultReferrerBonus is the platform-level credit paid to a referrer when the
// account they invited redeems its first coupon.
const DefaultReferrerBonus int64 = 100

// RedeemedMessage is returned to the caller on success.
const RedeemedMessage = "Coupon redeemed successfully"

// Transactor runs a function inside a ledger transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn ledger.TxFunc) error
}

// AccountLookup reads accounts outside any transaction.
type AccountLookup interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
}

// RedemptionLister lists a customer's redemptions of a coupon, newest first.
type RedemptionLister interface {
	ListRedemptions(ctx context.Context, customerID, couponID string) ([]model.Redemption, error)
}

// AuditAppender stages audit entries on an open write set.
type AuditAppender interface {
	Append(w *ledger.WriteSet, entry model.AuditLogEntry) error
}

// RedeemInput identifies one redemption attempt. AccountID is the verified caller.
type RedeemInput struct {
	CouponID    string
	AccountID   string
	AffiliateID *string
}

// RedeemResult describes a committed redemption.
type RedeemResult struct {
	Message             string
	RedemptionID        string
	CustomerReward      int64
	AffiliateCommission int64
	ReferrerBonusPaid   bool
	ReferrerBonus       int64
}

// RedemptionService is the redemption transaction engine.
type RedemptionService struct {
	store         Transactor
	accounts      AccountLookup
	history       RedemptionLister
	audit         AuditAppender
	referrals     ReferralResolver
	referrerBonus int64
	timeout       time.Duration
	now           func() time.Time
	newID         func() string
}

// RedemptionOption configures a RedemptionService.
type RedemptionOption func(*RedemptionService)

// WithReferrerBonus overrides DefaultReferrerBonus. Non-positive values are ignored.
func WithReferrerBonus(amount int64) RedemptionOption {
	return func(s *RedemptionService) {
		if amount > 0 {
			s.referrerBonus = amount
		}
	}
}

// WithTimeout bounds each redemption. Zero disables the bound.
func WithTimeout(d time.Duration) RedemptionOption {
	return func(s *RedemptionService) {
		s.timeout = d
	}
}

// WithClock replaces the clock used for expiry checks.
func WithClock(now func() time.Time) RedemptionOption {
	return func(s *RedemptionService) {
		s.now = now
	}
}

// WithIDGenerator replaces the redemption id source.
func WithIDGenerator(newID func() string) RedemptionOption {
	return func(s *RedemptionService) {
		s.newID = newID
	}
}

// NewRedemptionService creates the engine over an injected transactional store.
func NewRedemptionService(store Transactor, accounts AccountLookup, history RedemptionLister, audit AuditAppender, opts ...RedemptionOption) *RedemptionService {
	s := &RedemptionService{
		store:         store,
		accounts:      accounts,
		history:       history,
		audit:         audit,
		referrerBonus: DefaultReferrerBonus,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// readSet is everything the write phase may depend on.
type readSet struct {
	coupon    *model.Coupon
	customer  *model.Account
	affiliate *model.Account
	referral  *ReferralMatch
}

// Redeem atomically consumes one use of a coupon and distributes credits.
// Returns:
//   - ErrUnauthenticated if there is no caller identity
//   - ErrMissingCouponID if the coupon id is empty
//   - ErrAccountNotFound if the caller has no account
//   - ErrCouponNotFound if the coupon doesn't exist
//   - ErrNoUsesLeft / ErrCouponExpired if the coupon can no longer be redeemed
//   - an internal *Error for anything else
func (s *RedemptionService) Redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error) {
	start := time.Now()
	result, err := s.redeem(ctx, in)
	metrics.RedemptionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues(KindOf(err).String()).Inc()
		return nil, err
	}

	metrics.RedemptionsTotal.WithLabelValues("ok").Inc()
	if result.CustomerReward > 0 {
		metrics.CreditsTotal.WithLabelValues(string(model.AuditCustomerReward)).Add(float64(result.CustomerReward))
	}
	if result.AffiliateCommission > 0 {
		metrics.CreditsTotal.WithLabelValues(string(model.AuditAffiliateCommission)).Add(float64(result.AffiliateCommission))
	}
	if result.ReferrerBonusPaid {
		metrics.CreditsTotal.WithLabelValues(string(model.AuditReferrerBonus)).Add(float64(result.ReferrerBonus))
	}
	return result, nil
}

func (s *RedemptionService) redeem(ctx context.Context, in RedeemInput) (*RedeemResult, error) {
	accountID := strings.TrimSpace(in.AccountID)
	if accountID == "" {
		return nil, ErrUnauthenticated
	}
	couponID := strings.TrimSpace(in.CouponID)
	if couponID == "" {
		return nil, ErrMissingCouponID
	}
	var affiliateID string
	if in.AffiliateID != nil {
		affiliateID = strings.TrimSpace(*in.AffiliateID)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// Fast-fail before opening a transaction.
	if _, err := s.accounts.GetAccount(ctx, accountID); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, internalError("look up account", err)
	}

	var result *RedeemResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx *ledger.Tx) error {
		result = nil

		rs, err := s.read(ctx, tx, couponID, accountID, affiliateID)
		if err != nil {
			return err
		}
		if err := s.validate(rs); err != nil {
			return err
		}
		result, err = s.write(tx.BeginWrites(), rs)
		return err
	})
	if err != nil {
		return nil, internalError("redeem coupon", err)
	}

	log.Info().
		Str("coupon_id", couponID).
		Str("account_id", accountID).
		Str("redemption_id", result.RedemptionID).
		Int64("customer_reward", result.CustomerReward).
		Int64("affiliate_commission", result.AffiliateCommission).
		Bool("referrer_bonus_paid", result.ReferrerBonusPaid).
		Msg("coupon redeemed")

	return result, nil
}

// read loads every record the transaction depends on. No writes may be staged here.
func (s *RedemptionService) read(ctx context.Context, tx *ledger.Tx, couponID, accountID, affiliateID string) (*readSet, error) {
	coupon, err := tx.Coupon(ctx, couponID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("load coupon: %w", err)
	}

	customer, err := tx.Account(ctx, accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	rs := &readSet{coupon: coupon, customer: customer}

	if affiliateID != "" {
		affiliate, err := tx.Account(ctx, affiliateID)
		switch {
		case err == nil:
			rs.affiliate = affiliate
		case errors.Is(err, ledger.ErrNotFound):
			log.Warn().
				Str("coupon_id", couponID).
				Str("affiliate_id", affiliateID).
				Msg("unknown affiliate, no commission will be paid")
		default:
			return nil, fmt.Errorf("load affiliate: %w", err)
		}
	}

	rs.referral, err = s.referrals.Resolve(ctx, tx, customer)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// validate applies the business rules to the read set. No I/O.
func (s *RedemptionService) validate(rs *readSet) error {
	if rs.coupon.RemainingUses <= 0 {
		return ErrNoUsesLeft
	}
	if rs.coupon.ExpiredAt(s.now()) {
		return ErrCouponExpired
	}
	return nil
}

// write stages every mutation of the redemption. The redemption record is staged
// last so it carries every optional field populated above.
func (s *RedemptionService) write(w *ledger.WriteSet, rs *readSet) (*RedeemResult, error) {
	coupon, customer := rs.coupon, rs.customer

	redemption := model.Redemption{
		ID:          s.newID(),
		CouponID:    coupon.ID,
		CouponTitle: coupon.Title,
		ShopID:      coupon.ShopID,
		CustomerID:  customer.ID,
	}
	result := &RedeemResult{Message: RedeemedMessage, RedemptionID: redemption.ID}

	w.DecrementUses(coupon.ID)

	if reward := coupon.CustomerReward; reward > 0 {
		w.Credit(customer.ID, reward)
		if err := s.audit.Append(w, model.AuditLogEntry{
			RedemptionID:    redemption.ID,
			Category:        model.AuditCustomerReward,
			BeneficiaryID:   customer.ID,
			BeneficiaryName: customer.DisplayName,
			Amount:          reward,
		}); err != nil {
			return nil, fmt.Errorf("audit customer reward: %w", err)
		}
		redemption.CustomerReward = &reward
		result.CustomerReward = reward
	}

	if affiliate := rs.affiliate; affiliate != nil && affiliate.ID != coupon.ShopID && coupon.AffiliateCommission > 0 {
		commission := coupon.AffiliateCommission
		w.Credit(affiliate.ID, commission)
		if err := s.audit.Append(w, model.AuditLogEntry{
			RedemptionID:    redemption.ID,
			Category:        model.AuditAffiliateCommission,
			BeneficiaryID:   affiliate.ID,
			BeneficiaryName: affiliate.DisplayName,
			Amount:          commission,
		}); err != nil {
			return nil, fmt.Errorf("audit affiliate commission: %w", err)
		}
		affiliateID := affiliate.ID
		redemption.AffiliateID = &affiliateID
		redemption.AffiliateCommission = &commission
		result.AffiliateCommission = commission
	}

	// The latch closes only together with a paid bonus.
	if match := rs.referral; match != nil {
		w.LatchFirstRedemption(customer.ID)
		w.Credit(match.Referrer.ID, s.referrerBonus)
		w.RewardReferral(match.Referral.ID)
		if err := s.audit.Append(w, model.AuditLogEntry{
			RedemptionID:    redemption.ID,
			Category:        model.AuditReferrerBonus,
			BeneficiaryID:   match.Referrer.ID,
			BeneficiaryName: match.Referrer.DisplayName,
			Amount:          s.referrerBonus,
		}); err != nil {
			return nil, fmt.Errorf("audit referrer bonus: %w", err)
		}
		result.ReferrerBonusPaid = true
		result.ReferrerBonus = s.referrerBonus
	}

	w.InsertRedemption(redemption)
	return result, nil
}

// History lists the caller's redemptions of a coupon, newest first. Clients use it to
// settle redemptions whose outcome is unknown after a timeout.
func (s *RedemptionService) History(ctx context.Context, accountID, couponID string) ([]model.Redemption, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, ErrUnauthenticated
	}
	couponID = strings.TrimSpace(couponID)
	if couponID == "" {
		return nil, ErrMissingCouponID
	}

	items, err := s.history.ListRedemptions(ctx, accountID, couponID)
	if err != nil {
		return nil, internalError("list redemptions", err)
	}
	if items == nil {
		items = []model.Redemption{}
	}
	return items, nil
}
