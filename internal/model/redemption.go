package model

import "time"

// Redemption records one successful use of a coupon. Append-only.
type Redemption struct {
	ID                  string    `json:"id"`
	CouponID            string    `json:"coupon_id"`
	CouponTitle         string    `json:"coupon_title"`
	ShopID              string    `json:"shop_id"`
	CustomerID          string    `json:"customer_id"`
	AffiliateID         *string   `json:"affiliate_id,omitempty"`
	AffiliateCommission *int64    `json:"affiliate_commission,omitempty"`
	CustomerReward      *int64    `json:"customer_reward,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// AuditCategory names the kind of credit movement an audit entry records.
type AuditCategory string

const (
	AuditCustomerReward      AuditCategory = "customer-reward"
	AuditAffiliateCommission AuditCategory = "affiliate-commission"
	AuditReferrerBonus       AuditCategory = "referrer-bonus"
)

// Valid reports whether c is one of the known categories.
func (c AuditCategory) Valid() bool {
	switch c {
	case AuditCustomerReward, AuditAffiliateCommission, AuditReferrerBonus:
		return true
	}
	return false
}

// AuditLogEntry is an immutable record of one credited party for one redemption.
type AuditLogEntry struct {
	ID              string        `json:"id"`
	RedemptionID    string        `json:"redemption_id"`
	Category        AuditCategory `json:"category"`
	BeneficiaryID   string        `json:"beneficiary_id"`
	BeneficiaryName string        `json:"beneficiary_name"`
	Amount          int64         `json:"amount"`
	CreatedAt       time.Time     `json:"created_at"`
}

// RedeemRequest is the DTO for POST /api/redemptions.
// The redeeming account comes from the verified caller identity, never from the body.
type RedeemRequest struct {
	CouponID    string  `json:"coupon_id" validate:"required,notblank,max=255"`
	AffiliateID *string `json:"affiliate_id" validate:"omitempty,notblank,max=255"`
}

// RedeemResponse is the API response for a successful redemption.
type RedeemResponse struct {
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	RedemptionID        string `json:"redemption_id"`
	CustomerReward      int64  `json:"customer_reward"`
	AffiliateCommission int64  `json:"affiliate_commission"`
	ReferrerBonusPaid   bool   `json:"referrer_bonus_paid"`
}

// ClickResponse is the API response for POST /api/coupons/:id/clicks.
type ClickResponse struct {
	Success bool `json:"success"`
}
