package model

import (
	"fmt"
	"time"
)

// ReferralStatus is a one-way state: pending -> rewarded.
type ReferralStatus string

const (
	ReferralStatusPending  ReferralStatus = "pending"
	ReferralStatusRewarded ReferralStatus = "rewarded"
)

// Referral links an invited account to the account that invited it.
type Referral struct {
	ID         string         `json:"id"`
	ReferrerID string         `json:"referrer_id"`
	ReferredID string         `json:"referred_id"`
	Status     ReferralStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	RewardedAt *time.Time     `json:"rewarded_at,omitempty"`
}

// Validate rejects referral documents that break the schema.
func (r *Referral) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("referral: empty id: %w", ErrMalformedDocument)
	case r.ReferredID == "":
		return fmt.Errorf("referral %s: empty referred id: %w", r.ID, ErrMalformedDocument)
	case r.Status != ReferralStatusPending && r.Status != ReferralStatusRewarded:
		return fmt.Errorf("referral %s: unknown status %q: %w", r.ID, r.Status, ErrMalformedDocument)
	}
	return nil
}
