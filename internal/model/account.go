package model

import (
	"fmt"
	"time"
)

// Account is a shop owner, customer or affiliate. All roles share one record shape.
type Account struct {
	ID                     string    `json:"id"`
	DisplayName            string    `json:"display_name"`
	Credits                int64     `json:"credits"`
	ReferredBy             *string   `json:"referred_by,omitempty"`
	HasRedeemedFirstCoupon bool      `json:"has_redeemed_first_coupon"`
	CreatedAt              time.Time `json:"created_at"`
}

// Validate rejects account documents that break the schema.
func (a *Account) Validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("account: empty id: %w", ErrMalformedDocument)
	case a.Credits < 0:
		return fmt.Errorf("account %s: negative credits: %w", a.ID, ErrMalformedDocument)
	case a.ReferredBy != nil && *a.ReferredBy == "":
		return fmt.Errorf("account %s: empty referrer id: %w", a.ID, ErrMalformedDocument)
	case a.ReferredBy != nil && *a.ReferredBy == a.ID:
		return fmt.Errorf("account %s: referred by itself: %w", a.ID, ErrMalformedDocument)
	}
	return nil
}

// HasReferrer reports whether the account was invited by another account.
func (a *Account) HasReferrer() bool {
	return a.ReferredBy != nil
}
