package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedDocument is returned when a stored record does not conform to its schema.
var ErrMalformedDocument = errors.New("malformed document")

// Coupon represents a discount offer issued by a shop.
// Exactly one validity policy may be set: ExpiresAt or ValidForDays.
type Coupon struct {
	ID                  string     `json:"id"`
	ShopID              string     `json:"shop_id"`
	Title               string     `json:"title"`
	RemainingUses       int        `json:"remaining_uses"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
	ValidForDays        *int       `json:"valid_for_days,omitempty"`
	AffiliateCommission int64      `json:"affiliate_commission"`
	CustomerReward      int64      `json:"customer_reward"`
	Clicks              int64      `json:"clicks"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Validate rejects coupon documents that break the schema instead of defaulting silently.
func (c *Coupon) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("coupon: empty id: %w", ErrMalformedDocument)
	case c.ShopID == "":
		return fmt.Errorf("coupon %s: empty shop id: %w", c.ID, ErrMalformedDocument)
	case c.RemainingUses < 0:
		return fmt.Errorf("coupon %s: negative remaining uses: %w", c.ID, ErrMalformedDocument)
	case c.ExpiresAt != nil && c.ValidForDays != nil:
		return fmt.Errorf("coupon %s: both expiry date and validity days set: %w", c.ID, ErrMalformedDocument)
	case c.ValidForDays != nil && *c.ValidForDays <= 0:
		return fmt.Errorf("coupon %s: non-positive validity days: %w", c.ID, ErrMalformedDocument)
	case c.ValidForDays != nil && c.CreatedAt.IsZero():
		return fmt.Errorf("coupon %s: validity days without creation time: %w", c.ID, ErrMalformedDocument)
	case c.AffiliateCommission < 0 || c.CustomerReward < 0:
		return fmt.Errorf("coupon %s: negative amount: %w", c.ID, ErrMalformedDocument)
	}
	return nil
}

// ExpiredAt reports whether the coupon's validity policy has lapsed at now.
func (c *Coupon) ExpiredAt(now time.Time) bool {
	if c.ExpiresAt != nil {
		return now.After(*c.ExpiresAt)
	}
	if c.ValidForDays != nil {
		return now.After(c.CreatedAt.AddDate(0, 0, *c.ValidForDays))
	}
	return false
}
