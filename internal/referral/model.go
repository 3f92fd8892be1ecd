package referral

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Code is a redeemable discount voucher. Codes minted for a completed order
// (share-your-code flow) carry the originating order id; campaign codes do
// not.
type Code struct {
	Code            string
	ReferrerOrderID *uuid.UUID
	DiscountCents   int
	MaxUses         int
	UsesCount       int
	Active          bool
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

// Reason classifies why a redemption was rejected.
type Reason string

const (
	ReasonNotFound  Reason = "not_found"
	ReasonInactive  Reason = "inactive"
	ReasonExpired   Reason = "expired"
	ReasonExhausted Reason = "exhausted"
)

// Redemption is the outcome of one redemption attempt. A rejected attempt is
// not an error; storage outages are.
type Redemption struct {
	Applied       bool
	DiscountCents int
	Reason        Reason
}

// Normalize maps a presented code to its canonical form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// validate checks everything except the usage cap race, which only the
// conditional update can decide.
func (c *Code) validate(now time.Time) (Reason, bool) {
	if !c.Active {
		return ReasonInactive, false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ReasonExpired, false
	}
	if c.UsesCount >= c.MaxUses {
		return ReasonExhausted, false
	}
	return "", true
}
