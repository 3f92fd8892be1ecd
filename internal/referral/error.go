package referral

import "errors"

var (
	ErrCodeNotFound  = errors.New("referral code not found")
	ErrAlreadyMinted = errors.New("referral code already minted for this order")
)
