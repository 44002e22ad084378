package ledger

import "time"

// User is a metered account. Balance is whole analysis credits; ReferredBy
// is set once at registration and never changes afterwards.
type User struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	Balance           int       `json:"balance"`
	Context           string    `json:"context"`
	ReferredBy        string    `json:"referredBy"`
	ReferralBonusPaid bool      `json:"referralBonusPaid"`
	CreatedAt         time.Time `json:"createdAt"`
}
