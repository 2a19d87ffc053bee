package models

import "time"

// SubscriptionStatus is the closed set of access states a user account can
// be in. New provider statuses must be mapped explicitly; there is no
// catch-all value besides SubscriptionFree.
type SubscriptionStatus string

const (
	SubscriptionFree      SubscriptionStatus = "free"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionFree, SubscriptionTrial, SubscriptionActive, SubscriptionCancelled, SubscriptionExpired:
		return true
	default:
		return false
	}
}

// Entitling reports whether the status grants paid access on its own,
// ignoring the grace period of a cancelled subscription.
func (s SubscriptionStatus) Entitling() bool {
	switch s {
	case SubscriptionActive, SubscriptionTrial:
		return true
	case SubscriptionFree, SubscriptionCancelled, SubscriptionExpired:
		return false
	default:
		return false
	}
}

// HasPaidAccess reports whether the user's subscription grants member access
// at the given instant. A cancelled subscription keeps access while its paid
// period has not yet elapsed (grace period).
func (u *User) HasPaidAccess(now time.Time) bool {
	switch u.SubscriptionStatus {
	case SubscriptionActive, SubscriptionTrial:
		return true
	case SubscriptionCancelled:
		return u.PeriodEnd != nil && u.PeriodEnd.After(now)
	case SubscriptionFree, SubscriptionExpired:
		return false
	default:
		return false
	}
}

// GraceElapsed reports whether a cancelled subscription's paid period has
// run out, meaning the revoke side effect is due.
func (u *User) GraceElapsed(now time.Time) bool {
	return u.SubscriptionStatus == SubscriptionCancelled &&
		u.PeriodEnd != nil && !u.PeriodEnd.After(now)
}
