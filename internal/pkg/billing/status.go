package billing

import (
	"strings"

	"github.com/stammtisch-app/stammtisch/app/models"
)

// statusFromRemote maps a provider subscription status onto our local state
// machine. Unknown statuses (incomplete, past_due, unpaid, paused) do not
// entitle anyone and land on FREE.
func statusFromRemote(remote string) models.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "trialing":
		return models.SubscriptionTrial
	case "active":
		return models.SubscriptionActive
	case "canceled", "cancelled":
		return models.SubscriptionCancelled
	case "incomplete_expired":
		return models.SubscriptionExpired
	default:
		return models.SubscriptionFree
	}
}
