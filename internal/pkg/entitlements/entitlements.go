package entitlements

import (
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
)

// Capabilities describes what a user may do in the community based on their
// subscription state at a given instant.
type Capabilities struct {
	MemberChannels bool `json:"member_channels"`
	FileSharing    bool `json:"file_sharing"`
	CreateChannels bool `json:"create_channels"`
}

// ForUser computes the capability set for a user. A cancelled subscription
// keeps its capabilities while the paid period has not elapsed.
func ForUser(u *models.User, now time.Time) Capabilities {
	if u == nil {
		return Capabilities{}
	}
	paid := u.HasPaidAccess(now)
	return Capabilities{
		MemberChannels: paid,
		FileSharing:    paid,
		CreateChannels: paid && u.SubscriptionStatus == models.SubscriptionActive,
	}
}
