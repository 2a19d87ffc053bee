package billing

import (
	"encoding/json"
	"time"
)

// Provider event types the service reacts to. Everything else is
// acknowledged and ignored.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutCompleted   = "checkout.session.completed"
)

// EventEnvelope is a verified webhook event: identity, type and the raw
// event object for the type-specific handlers to parse.
type EventEnvelope struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// ProviderSubscriptionItem is one line item of a remote subscription.
// Newer provider API versions report billing periods here instead of on
// the subscription itself.
type ProviderSubscriptionItem struct {
	PriceID            string
	ProductID          string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
}

// ProviderSubscription is the provider-shaped view of a subscription, with
// unix timestamps as delivered on the wire.
type ProviderSubscription struct {
	ID                 string
	Status             string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	Created            int64
	Items              []ProviderSubscriptionItem
	Discounts          []string
}

// periodStart returns the subscription-level period start, falling back to
// the first item that carries one.
func (s ProviderSubscription) periodStart() int64 {
	if s.CurrentPeriodStart > 0 {
		return s.CurrentPeriodStart
	}
	for _, it := range s.Items {
		if it.CurrentPeriodStart > 0 {
			return it.CurrentPeriodStart
		}
	}
	return 0
}

func (s ProviderSubscription) periodEnd() int64 {
	if s.CurrentPeriodEnd > 0 {
		return s.CurrentPeriodEnd
	}
	for _, it := range s.Items {
		if it.CurrentPeriodEnd > 0 {
			return it.CurrentPeriodEnd
		}
	}
	return 0
}

func (s ProviderSubscription) productRef() string {
	for _, it := range s.Items {
		if it.ProductID != "" {
			return it.ProductID
		}
	}
	return ""
}

func (s ProviderSubscription) priceRef() string {
	for _, it := range s.Items {
		if it.PriceID != "" {
			return it.PriceID
		}
	}
	return ""
}

// ProviderProduct is the sellable product and its current price.
type ProviderProduct struct {
	ID      string
	Name    string
	PriceID string
}

// ProviderCoupon is a promotion code resolved against the provider.
type ProviderCoupon struct {
	ID         string
	Code       string
	PercentOff float64
	AmountOff  int64
}

// RemoteSubscriptionSnapshot is a validated subscription state ready to be
// applied to an account. Timestamps are normalized to UTC.
type RemoteSubscriptionSnapshot struct {
	SubscriptionID    string
	Status            string
	PeriodStart       time.Time
	PeriodEnd         time.Time
	ProductRef        string
	PriceRef          string
	CancelAtPeriodEnd bool
	Discounts         []string
}
