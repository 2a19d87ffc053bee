package billing

import (
	"strings"
	"time"
)

// snapshotFromProvider validates a provider subscription and converts it into
// an applicable snapshot. Any missing or inconsistent field fails the whole
// conversion; partial snapshots are never produced.
func snapshotFromProvider(sub ProviderSubscription) (*RemoteSubscriptionSnapshot, error) {
	if strings.TrimSpace(sub.ID) == "" {
		return nil, &ValidationError{Reason: "subscription id missing"}
	}
	if len(sub.Items) == 0 {
		return nil, &ValidationError{Reason: "subscription has no line items"}
	}

	start := sub.periodStart()
	if start == 0 {
		return nil, &ValidationError{Reason: "current period start missing"}
	}
	end := sub.periodEnd()
	if end == 0 {
		return nil, &ValidationError{Reason: "current period end missing"}
	}
	if end < start {
		return nil, &ValidationError{Reason: "current period end before start"}
	}

	product := sub.productRef()
	if product == "" {
		return nil, &ValidationError{Reason: "product reference unresolvable"}
	}

	return &RemoteSubscriptionSnapshot{
		SubscriptionID:    sub.ID,
		Status:            sub.Status,
		PeriodStart:       time.Unix(start, 0).UTC(),
		PeriodEnd:         time.Unix(end, 0).UTC(),
		ProductRef:        product,
		PriceRef:          sub.priceRef(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Discounts:         sub.Discounts,
	}, nil
}
