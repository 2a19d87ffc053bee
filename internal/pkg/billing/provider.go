package billing

import "context"

// Provider is the billing backend the service talks to. The production
// implementation sits on the Stripe API; tests substitute a fake.
type Provider interface {
	// ListSubscriptions returns the customer's subscriptions in any status,
	// most recent first, up to limit.
	ListSubscriptions(ctx context.Context, customerRef string, limit int) ([]ProviderSubscription, error)

	// ActiveProductPrice resolves the currently sold membership product and
	// its default price.
	ActiveProductPrice(ctx context.Context) (*ProviderProduct, error)

	// FindPromoCoupon resolves a promotion code to its coupon, or returns a
	// NotFoundError if the code is unknown or inactive.
	FindPromoCoupon(ctx context.Context, code string) (*ProviderCoupon, error)

	// CreateCustomer registers a customer record and returns its reference.
	CreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreateSubscription subscribes the customer to the given price.
	CreateSubscription(ctx context.Context, customerRef, priceID string) (*ProviderSubscription, error)

	// CancelSubscription cancels at period end when atPeriodEnd is true,
	// otherwise immediately. Returns the subscription's final state.
	CancelSubscription(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (*ProviderSubscription, error)
}
