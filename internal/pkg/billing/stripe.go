package billing

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/promotioncode"
	"github.com/stripe/stripe-go/v82/subscription"
)

// StripeProvider implements Provider on the Stripe API. Billing periods are
// read from subscription items; current API versions no longer carry them on
// the subscription object itself.
type StripeProvider struct{}

// NewStripeProvider configures the global Stripe client with the given key.
func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{}
}

func (p *StripeProvider) ListSubscriptions(ctx context.Context, customerRef string, limit int) ([]ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerRef),
		Status:   stripe.String("all"),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))

	var subs []ProviderSubscription
	it := subscription.List(params)
	for it.Next() {
		subs = append(subs, fromStripeSubscription(it.Subscription()))
	}
	if err := it.Err(); err != nil {
		return nil, &ProviderError{Op: "list subscriptions", Err: err}
	}
	return subs, nil
}

func (p *StripeProvider) ActiveProductPrice(ctx context.Context) (*ProviderProduct, error) {
	params := &stripe.ProductListParams{
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.AddExpand("data.default_price")

	it := product.List(params)
	for it.Next() {
		pr := it.Product()
		if pr.DefaultPrice == nil {
			continue
		}
		return &ProviderProduct{
			ID:      pr.ID,
			Name:    pr.Name,
			PriceID: pr.DefaultPrice.ID,
		}, nil
	}
	if err := it.Err(); err != nil {
		return nil, &ProviderError{Op: "list products", Err: err}
	}
	return nil, &NotFoundError{What: "active product with price"}
}

func (p *StripeProvider) FindPromoCoupon(ctx context.Context, code string) (*ProviderCoupon, error) {
	params := &stripe.PromotionCodeListParams{
		Code:   stripe.String(code),
		Active: stripe.Bool(true),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := promotioncode.List(params)
	for it.Next() {
		pc := it.PromotionCode()
		if pc.Coupon == nil {
			continue
		}
		return &ProviderCoupon{
			ID:         pc.Coupon.ID,
			Code:       pc.Code,
			PercentOff: pc.Coupon.PercentOff,
			AmountOff:  pc.Coupon.AmountOff,
		}, nil
	}
	if err := it.Err(); err != nil {
		return nil, &ProviderError{Op: "list promotion codes", Err: err}
	}
	return nil, &NotFoundError{What: "promotion code " + code}
}

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx

	c, err := customer.New(params)
	if err != nil {
		return "", &ProviderError{Op: "create customer", Err: err}
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateSubscription(ctx context.Context, customerRef, priceID string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerRef),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	params.Context = ctx

	sub, err := subscription.New(params)
	if err != nil {
		return nil, &ProviderError{Op: "create subscription", Err: err}
	}
	converted := fromStripeSubscription(sub)
	return &converted, nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (*ProviderSubscription, error) {
	var (
		sub *stripe.Subscription
		err error
	)
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		params.Context = ctx
		sub, err = subscription.Update(subscriptionRef, params)
	} else {
		params := &stripe.SubscriptionCancelParams{}
		params.Context = ctx
		sub, err = subscription.Cancel(subscriptionRef, params)
	}
	if err != nil {
		return nil, &ProviderError{Op: "cancel subscription", Err: err}
	}
	converted := fromStripeSubscription(sub)
	return &converted, nil
}

func fromStripeSubscription(sub *stripe.Subscription) ProviderSubscription {
	out := ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Created:           sub.Created,
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			converted := ProviderSubscriptionItem{
				CurrentPeriodStart: item.CurrentPeriodStart,
				CurrentPeriodEnd:   item.CurrentPeriodEnd,
			}
			if item.Price != nil {
				converted.PriceID = item.Price.ID
				if item.Price.Product != nil {
					converted.ProductID = item.Price.Product.ID
				}
			}
			out.Items = append(out.Items, converted)
		}
	}
	for _, d := range sub.Discounts {
		if d != nil && d.Coupon != nil {
			out.Discounts = append(out.Discounts, d.Coupon.ID)
		}
	}
	return out
}
