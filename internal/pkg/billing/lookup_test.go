package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveProductPrice_CachedForTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	provider := newFakeProvider()
	provider.product = &ProviderProduct{ID: "prod_1", PriceID: "price_1"}

	s, _ := newTestService(newFakeRepo(), provider)
	s.now = func() time.Time { return now }

	p, err := s.ActiveProductPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "prod_1", p.ID)
	assert.Equal(t, 1, provider.productCalls)

	// Within the TTL the provider is not asked again, even if the catalog
	// changed remotely.
	provider.product = &ProviderProduct{ID: "prod_2", PriceID: "price_2"}
	now = now.Add(11 * time.Hour)

	p, err = s.ActiveProductPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "prod_1", p.ID)
	assert.Equal(t, 1, provider.productCalls)

	// Past the TTL the new catalog state is picked up.
	now = now.Add(2 * time.Hour)
	p, err = s.ActiveProductPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "prod_2", p.ID)
	assert.Equal(t, 2, provider.productCalls)
}

func TestActiveProductPrice_ErrorNotCached(t *testing.T) {
	provider := newFakeProvider()
	provider.productErr = &ProviderError{Op: "list products", Err: context.DeadlineExceeded}

	s, _ := newTestService(newFakeRepo(), provider)

	_, err := s.ActiveProductPrice(context.Background())
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)

	provider.productErr = nil
	provider.product = &ProviderProduct{ID: "prod_1", PriceID: "price_1"}

	p, err := s.ActiveProductPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "prod_1", p.ID)
	assert.Equal(t, 2, provider.productCalls)
}

func TestPromoCoupon_CachedPerCode(t *testing.T) {
	provider := newFakeProvider()
	provider.coupons["sommer24"] = &ProviderCoupon{ID: "coupon_1", Code: "SOMMER24", PercentOff: 20}

	s, _ := newTestService(newFakeRepo(), provider)

	c, err := s.PromoCoupon(context.Background(), "SOMMER24")
	require.NoError(t, err)
	assert.Equal(t, "coupon_1", c.ID)

	// Case-insensitive cache hit.
	c, err = s.PromoCoupon(context.Background(), "sommer24")
	require.NoError(t, err)
	assert.Equal(t, "coupon_1", c.ID)
	assert.Equal(t, 1, provider.couponCalls)
}

func TestInvalidateLookups_DropsProductAndCoupons(t *testing.T) {
	provider := newFakeProvider()
	provider.product = &ProviderProduct{ID: "prod_1", PriceID: "price_1"}
	provider.coupons["sommer24"] = &ProviderCoupon{ID: "coupon_1", Code: "SOMMER24", PercentOff: 20}

	s, _ := newTestService(newFakeRepo(), provider)

	_, err := s.ActiveProductPrice(context.Background())
	require.NoError(t, err)
	_, err = s.PromoCoupon(context.Background(), "SOMMER24")
	require.NoError(t, err)

	s.InvalidateLookups()

	_, err = s.ActiveProductPrice(context.Background())
	require.NoError(t, err)
	_, err = s.PromoCoupon(context.Background(), "SOMMER24")
	require.NoError(t, err)

	assert.Equal(t, 2, provider.productCalls)
	assert.Equal(t, 2, provider.couponCalls)
}

func TestPromoCoupon_UnknownCode(t *testing.T) {
	s, _ := newTestService(newFakeRepo(), newFakeProvider())

	_, err := s.PromoCoupon(context.Background(), "NOPE")
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = s.PromoCoupon(context.Background(), "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
