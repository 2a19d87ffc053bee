package billing

import (
	"context"
	"strings"
	"time"

	"github.com/stammtisch-app/stammtisch/internal/pkg/ttlcache"
)

const activeProductKey = "active_product_price"

// lookups caches slow-moving provider catalog data (the sold product with
// its price, and promotion coupons) for the configured TTL.
type lookups struct {
	provider Provider
	timeout  time.Duration
	products *ttlcache.Cache[string, ProviderProduct]
	coupons  *ttlcache.Cache[string, ProviderCoupon]
}

func newLookups(provider Provider, ttl, timeout time.Duration, now func() time.Time) *lookups {
	return &lookups{
		provider: provider,
		timeout:  timeout,
		products: ttlcache.New[string, ProviderProduct](ttl, now),
		coupons:  ttlcache.New[string, ProviderCoupon](ttl, now),
	}
}

// ActiveProductPrice returns the currently sold product and price, cached.
func (s *Service) ActiveProductPrice(ctx context.Context) (ProviderProduct, error) {
	return s.lookups.products.GetOrLoad(activeProductKey, func() (ProviderProduct, error) {
		cctx, cancel := context.WithTimeout(ctx, s.lookups.timeout)
		defer cancel()
		p, err := s.provider.ActiveProductPrice(cctx)
		if err != nil {
			return ProviderProduct{}, err
		}
		return *p, nil
	})
}

// PromoCoupon resolves a promotion code, cached per code.
func (s *Service) PromoCoupon(ctx context.Context, code string) (ProviderCoupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return ProviderCoupon{}, &ValidationError{Reason: "promotion code required"}
	}
	return s.lookups.coupons.GetOrLoad(strings.ToLower(code), func() (ProviderCoupon, error) {
		cctx, cancel := context.WithTimeout(ctx, s.lookups.timeout)
		defer cancel()
		c, err := s.provider.FindPromoCoupon(cctx, code)
		if err != nil {
			return ProviderCoupon{}, err
		}
		return *c, nil
	})
}

// InvalidateLookups drops the cached catalog data, forcing fresh provider
// reads on the next call.
func (s *Service) InvalidateLookups() {
	s.lookups.products.Purge()
	s.lookups.coupons.Purge()
}
