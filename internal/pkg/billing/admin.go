package billing

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stammtisch-app/stammtisch/app/models"
)

// GrantSubscription subscribes the user to the currently sold product on the
// provider side and reconciles the result back, so the granted state flows
// through the same path as a self-service purchase.
func (s *Service) GrantSubscription(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userByID(userID)
	if err != nil {
		return nil, err
	}

	if user.BillingCustomerRef == "" {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		ref, err := s.provider.CreateCustomer(cctx, user.Email, user.Name)
		cancel()
		if err != nil {
			return nil, err
		}
		user.BillingCustomerRef = ref
		if err := s.repo.SaveSubscription(user); err != nil {
			return nil, &InternalError{Op: "save customer reference", Err: err}
		}
	}

	product, err := s.ActiveProductPrice(ctx)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	_, err = s.provider.CreateSubscription(cctx, user.BillingCustomerRef, product.PriceID)
	cancel()
	if err != nil {
		return nil, err
	}

	updated, err := s.ReconcileCustomer(ctx, user.BillingCustomerRef, true)
	if err != nil {
		return nil, err
	}

	s.notify(updated.ID, models.NotificationAccessGranted, "Your membership is now active.")
	return updated, nil
}

// CancelSubscription cancels the user's subscription at period end. The
// account moves to CANCELLED and keeps access until the paid period lapses.
func (s *Service) CancelSubscription(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userByID(userID)
	if err != nil {
		return nil, err
	}
	if user.BillingSubscriptionRef == "" {
		return nil, &NotFoundError{What: "subscription for user"}
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	sub, err := s.provider.CancelSubscription(cctx, user.BillingSubscriptionRef, true)
	cancel()
	if err != nil {
		return nil, err
	}

	unlock := s.lockKey(userLockKey(user))
	defer unlock()

	if err := s.markCancelled(user, sub.periodEnd(), true); err != nil {
		return nil, err
	}
	return user, nil
}

// RevokeAccess expires the account immediately, skipping any grace period.
// The provider-side subscription, if any, is cancelled right away too.
func (s *Service) RevokeAccess(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userByID(userID)
	if err != nil {
		return nil, err
	}

	if user.BillingSubscriptionRef != "" {
		cctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		_, err := s.provider.CancelSubscription(cctx, user.BillingSubscriptionRef, false)
		cancel()
		if err != nil {
			log.Warnf("billing: cancel on revoke for user %d: %v", userID, err)
		}
	}

	unlock := s.lockKey(userLockKey(user))
	defer unlock()

	now := s.now()
	user.SubscriptionStatus = models.SubscriptionExpired
	user.CancelAtPeriodEnd = false
	user.SubscriptionUpdatedAt = &now
	if err := s.repo.SaveSubscription(user); err != nil {
		return nil, &InternalError{Op: "save subscription", Err: err}
	}

	s.notify(user.ID, models.NotificationAccessRevoked, "Your membership access has been revoked.")
	return user, nil
}

// EnsureAccess lazily expires a lapsed grace period before answering whether
// the user currently holds paid access. Called on authenticated reads, so
// stale CANCELLED rows expire without waiting for the sweep.
func (s *Service) EnsureAccess(ctx context.Context, user *models.User) (bool, error) {
	_ = ctx
	now := s.now()
	if user.SubscriptionStatus == models.SubscriptionCancelled && user.GraceElapsed(now) {
		if _, err := s.expireLapsed(user); err != nil {
			return false, err
		}
	}
	return user.HasPaidAccess(now), nil
}

// RunExpirySweep expires every CANCELLED account whose grace period lapsed.
// Returns how many accounts were expired.
func (s *Service) RunExpirySweep(ctx context.Context) (int, error) {
	_ = ctx
	rows, err := s.repo.ListLapsedCancelled(s.now())
	if err != nil {
		return 0, &InternalError{Op: "list lapsed accounts", Err: err}
	}
	expired := 0
	for i := range rows {
		did, err := s.expireLapsed(&rows[i])
		if err != nil {
			return expired, err
		}
		if did {
			expired++
		}
	}
	return expired, nil
}

// expireLapsed moves a lapsed CANCELLED account to EXPIRED. It re-reads the
// row under the lock, so a webhook revival that landed between listing and
// locking wins; the passed row is refreshed either way.
func (s *Service) expireLapsed(user *models.User) (bool, error) {
	unlock := s.lockKey(userLockKey(user))
	defer unlock()

	current, err := s.userByID(user.ID)
	if err != nil {
		return false, err
	}
	if current.SubscriptionStatus != models.SubscriptionCancelled || !current.GraceElapsed(s.now()) {
		*user = *current
		return false, nil
	}

	now := s.now()
	current.SubscriptionStatus = models.SubscriptionExpired
	current.SubscriptionUpdatedAt = &now
	if err := s.repo.SaveSubscription(current); err != nil {
		return false, &InternalError{Op: "save subscription", Err: err}
	}

	s.notify(current.ID, models.NotificationSubscriptionExpired, "Your membership has expired.")
	*user = *current
	return true, nil
}
