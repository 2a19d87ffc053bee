package billing

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
	"gorm.io/gorm"
)

// ReconcileCustomer pulls the customer's subscriptions from the provider and
// applies the most relevant one to the account. Recently updated accounts
// are returned as-is unless force is set.
func (s *Service) ReconcileCustomer(ctx context.Context, customerRef string, force bool) (*models.User, error) {
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return nil, &ValidationError{Reason: "customer reference required"}
	}

	unlock := s.lockKey(ref)
	defer unlock()

	user, err := s.repo.GetUserByCustomerRef(ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{What: "account for customer " + ref}
		}
		return nil, &InternalError{Op: "load account", Err: err}
	}

	if !force && s.isFresh(user) {
		return user, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	subs, err := s.provider.ListSubscriptions(cctx, ref, s.cfg.ListLimit)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, &NotFoundError{What: "subscription for customer " + ref}
	}

	snap, err := snapshotFromProvider(pickRelevantSubscription(subs, s.now()))
	if err != nil {
		return nil, err
	}
	if err := s.applySnapshot(user, snap); err != nil {
		return nil, err
	}
	return user, nil
}

// SyncUser reconciles the account on behalf of the user themselves, honoring
// the freshness window so repeated refreshes stay cheap.
func (s *Service) SyncUser(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userByID(userID)
	if err != nil {
		return nil, err
	}
	if user.BillingCustomerRef == "" {
		return nil, &NotFoundError{What: "subscription for user " + strconv.FormatUint(uint64(userID), 10)}
	}
	return s.ReconcileCustomer(ctx, user.BillingCustomerRef, false)
}

// pickRelevantSubscription chooses which of several subscriptions represents
// the customer's state: an active one wins, then a cancelled one whose paid
// period still runs, then whatever the provider listed first.
func pickRelevantSubscription(subs []ProviderSubscription, now time.Time) ProviderSubscription {
	for _, sub := range subs {
		if strings.EqualFold(sub.Status, "active") {
			return sub
		}
	}
	for _, sub := range subs {
		if !isCanceledStatus(sub.Status) {
			continue
		}
		if end := sub.periodEnd(); end > 0 && time.Unix(end, 0).After(now) {
			return sub
		}
	}
	return subs[0]
}

func isCanceledStatus(status string) bool {
	return strings.EqualFold(status, "canceled") || strings.EqualFold(status, "cancelled")
}
