package billing

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stammtisch-app/stammtisch/app/models"
)

// SyncDuplicateProfiles converges the subscription fields of all accounts
// sharing the address onto the authoritative row: the ACTIVE one with the
// most recent subscription update. With no ACTIVE row nothing changes.
func (s *Service) SyncDuplicateProfiles(ctx context.Context, email string) error {
	_ = ctx
	return s.syncDuplicates(email)
}

func (s *Service) syncDuplicates(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil
	}

	rows, err := s.repo.ListUsersByEmail(email)
	if err != nil {
		return &InternalError{Op: "list accounts by email", Err: err}
	}
	if len(rows) < 2 {
		return nil
	}

	auth := pickAuthoritative(rows)
	if auth == nil {
		return nil
	}

	changed := 0
	for i := range rows {
		row := &rows[i]
		if row.ID == auth.ID || sameSubscription(row, auth) {
			continue
		}
		copySubscriptionFields(row, auth)
		if err := s.repo.SaveSubscription(row); err != nil {
			return &InternalError{Op: "save duplicate profile", Err: err}
		}
		changed++
	}
	if changed > 0 {
		log.Infof("billing: converged %d duplicate profile(s) for %s onto user %d", changed, email, auth.ID)
	}
	return nil
}

// RunDedupSweep converges every address with more than one account row.
// Returns how many addresses were processed.
func (s *Service) RunDedupSweep(ctx context.Context) (int, error) {
	emails, err := s.repo.ListDuplicateEmails()
	if err != nil {
		return 0, &InternalError{Op: "list duplicate emails", Err: err}
	}
	for _, email := range emails {
		if err := s.SyncDuplicateProfiles(ctx, email); err != nil {
			return 0, err
		}
	}
	return len(emails), nil
}

func pickAuthoritative(rows []models.User) *models.User {
	var best *models.User
	for i := range rows {
		row := &rows[i]
		if row.SubscriptionStatus != models.SubscriptionActive {
			continue
		}
		if best == nil || laterUpdate(row, best) {
			best = row
		}
	}
	return best
}

func laterUpdate(a, b *models.User) bool {
	if a.SubscriptionUpdatedAt == nil {
		return false
	}
	if b.SubscriptionUpdatedAt == nil {
		return true
	}
	return a.SubscriptionUpdatedAt.After(*b.SubscriptionUpdatedAt)
}

func sameSubscription(a, b *models.User) bool {
	return a.SubscriptionStatus == b.SubscriptionStatus &&
		a.BillingCustomerRef == b.BillingCustomerRef &&
		a.BillingSubscriptionRef == b.BillingSubscriptionRef &&
		a.BillingProductRef == b.BillingProductRef &&
		equalTimePtr(a.PeriodStart, b.PeriodStart) &&
		equalTimePtr(a.PeriodEnd, b.PeriodEnd) &&
		a.CancelAtPeriodEnd == b.CancelAtPeriodEnd
}

func copySubscriptionFields(dst, src *models.User) {
	dst.SubscriptionStatus = src.SubscriptionStatus
	dst.BillingCustomerRef = src.BillingCustomerRef
	dst.BillingSubscriptionRef = src.BillingSubscriptionRef
	dst.BillingProductRef = src.BillingProductRef
	dst.PeriodStart = cloneTimePtr(src.PeriodStart)
	dst.PeriodEnd = cloneTimePtr(src.PeriodEnd)
	dst.CancelAtPeriodEnd = src.CancelAtPeriodEnd
	dst.SubscriptionUpdatedAt = cloneTimePtr(src.SubscriptionUpdatedAt)
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
