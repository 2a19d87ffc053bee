package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/stammtisch-app/stammtisch/app/models"
	"gorm.io/gorm"
)

// subscriptionEventPayload mirrors the subscription object as delivered in
// webhook payloads. Billing periods may appear on the subscription or on its
// items depending on the provider API version; both are read.
type subscriptionEventPayload struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	CustomerEmail      string `json:"customer_email"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Created            int64  `json:"created"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID      string `json:"id"`
				Product string `json:"product"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func parseSubscriptionPayload(raw []byte) (*subscriptionEventPayload, error) {
	var p subscriptionEventPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &ValidationError{Reason: "malformed subscription payload"}
	}
	return &p, nil
}

func (p *subscriptionEventPayload) toProviderSubscription() ProviderSubscription {
	sub := ProviderSubscription{
		ID:                 p.ID,
		Status:             p.Status,
		CancelAtPeriodEnd:  p.CancelAtPeriodEnd,
		CurrentPeriodStart: p.CurrentPeriodStart,
		CurrentPeriodEnd:   p.CurrentPeriodEnd,
		Created:            p.Created,
	}
	for _, item := range p.Items.Data {
		sub.Items = append(sub.Items, ProviderSubscriptionItem{
			PriceID:            item.Price.ID,
			ProductID:          item.Price.Product,
			CurrentPeriodStart: item.CurrentPeriodStart,
			CurrentPeriodEnd:   item.CurrentPeriodEnd,
		})
	}
	return sub
}

type checkoutSessionPayload struct {
	Customer        string `json:"customer"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Subscription string `json:"subscription"`
}

// handleSubscriptionCreated attaches a new remote subscription to the account
// with the matching customer reference, falling back to the payload email.
// An unknown customer with an email gets an account created for it, so a
// purchase completed before signup still lands somewhere.
func (s *Service) handleSubscriptionCreated(ctx context.Context, raw []byte) error {
	_ = ctx
	p, err := parseSubscriptionPayload(raw)
	if err != nil {
		return err
	}
	customerRef := strings.TrimSpace(p.Customer)
	if customerRef == "" {
		return &ValidationError{Reason: "subscription payload missing customer"}
	}

	unlock := s.lockKey(customerRef)
	defer unlock()

	user, err := s.repo.GetUserByCustomerRef(customerRef)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return &InternalError{Op: "load account", Err: err}
		}
		user, err = s.findOrCreateByEmail(p.CustomerEmail, customerRef)
		if err != nil {
			return err
		}
	}

	snap, err := snapshotFromProvider(p.toProviderSubscription())
	if err != nil {
		return err
	}
	user.BillingCustomerRef = customerRef
	return s.applySnapshot(user, snap)
}

// handleSubscriptionUpdated applies the event's subscription state to the
// account owning the customer reference. Unknown customers fail with a
// NotFoundError so the provider redelivers once the created event lands.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, raw []byte) error {
	_ = ctx
	p, err := parseSubscriptionPayload(raw)
	if err != nil {
		return err
	}
	customerRef := strings.TrimSpace(p.Customer)
	if customerRef == "" {
		return &ValidationError{Reason: "subscription payload missing customer"}
	}

	unlock := s.lockKey(customerRef)
	defer unlock()

	user, err := s.repo.GetUserByCustomerRef(customerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{What: "account for customer " + customerRef}
		}
		return &InternalError{Op: "load account", Err: err}
	}

	snap, err := snapshotFromProvider(p.toProviderSubscription())
	if err != nil {
		return err
	}
	return s.applySnapshot(user, snap)
}

// handleSubscriptionDeleted moves the account to CANCELLED with the remote's
// final period end as the grace period marker.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, raw []byte) error {
	_ = ctx
	p, err := parseSubscriptionPayload(raw)
	if err != nil {
		return err
	}
	customerRef := strings.TrimSpace(p.Customer)
	if customerRef == "" {
		return &ValidationError{Reason: "subscription payload missing customer"}
	}

	unlock := s.lockKey(customerRef)
	defer unlock()

	user, err := s.repo.GetUserByCustomerRef(customerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{What: "account for customer " + customerRef}
		}
		return &InternalError{Op: "load account", Err: err}
	}

	if p.ID != "" {
		user.BillingSubscriptionRef = p.ID
	}
	return s.markCancelled(user, p.toProviderSubscription().periodEnd(), false)
}

// handleCheckoutCompleted attaches the checkout's customer reference to the
// buyer's account and forces a reconcile, covering the window where the
// subscription events raced ahead of the session event or vice versa.
func (s *Service) handleCheckoutCompleted(ctx context.Context, raw []byte) error {
	var p checkoutSessionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return &ValidationError{Reason: "malformed checkout payload"}
	}

	customerRef := strings.TrimSpace(p.Customer)
	email := strings.TrimSpace(p.CustomerDetails.Email)
	if email == "" {
		email = strings.TrimSpace(p.CustomerEmail)
	}
	if customerRef == "" && email == "" {
		return &ValidationError{Reason: "checkout payload carries neither customer nor email"}
	}

	if customerRef != "" {
		if _, err := s.repo.GetUserByCustomerRef(customerRef); err == nil {
			_, err = s.ReconcileCustomer(ctx, customerRef, true)
			return err
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return &InternalError{Op: "load account", Err: err}
		}
	}

	user, err := s.findOrCreateByEmail(email, customerRef)
	if err != nil {
		return err
	}
	if customerRef == "" {
		// Nothing to reconcile against yet; the subscription events will
		// carry the customer reference.
		return nil
	}

	user.BillingCustomerRef = customerRef
	if err := s.repo.SaveSubscription(user); err != nil {
		return &InternalError{Op: "save subscription", Err: err}
	}
	_, err = s.ReconcileCustomer(ctx, customerRef, true)
	return err
}

// findOrCreateByEmail resolves the oldest account for the address, creating
// a placeholder account when none exists. Fails closed without an email.
func (s *Service) findOrCreateByEmail(email, customerRef string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, &ValidationError{Reason: "no account for customer and payload carries no email"}
	}

	rows, err := s.repo.ListUsersByEmail(email)
	if err != nil {
		return nil, &InternalError{Op: "list accounts by email", Err: err}
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}

	name := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
	}
	user := &models.User{
		ExternalAuthID:     uuid.NewString(),
		Name:               name,
		Email:              email,
		Role:               models.ROLE_USER,
		SubscriptionStatus: models.SubscriptionFree,
		BillingCustomerRef: customerRef,
	}
	if err := s.repo.CreateUser(user); err != nil {
		return nil, &InternalError{Op: "create account", Err: err}
	}
	return user, nil
}
