package billing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository that hands out copies, like a real
// database round trip would.
type fakeRepo struct {
	mu          sync.Mutex
	users       map[uint]models.User
	nextUserID  uint
	events      map[string]models.BillingWebhookEvent
	nextEventID uint
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:  make(map[uint]models.User),
		events: make(map[string]models.BillingWebhookEvent),
	}
}

func (r *fakeRepo) addUser(u models.User) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextUserID++
	u.ID = r.nextUserID
	r.users[u.ID] = u
	return u
}

func (r *fakeRepo) get(id uint) models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id]
}

func (r *fakeRepo) GetUserByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *fakeRepo) GetUserByCustomerRef(ref string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.User
	for id := range r.users {
		u := r.users[id]
		if u.BillingCustomerRef == ref && (best == nil || u.ID < best.ID) {
			best = &u
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return best, nil
}

func (r *fakeRepo) ListUsersByEmail(email string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) ListDuplicateEmails() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, u := range r.users {
		counts[strings.ToLower(u.Email)]++
	}
	var out []string
	for email, n := range counts {
		if n > 1 {
			out = append(out, email)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeRepo) ListLapsedCancelled(now time.Time) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.SubscriptionStatus == models.SubscriptionCancelled && u.PeriodEnd != nil && !u.PeriodEnd.After(now) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) CreateUser(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextUserID++
	user.ID = r.nextUserID
	r.users[user.ID] = *user
	return nil
}

func (r *fakeRepo) SaveSubscription(user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.SubscriptionStatus = user.SubscriptionStatus
	stored.BillingCustomerRef = user.BillingCustomerRef
	stored.BillingSubscriptionRef = user.BillingSubscriptionRef
	stored.BillingProductRef = user.BillingProductRef
	stored.PeriodStart = user.PeriodStart
	stored.PeriodEnd = user.PeriodEnd
	stored.CancelAtPeriodEnd = user.CancelAtPeriodEnd
	stored.SubscriptionUpdatedAt = user.SubscriptionUpdatedAt
	r.users[user.ID] = stored
	return nil
}

func (r *fakeRepo) RecordWebhookEvent(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.events[event.EventID]; ok {
		return false, &stored, nil
	}
	r.nextEventID++
	event.ID = r.nextEventID
	r.events[event.EventID] = *event
	stored := *event
	return true, &stored, nil
}

func (r *fakeRepo) MarkWebhookProcessed(id uint, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, stored := range r.events {
		if stored.ID == id {
			now := time.Now()
			stored.ProcessedAt = &now
			stored.ProcessingError = processingError
			r.events[key] = stored
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type cancelCall struct {
	ref         string
	atPeriodEnd bool
}

type fakeProvider struct {
	mu           sync.Mutex
	subs         map[string][]ProviderSubscription
	listErr      error
	listCalls    int
	product      *ProviderProduct
	productErr   error
	productCalls int
	coupons      map[string]*ProviderCoupon
	couponCalls  int
	customerRef  string
	cancelResult *ProviderSubscription
	cancels      []cancelCall
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		subs:        make(map[string][]ProviderSubscription),
		coupons:     make(map[string]*ProviderCoupon),
		customerRef: "cus_fake",
	}
}

func (p *fakeProvider) ListSubscriptions(ctx context.Context, customerRef string, limit int) ([]ProviderSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	if p.listErr != nil {
		return nil, p.listErr
	}
	subs := p.subs[customerRef]
	if len(subs) > limit {
		subs = subs[:limit]
	}
	return subs, nil
}

func (p *fakeProvider) ActiveProductPrice(ctx context.Context) (*ProviderProduct, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.productCalls++
	if p.productErr != nil {
		return nil, p.productErr
	}
	if p.product == nil {
		return nil, &NotFoundError{What: "active product with price"}
	}
	out := *p.product
	return &out, nil
}

func (p *fakeProvider) FindPromoCoupon(ctx context.Context, code string) (*ProviderCoupon, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.couponCalls++
	c, ok := p.coupons[strings.ToLower(code)]
	if !ok {
		return nil, &NotFoundError{What: "promotion code " + code}
	}
	out := *c
	return &out, nil
}

func (p *fakeProvider) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	return p.customerRef, nil
}

func (p *fakeProvider) CreateSubscription(ctx context.Context, customerRef, priceID string) (*ProviderSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := ProviderSubscription{
		ID:     "sub_created",
		Status: "active",
		Items:  []ProviderSubscriptionItem{{PriceID: priceID, ProductID: "prod_fake", CurrentPeriodStart: 1000, CurrentPeriodEnd: 2000}},
	}
	p.subs[customerRef] = []ProviderSubscription{sub}
	return &sub, nil
}

func (p *fakeProvider) CancelSubscription(ctx context.Context, subscriptionRef string, atPeriodEnd bool) (*ProviderSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels = append(p.cancels, cancelCall{ref: subscriptionRef, atPeriodEnd: atPeriodEnd})
	if p.cancelResult != nil {
		out := *p.cancelResult
		return &out, nil
	}
	return &ProviderSubscription{ID: subscriptionRef, Status: "canceled"}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *fakeNotifier) Notify(userID uint, kind, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.kinds...)
}

func newTestService(repo *fakeRepo, provider *fakeProvider) (*Service, *fakeNotifier) {
	notifier := &fakeNotifier{}
	s := NewService(repo, provider, notifier, nil, Config{})
	return s, notifier
}
