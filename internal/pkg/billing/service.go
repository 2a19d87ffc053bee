package billing

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stammtisch-app/stammtisch/app/models"
	"gorm.io/gorm"
)

// Notifier records a user-facing notification. The application repository
// satisfies this; a nil notifier disables notifications.
type Notifier interface {
	Notify(userID uint, kind, content string) error
}

// SeenCache is the optional fast dedup path in front of the event table.
type SeenCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string, window time.Duration) error
}

// Config tunes the service. Zero values fall back to the defaults below.
type Config struct {
	// Freshness is how recently an account must have been updated for the
	// reconciler to skip the provider round trip.
	Freshness time.Duration

	// ProviderTimeout bounds individual provider API calls.
	ProviderTimeout time.Duration

	// ListLimit caps how many subscriptions the reconciler fetches.
	ListLimit int

	// LookupTTL bounds the product/price and coupon caches.
	LookupTTL time.Duration

	// DedupWindow is how long successfully processed event ids stay in the
	// fast dedup cache.
	DedupWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.Freshness <= 0 {
		c.Freshness = 5 * time.Minute
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 15 * time.Second
	}
	if c.ListLimit <= 0 {
		c.ListLimit = 10
	}
	if c.LookupTTL <= 0 {
		c.LookupTTL = 12 * time.Hour
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 24 * time.Hour
	}
	return c
}

// Service is the subscription state core: it ingests provider webhooks,
// reconciles accounts on demand, keeps duplicate profiles converged and
// carries the admin override path. All subscription writes go through it.
type Service struct {
	repo     Repository
	provider Provider
	notifier Notifier
	seen     SeenCache
	lookups  *lookups
	cfg      Config
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService builds a service from its collaborators. notifier and seen may
// be nil.
func NewService(repo Repository, provider Provider, notifier Notifier, seen SeenCache, cfg Config) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		repo:     repo,
		provider: provider,
		notifier: notifier,
		seen:     seen,
		cfg:      cfg,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
	s.lookups = newLookups(provider, cfg.LookupTTL, cfg.ProviderTimeout, s.clock)
	return s
}

// NewServiceFromDB is the production constructor.
func NewServiceFromDB(db *gorm.DB, provider Provider, notifier Notifier, seen SeenCache, cfg Config) *Service {
	return NewService(NewRepository(db), provider, notifier, seen, cfg)
}

func (s *Service) clock() time.Time {
	return s.now()
}

// lockKey serializes all writers for one account. Webhook handlers, the
// reconciler and admin overrides lock the customer reference; accounts
// without one lock a per-user key.
func (s *Service) lockKey(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func userLockKey(u *models.User) string {
	if u.BillingCustomerRef != "" {
		return u.BillingCustomerRef
	}
	return "user:" + strconv.FormatUint(uint64(u.ID), 10)
}

func (s *Service) userByID(id uint) (*models.User, error) {
	user, err := s.repo.GetUserByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{What: "user " + strconv.FormatUint(uint64(id), 10)}
		}
		return nil, &InternalError{Op: "load user", Err: err}
	}
	return user, nil
}

func (s *Service) notify(userID uint, kind, content string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(userID, kind, content); err != nil {
		log.Warnf("billing: notify user %d (%s): %v", userID, kind, err)
	}
}

// isFresh reports whether the account was reconciled recently enough to skip
// the provider round trip.
func (s *Service) isFresh(user *models.User) bool {
	if user.SubscriptionUpdatedAt == nil {
		return false
	}
	return s.now().Sub(*user.SubscriptionUpdatedAt) < s.cfg.Freshness
}

// applySnapshot writes a validated remote snapshot onto the account in one
// atomic update and propagates it to duplicate profiles. The caller must
// hold the account's lock.
func (s *Service) applySnapshot(user *models.User, snap *RemoteSubscriptionSnapshot) error {
	start := snap.PeriodStart
	end := snap.PeriodEnd
	now := s.now()

	user.SubscriptionStatus = statusFromRemote(snap.Status)
	user.BillingSubscriptionRef = snap.SubscriptionID
	user.BillingProductRef = snap.ProductRef
	user.PeriodStart = &start
	user.PeriodEnd = &end
	user.CancelAtPeriodEnd = snap.CancelAtPeriodEnd
	user.SubscriptionUpdatedAt = &now

	if err := s.repo.SaveSubscription(user); err != nil {
		return &InternalError{Op: "save subscription", Err: err}
	}

	if err := s.syncDuplicates(user.Email); err != nil {
		log.Warnf("billing: duplicate sync for %s: %v", user.Email, err)
	}
	return nil
}

// markCancelled transitions the account to CANCELLED with a grace period
// running until endUnix. When the remote carries no final period end, a
// stored one is kept; without either the transition fails closed. The
// caller must hold the account's lock.
func (s *Service) markCancelled(user *models.User, endUnix int64, cancelAtPeriodEnd bool) error {
	if endUnix > 0 {
		end := time.Unix(endUnix, 0).UTC()
		user.PeriodEnd = &end
	} else if user.PeriodEnd == nil {
		return &ValidationError{Reason: "final period end missing"}
	}

	now := s.now()
	user.SubscriptionStatus = models.SubscriptionCancelled
	user.CancelAtPeriodEnd = cancelAtPeriodEnd
	user.SubscriptionUpdatedAt = &now

	if err := s.repo.SaveSubscription(user); err != nil {
		return &InternalError{Op: "save subscription", Err: err}
	}

	if err := s.syncDuplicates(user.Email); err != nil {
		log.Warnf("billing: duplicate sync for %s: %v", user.Email, err)
	}
	return nil
}
