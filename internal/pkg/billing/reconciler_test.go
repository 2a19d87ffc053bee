package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickRelevantSubscription(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	future := now.Add(24 * time.Hour).Unix()
	past := now.Add(-24 * time.Hour).Unix()

	active := ProviderSubscription{ID: "sub_active", Status: "active"}
	canceledFuture := ProviderSubscription{ID: "sub_grace", Status: "canceled", CurrentPeriodEnd: future}
	canceledItemFuture := ProviderSubscription{
		ID:     "sub_grace_item",
		Status: "canceled",
		Items:  []ProviderSubscriptionItem{{CurrentPeriodEnd: future}},
	}
	canceledPast := ProviderSubscription{ID: "sub_lapsed", Status: "canceled", CurrentPeriodEnd: past}
	trialing := ProviderSubscription{ID: "sub_trial", Status: "trialing"}

	tests := []struct {
		name string
		subs []ProviderSubscription
		want string
	}{
		{"active wins", []ProviderSubscription{canceledFuture, active, trialing}, "sub_active"},
		{"canceled with future end beats others", []ProviderSubscription{trialing, canceledFuture}, "sub_grace"},
		{"item level end counts", []ProviderSubscription{trialing, canceledItemFuture}, "sub_grace_item"},
		{"lapsed canceled does not win", []ProviderSubscription{trialing, canceledPast}, "sub_trial"},
		{"fallback to first", []ProviderSubscription{canceledPast, {ID: "sub_x", Status: "incomplete"}}, "sub_lapsed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickRelevantSubscription(tt.subs, now)
			assert.Equal(t, tt.want, got.ID)
		})
	}
}

func TestReconcileCustomer_AppliesRemoteState(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser(models.User{Email: "a@example.com", BillingCustomerRef: "cus_1"})

	provider := newFakeProvider()
	provider.subs["cus_1"] = []ProviderSubscription{{
		ID:     "sub_1",
		Status: "active",
		Items: []ProviderSubscriptionItem{{
			PriceID:            "price_1",
			ProductID:          "prod_1",
			CurrentPeriodStart: 1_700_000_000,
			CurrentPeriodEnd:   1_702_592_000,
		}},
	}}

	s, _ := newTestService(repo, provider)
	got, err := s.ReconcileCustomer(context.Background(), "cus_1", false)
	require.NoError(t, err)

	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, models.SubscriptionActive, got.SubscriptionStatus)
	assert.Equal(t, "sub_1", got.BillingSubscriptionRef)
	assert.Equal(t, "prod_1", got.BillingProductRef)

	stored := repo.get(user.ID)
	assert.Equal(t, models.SubscriptionActive, stored.SubscriptionStatus)
	require.NotNil(t, stored.PeriodEnd)
	assert.Equal(t, time.Unix(1_702_592_000, 0).UTC(), stored.PeriodEnd.UTC())
}

func TestReconcileCustomer_UnknownCustomer(t *testing.T) {
	s, _ := newTestService(newFakeRepo(), newFakeProvider())

	_, err := s.ReconcileCustomer(context.Background(), "cus_missing", false)
	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestReconcileCustomer_NoRemoteSubscriptions(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(models.User{Email: "a@example.com", BillingCustomerRef: "cus_1"})

	s, _ := newTestService(repo, newFakeProvider())
	_, err := s.ReconcileCustomer(context.Background(), "cus_1", false)

	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestReconcileCustomer_FreshnessSkipsProvider(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	recently := now.Add(-time.Minute)

	repo := newFakeRepo()
	repo.addUser(models.User{
		Email:                 "a@example.com",
		BillingCustomerRef:    "cus_1",
		SubscriptionStatus:    models.SubscriptionActive,
		SubscriptionUpdatedAt: &recently,
	})

	provider := newFakeProvider()
	s, _ := newTestService(repo, provider)
	s.now = func() time.Time { return now }

	_, err := s.ReconcileCustomer(context.Background(), "cus_1", false)
	require.NoError(t, err)
	assert.Equal(t, 0, provider.listCalls)

	// Past the window the provider is consulted again.
	s.now = func() time.Time { return now.Add(6 * time.Minute) }
	provider.subs["cus_1"] = []ProviderSubscription{validRemoteSub()}

	_, err = s.ReconcileCustomer(context.Background(), "cus_1", false)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.listCalls)
}

func TestReconcileCustomer_ForceBypassesFreshness(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	recently := now.Add(-time.Minute)

	repo := newFakeRepo()
	repo.addUser(models.User{
		Email:                 "a@example.com",
		BillingCustomerRef:    "cus_1",
		SubscriptionStatus:    models.SubscriptionActive,
		SubscriptionUpdatedAt: &recently,
	})

	provider := newFakeProvider()
	provider.subs["cus_1"] = []ProviderSubscription{validRemoteSub()}

	s, _ := newTestService(repo, provider)
	s.now = func() time.Time { return now }

	_, err := s.ReconcileCustomer(context.Background(), "cus_1", true)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.listCalls)
}

func TestReconcileCustomer_ValidationFailureLeavesStateUntouched(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser(models.User{
		Email:              "a@example.com",
		BillingCustomerRef: "cus_1",
		SubscriptionStatus: models.SubscriptionActive,
	})

	broken := validRemoteSub()
	broken.Items = nil

	provider := newFakeProvider()
	provider.subs["cus_1"] = []ProviderSubscription{broken}

	s, _ := newTestService(repo, provider)
	_, err := s.ReconcileCustomer(context.Background(), "cus_1", true)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, models.SubscriptionActive, repo.get(user.ID).SubscriptionStatus)
	assert.Empty(t, repo.get(user.ID).BillingSubscriptionRef)
}

func TestSyncUser_WithoutCustomerRef(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser(models.User{Email: "a@example.com"})

	s, _ := newTestService(repo, newFakeProvider())
	_, err := s.SyncUser(context.Background(), user.ID)

	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
}
