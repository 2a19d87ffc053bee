package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test"

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature_Valid(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "type": "customer.subscription.updated", "data": {"object": {"id": "sub_1"}}}`)

	env, err := VerifyWebhookSignature(payload, signPayload(t, payload, testWebhookSecret), testWebhookSecret)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", env.ID)
	assert.Equal(t, EventSubscriptionUpdated, env.Type)
	assert.JSONEq(t, `{"id": "sub_1"}`, string(env.Object))
}

func TestVerifyWebhookSignature_Rejections(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "type": "customer.subscription.updated", "data": {"object": {}}}`)

	tests := []struct {
		name   string
		sig    string
		secret string
	}{
		{"wrong secret", signPayload(t, payload, "whsec_other"), testWebhookSecret},
		{"garbage header", "t=123,v1=deadbeef", testWebhookSecret},
		{"empty header", "", testWebhookSecret},
		{"no secret configured", signPayload(t, payload, testWebhookSecret), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := VerifyWebhookSignature(payload, tt.sig, tt.secret)
			assert.Nil(t, env)

			var aerr *AuthenticityError
			assert.ErrorAs(t, err, &aerr)
		})
	}
}

func TestVerifyWebhookSignature_TamperedPayload(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "type": "customer.subscription.updated", "data": {"object": {}}}`)
	sig := signPayload(t, payload, testWebhookSecret)
	tampered := []byte(`{"id": "evt_2", "type": "customer.subscription.deleted", "data": {"object": {}}}`)

	_, err := VerifyWebhookSignature(tampered, sig, testWebhookSecret)
	var aerr *AuthenticityError
	assert.ErrorAs(t, err, &aerr)
}

func TestIngestEvent_ProcessesOnceAndAcksDuplicates(t *testing.T) {
	repo := newFakeRepo()
	user := repo.addUser(models.User{Email: "a@example.com", BillingCustomerRef: "cus_1"})

	s, _ := newTestService(repo, newFakeProvider())
	env := &EventEnvelope{
		ID:     "evt_1",
		Type:   EventSubscriptionUpdated,
		Object: subscriptionJSON("sub_1", "cus_1", "", "active", 1_700_000_000, 1_702_592_000, false),
	}

	res, err := s.IngestEvent(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, models.SubscriptionActive, repo.get(user.ID).SubscriptionStatus)

	res, err = s.IngestEvent(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestIngestEvent_UnknownTypeIgnored(t *testing.T) {
	s, _ := newTestService(newFakeRepo(), newFakeProvider())

	res, err := s.IngestEvent(context.Background(), &EventEnvelope{
		ID:     "evt_1",
		Type:   "invoice.finalized",
		Object: []byte(`{}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.False(t, res.Duplicate)
}

func TestIngestEvent_FailedEventRetriedOnRedelivery(t *testing.T) {
	repo := newFakeRepo()
	s, _ := newTestService(repo, newFakeProvider())

	// First delivery fails: no account for the customer yet.
	env := &EventEnvelope{
		ID:     "evt_1",
		Type:   EventSubscriptionUpdated,
		Object: subscriptionJSON("sub_1", "cus_1", "", "active", 1_700_000_000, 1_702_592_000, false),
	}
	_, err := s.IngestEvent(context.Background(), env)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)

	// The account shows up (signup, or created event landed), redelivery succeeds.
	user := repo.addUser(models.User{Email: "a@example.com", BillingCustomerRef: "cus_1"})

	res, err := s.IngestEvent(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, models.SubscriptionActive, repo.get(user.ID).SubscriptionStatus)
}

func TestIngestEvent_MissingIDStillDeduplicates(t *testing.T) {
	repo := newFakeRepo()
	repo.addUser(models.User{Email: "a@example.com", BillingCustomerRef: "cus_1"})

	s, _ := newTestService(repo, newFakeProvider())
	env := &EventEnvelope{
		Type:   EventSubscriptionUpdated,
		Object: subscriptionJSON("sub_1", "cus_1", "", "active", 1_700_000_000, 1_702_592_000, false),
	}

	res, err := s.IngestEvent(context.Background(), env)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	res, err = s.IngestEvent(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}
