package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyWebhookSignature checks the provider signature over the raw payload
// and returns the verified event envelope. Anything that fails verification
// is an AuthenticityError and must be discarded without side effects.
func VerifyWebhookSignature(payload []byte, sigHeader, secret string) (*EventEnvelope, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, &AuthenticityError{Reason: "webhook secret not configured"}
	}
	if strings.TrimSpace(sigHeader) == "" {
		return nil, &AuthenticityError{Reason: "signature header missing"}
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, &AuthenticityError{Reason: "signature verification failed"}
	}

	return &EventEnvelope{
		ID:     event.ID,
		Type:   string(event.Type),
		Object: event.Data.Raw,
	}, nil
}

// IngestResult reports how an event was handled.
type IngestResult struct {
	// Duplicate means the event id was already processed successfully.
	Duplicate bool
	// Ignored means the event type carries no subscription state.
	Ignored bool
}

// IngestEvent processes one verified webhook event exactly once. Duplicate
// ids are acknowledged without reprocessing; events whose handler failed
// earlier are retried on redelivery.
func (s *Service) IngestEvent(ctx context.Context, env *EventEnvelope) (*IngestResult, error) {
	if env == nil {
		return nil, &ValidationError{Reason: "event envelope missing"}
	}
	eventID := strings.TrimSpace(env.ID)
	if eventID == "" {
		// Keep dedup working for providers that omit the id.
		sum := sha256.Sum256(env.Object)
		eventID = "sha256:" + hex.EncodeToString(sum[:])
	}

	if s.seen != nil {
		if dup, err := s.seen.Seen(ctx, eventID); err == nil && dup {
			return &IngestResult{Duplicate: true}, nil
		}
	}

	created, stored, err := s.repo.RecordWebhookEvent(&models.BillingWebhookEvent{
		EventID:     eventID,
		EventType:   env.Type,
		PayloadJSON: string(env.Object),
	})
	if err != nil {
		return nil, &InternalError{Op: "record webhook event", Err: err}
	}
	if !created && stored.ProcessedAt != nil && stored.ProcessingError == "" {
		s.markSeen(ctx, eventID)
		return &IngestResult{Duplicate: true}, nil
	}

	var handlerErr error
	ignored := false
	switch env.Type {
	case EventSubscriptionCreated:
		handlerErr = s.handleSubscriptionCreated(ctx, env.Object)
	case EventSubscriptionUpdated:
		handlerErr = s.handleSubscriptionUpdated(ctx, env.Object)
	case EventSubscriptionDeleted:
		handlerErr = s.handleSubscriptionDeleted(ctx, env.Object)
	case EventCheckoutCompleted:
		handlerErr = s.handleCheckoutCompleted(ctx, env.Object)
	default:
		ignored = true
	}

	msg := ""
	if handlerErr != nil {
		msg = handlerErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(stored.ID, msg); err != nil {
		log.Warnf("billing: mark webhook %s processed: %v", eventID, err)
	}

	if handlerErr != nil {
		return nil, handlerErr
	}
	s.markSeen(ctx, eventID)
	return &IngestResult{Ignored: ignored}, nil
}

func (s *Service) markSeen(ctx context.Context, eventID string) {
	if s.seen == nil {
		return
	}
	if err := s.seen.MarkSeen(ctx, eventID, s.cfg.DedupWindow); err != nil {
		log.Debugf("billing: dedup cache mark %s: %v", eventID, err)
	}
}
