package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/listingforge-backend/api/responses"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

// maxWebhookBody is well above the largest subscription or invoice event.
const maxWebhookBody = 256 << 10

const signatureHeader = "Stripe-Signature"

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID, eventType string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type eventVerifier interface {
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
}

type webhookAck struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// StripeWebhook applies subscription and invoice events to the credit ledger.
// Redeliveries short-circuit on the guard. A transient failure clears the mark so
// Stripe's retry is processed; an event rejected as invalid is acknowledged and
// stays marked, since retrying it cannot succeed.
func StripeWebhook(svc StripeWebhookService, verifier eventVerifier, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook is not configured"))
			return
		}

		sigHeader := r.Header.Get(signatureHeader)
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrapf(pkgerrors.CodeValidation, err, "webhook body exceeds %d bytes", maxWebhookBody))
			return
		}

		event, err := verifier.ConstructEvent(payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature"))
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"stripe_event_id":   event.ID,
				"stripe_event_type": string(event.Type),
			})
		}

		seen, err := guard.CheckAndMark(ctx, event.ID, string(event.Type))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency"))
			return
		}
		if seen {
			responses.WriteSuccess(w, webhookAck{Received: true, Duplicate: true})
			return
		}

		err = svc.HandleEvent(ctx, &event)
		switch {
		case err == nil:
			if logg != nil {
				logg.Info(ctx, "stripe.event.processed")
			}
			responses.WriteSuccess(w, webhookAck{Received: true})
		case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, pkgerrors.Dump(err).LogFields()), "stripe.event.ignored")
			}
			responses.WriteSuccess(w, webhookAck{Received: true, Ignored: true, Reason: pkgerrors.As(err).Message()})
		default:
			if delErr := guard.Delete(ctx, event.ID); delErr != nil && logg != nil {
				logg.Error(ctx, "stripe.event.unmark_failed", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
		}
	}
}
