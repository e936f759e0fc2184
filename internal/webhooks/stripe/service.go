package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/plans"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
)

const (
	// Provider names the grant source in the grant events table.
	Provider = "stripe"

	MetadataAccountID = "account_id"
	MetadataPlanID    = "plan_id"
)

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type grantApplier interface {
	ApplyGrant(ctx context.Context, grant credits.Grant) (bool, error)
}

type ServiceParams struct {
	Credits      grantApplier
	StripeClient subscriptionFetcher
	Logger       *logger.Logger
}

// Service turns subscription lifecycle events into credit grants.
type Service struct {
	credits grantApplier
	stripe  subscriptionFetcher
	logg    *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Credits == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "credits service required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		credits: params.Credits,
		stripe:  params.StripeClient,
		logg:    params.Logger,
	}, nil
}

// HandleEvent applies the event's grant. Unhandled event types are ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if strings.TrimSpace(event.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event id required")
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		grant, err := grantFromSubscription(event, &sub)
		if err != nil {
			return err
		}
		return s.apply(ctx, event, grant)
	case stripe.EventTypeInvoicePaid:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
		}
		sub, err := s.stripe.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		grant, err := grantFromSubscription(event, sub)
		if err != nil {
			return err
		}
		grant.ResetUsage = grant.Status.Entitled()
		return s.apply(ctx, event, grant)
	default:
		return nil
	}
}

func (s *Service) apply(ctx context.Context, event *stripe.Event, grant credits.Grant) error {
	applied, err := s.credits.ApplyGrant(ctx, grant)
	if err != nil {
		return err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithAccountID(ctx, grant.AccountID.String()), map[string]any{
			"event_id":   event.ID,
			"event_type": string(event.Type),
			"plan_id":    grant.PlanID,
			"status":     grant.Status.String(),
			"applied":    applied,
		})
		s.logg.Info(logCtx, "stripe credit grant handled")
	}
	return nil
}

// grantFromSubscription resolves the account and plan from subscription
// metadata. Deleted or non-entitled subscriptions fall back to the free plan.
func grantFromSubscription(event *stripe.Event, sub *stripe.Subscription) (credits.Grant, error) {
	if sub == nil {
		return credits.Grant{}, pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	accountID, err := uuid.Parse(strings.TrimSpace(sub.Metadata[MetadataAccountID]))
	if err != nil {
		return credits.Grant{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "subscription metadata account_id is invalid")
	}

	status := subscriptionStatus(sub.Status)
	if event.Type == stripe.EventTypeCustomerSubscriptionDeleted {
		status = enums.SubscriptionStatusCanceled
	}

	planID := strings.TrimSpace(sub.Metadata[MetadataPlanID])
	if !status.Entitled() {
		planID = plans.PlanFree
	}
	if planID == "" {
		return credits.Grant{}, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata plan_id is required")
	}
	if _, err := plans.Lookup(planID); err != nil {
		return credits.Grant{}, err
	}

	return credits.Grant{
		Provider:   Provider,
		EventID:    event.ID,
		AccountID:  accountID,
		PlanID:     planID,
		Status:     status,
		ResetUsage: event.Type == stripe.EventTypeCustomerSubscriptionCreated,
	}, nil
}

func subscriptionStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	parsed, err := enums.ParseSubscriptionStatus(string(status))
	if err != nil || parsed == enums.SubscriptionStatusNone {
		return enums.SubscriptionStatusIncomplete
	}
	return parsed
}
