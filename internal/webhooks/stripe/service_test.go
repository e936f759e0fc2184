package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/plans"
	"github.com/angelmondragon/listingforge-backend/pkg/db/dbtest"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

type stubStripeClient struct {
	getResp *stripe.Subscription
	getErr  error
	calls   []string
}

func (s *stubStripeClient) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	s.calls = append(s.calls, id)
	return s.getResp, s.getErr
}

func newTestService(t *testing.T, client *stubStripeClient) (*Service, credits.Service) {
	t.Helper()
	db := dbtest.Open(t)
	creditSvc, err := credits.NewService(credits.ServiceParams{
		Repo:              credits.NewRepository(db.DB()),
		TransactionRunner: db,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Credits: creditSvc, StripeClient: client})
	require.NoError(t, err)
	return svc, creditSvc
}

func subscriptionEvent(t *testing.T, id string, typ stripe.EventType, sub *stripe.Subscription) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return &stripe.Event{ID: id, Type: typ, Data: &stripe.EventData{Raw: raw}}
}

func subscriptionFor(accountID uuid.UUID, planID string, status stripe.SubscriptionStatus) *stripe.Subscription {
	return &stripe.Subscription{
		ID:     "sub_" + accountID.String()[:8],
		Status: status,
		Metadata: map[string]string{
			MetadataAccountID: accountID.String(),
			MetadataPlanID:    planID,
		},
	}
}

func TestHandleSubscriptionCreatedGrantsPlan(t *testing.T) {
	svc, creditSvc := newTestService(t, &stubStripeClient{})
	ctx := context.Background()
	accountID := uuid.New()

	event := subscriptionEvent(t, "evt_created", stripe.EventTypeCustomerSubscriptionCreated,
		subscriptionFor(accountID, plans.PlanPro, stripe.SubscriptionStatusActive))
	require.NoError(t, svc.HandleEvent(ctx, event))

	balance, err := creditSvc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanPro, balance.PlanID)
	assert.Equal(t, 400, balance.CreditsLimit)
	assert.Equal(t, enums.SubscriptionStatusActive, balance.SubscriptionStatus)
}

func TestHandleSameEventTwiceGrantsOnce(t *testing.T) {
	svc, creditSvc := newTestService(t, &stubStripeClient{})
	ctx := context.Background()
	accountID := uuid.New()

	_, err := creditSvc.EnsureAccount(ctx, accountID)
	require.NoError(t, err)
	created := subscriptionEvent(t, "evt_once", stripe.EventTypeCustomerSubscriptionCreated,
		subscriptionFor(accountID, plans.PlanStarter, stripe.SubscriptionStatusActive))
	require.NoError(t, svc.HandleEvent(ctx, created))

	res, err := creditSvc.Deduct(ctx, accountID, plans.ActionImageGeneration, 2)
	require.NoError(t, err)
	require.True(t, res.Success)

	// A redelivery must not reset usage a second time.
	require.NoError(t, svc.HandleEvent(ctx, created))

	balance, err := creditSvc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 6, balance.CreditsUsed)
	assert.Equal(t, 94, balance.CreditsRemaining)
}

func TestHandleSubscriptionDeletedFallsBackToFree(t *testing.T) {
	svc, creditSvc := newTestService(t, &stubStripeClient{})
	ctx := context.Background()
	accountID := uuid.New()

	sub := subscriptionFor(accountID, plans.PlanBusiness, stripe.SubscriptionStatusActive)
	require.NoError(t, svc.HandleEvent(ctx, subscriptionEvent(t, "evt_1", stripe.EventTypeCustomerSubscriptionCreated, sub)))
	require.NoError(t, svc.HandleEvent(ctx, subscriptionEvent(t, "evt_2", stripe.EventTypeCustomerSubscriptionDeleted, sub)))

	balance, err := creditSvc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, plans.PlanFree, balance.PlanID)
	assert.Equal(t, 15, balance.CreditsLimit)
	assert.Equal(t, enums.SubscriptionStatusCanceled, balance.SubscriptionStatus)
}

func TestHandleInvoicePaidFetchesSubscriptionAndResetsUsage(t *testing.T) {
	accountID := uuid.New()
	client := &stubStripeClient{getResp: subscriptionFor(accountID, plans.PlanStarter, stripe.SubscriptionStatusActive)}
	svc, creditSvc := newTestService(t, client)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, subscriptionEvent(t, "evt_sub", stripe.EventTypeCustomerSubscriptionCreated, client.getResp)))
	res, err := creditSvc.Deduct(ctx, accountID, plans.ActionVideoGeneration, 3)
	require.NoError(t, err)
	require.True(t, res.Success)

	invoice := &stripe.Event{
		ID:   "evt_invoice",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Object: map[string]interface{}{"subscription": "sub_invoice"}},
	}
	require.NoError(t, svc.HandleEvent(ctx, invoice))
	assert.Equal(t, []string{"sub_invoice"}, client.calls)

	balance, err := creditSvc.Balance(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.CreditsUsed)
	assert.Equal(t, 100, balance.CreditsRemaining)
}

func TestHandleEventErrors(t *testing.T) {
	client := &stubStripeClient{getErr: errors.New("stripe down")}
	svc, _ := newTestService(t, client)
	ctx := context.Background()

	noAccount := &stripe.Subscription{Status: stripe.SubscriptionStatusActive, Metadata: map[string]string{MetadataPlanID: plans.PlanPro}}
	err := svc.HandleEvent(ctx, subscriptionEvent(t, "evt_a", stripe.EventTypeCustomerSubscriptionUpdated, noAccount))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	unknownPlan := subscriptionFor(uuid.New(), "platinum", stripe.SubscriptionStatusActive)
	err = svc.HandleEvent(ctx, subscriptionEvent(t, "evt_b", stripe.EventTypeCustomerSubscriptionUpdated, unknownPlan))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	invoice := &stripe.Event{
		ID:   "evt_c",
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Object: map[string]interface{}{"subscription": "sub_x"}},
	}
	err = svc.HandleEvent(ctx, invoice)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	assert.NoError(t, svc.HandleEvent(ctx, &stripe.Event{ID: "evt_d", Type: "charge.refunded", Data: &stripe.EventData{}}))
	assert.True(t, pkgerrors.IsCode(svc.HandleEvent(ctx, nil), pkgerrors.CodeValidation))
}

func TestHandleUndecodableSubscriptionIsValidation(t *testing.T) {
	svc, _ := newTestService(t, &stubStripeClient{})
	ctx := context.Background()

	event := &stripe.Event{
		ID:   "evt_garbled",
		Type: stripe.EventTypeCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"metadata":"not-a-map"}`)},
	}
	err := svc.HandleEvent(ctx, event)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.False(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
