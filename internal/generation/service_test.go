package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/listingforge-backend/internal/channels"
	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/listings"
	"github.com/angelmondragon/listingforge-backend/internal/plans"
	"github.com/angelmondragon/listingforge-backend/pkg/db"
	"github.com/angelmondragon/listingforge-backend/pkg/db/dbtest"
	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/generator"
	"github.com/angelmondragon/listingforge-backend/pkg/metrics"
)

type stubProvider struct {
	calls  int
	result *generator.Result
	err    error
	during func()
}

func (p *stubProvider) Generate(_ context.Context, req generator.Request) (*generator.Result, error) {
	p.calls++
	if p.during != nil {
		p.during()
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.result != nil {
		return p.result, nil
	}
	assets := make([]generator.Asset, 0, req.Quantity)
	for i := 0; i < req.Quantity; i++ {
		assets = append(assets, generator.Asset{URL: "https://cdn.test/" + req.Action + "/" + uuid.NewString() + ".png"})
	}
	return &generator.Result{Assets: assets}, nil
}

type fixture struct {
	client   *db.Client
	credits  credits.Service
	listings listings.Service
	provider *stubProvider
	svc      Service
	account  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	client := dbtest.Open(t)

	channelSvc, err := channels.NewService(channels.NewRepository(client.DB()))
	require.NoError(t, err)
	require.NoError(t, channelSvc.Seed(ctx, channels.DefaultCatalog()))

	m := metrics.NewCreditMetrics(prometheus.NewRegistry())
	creditSvc, err := credits.NewService(credits.ServiceParams{
		Repo:              credits.NewRepository(client.DB()),
		TransactionRunner: client,
		Metrics:           m,
	})
	require.NoError(t, err)

	listingSvc, err := listings.NewService(listings.ServiceParams{
		Repo:              listings.NewRepository(client.DB()),
		TransactionRunner: client,
		Channels:          channelSvc,
		Accounts:          creditSvc,
	})
	require.NoError(t, err)

	provider := &stubProvider{}
	svc, err := NewService(ServiceParams{
		Credits:  creditSvc,
		Listings: listingSvc,
		Provider: provider,
		Metrics:  m,
	})
	require.NoError(t, err)

	account := uuid.New()
	_, err = creditSvc.EnsureAccount(ctx, account)
	require.NoError(t, err)

	return &fixture{client: client, credits: creditSvc, listings: listingSvc, provider: provider, svc: svc, account: account}
}

func (f *fixture) setUsed(t *testing.T, used int) {
	t.Helper()
	require.NoError(t, f.client.DB().Model(&models.Account{}).Where("id = ?", f.account).Update("credits_used", used).Error)
}

func (f *fixture) usageRows(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.client.DB().Model(&models.CreditUsageLog{}).Where("account_id = ?", f.account).Count(&n).Error)
	return n
}

func TestRunDeductsAfterProviderSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionImageGeneration, Quantity: 2})
	require.NoError(t, err)
	assert.Len(t, result.Assets, 2)
	assert.Equal(t, 6, result.CreditsDeducted)
	assert.Equal(t, 9, result.CreditsRemaining)
	assert.Nil(t, result.Listing)
	assert.EqualValues(t, 1, f.usageRows(t))
}

func TestRunRejectsWithoutCallingProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setUsed(t, 13)

	_, err := f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionImageGeneration, Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientCredits))
	assert.Equal(t, map[string]any{"creditsNeeded": 3, "creditsRemaining": 2, "upgrade": true}, pkgerrors.As(err).Details())
	assert.Zero(t, f.provider.calls)
	assert.Zero(t, f.usageRows(t))
}

func TestRunProviderFailureLeavesBalanceUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.provider.err = errors.New("upstream timeout")

	_, err := f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionVideoGeneration, Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	balance, err := f.credits.Balance(ctx, f.account)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.CreditsUsed)
	assert.Equal(t, 15, balance.CreditsRemaining)
	assert.Zero(t, f.usageRows(t))
}

func TestRunReportsLostDeductionRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setUsed(t, 10)

	f.provider.during = func() {
		res, err := f.credits.Deduct(ctx, f.account, plans.ActionImageGeneration, 1)
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	_, err := f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionImageGeneration, Quantity: 1})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientCredits))

	balance, err := f.credits.Balance(ctx, f.account)
	require.NoError(t, err)
	assert.Equal(t, 13, balance.CreditsUsed)
}

func TestRunZeroCostActionSucceedsOnExhaustedBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setUsed(t, 15)
	f.provider.result = &generator.Result{Text: "Speckled stoneware mug"}

	result, err := f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionTitleGeneration})
	require.NoError(t, err)
	assert.Equal(t, "Speckled stoneware mug", result.Text)
	assert.Zero(t, result.CreditsDeducted)
	assert.Empty(t, result.Assets)
	assert.EqualValues(t, 1, f.usageRows(t))
}

func TestRunAttachesAssetsToListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.listings.Save(ctx, f.account, listings.SaveInput{
		Title:  "Beeswax taper candles",
		Images: []listings.ImageInput{{URL: "https://cdn.test/original.png"}},
	})
	require.NoError(t, err)

	listingID := saved.ID
	result, err := f.svc.Run(ctx, RunInput{
		AccountID: f.account,
		Action:    plans.ActionImageGeneration,
		Quantity:  2,
		ListingID: &listingID,
		SourceURL: "https://cdn.test/original.png",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Listing)
	require.Len(t, result.Listing.Images, 3)
	assert.Equal(t, "https://cdn.test/original.png", result.Listing.Images[0].URL)
	assert.Equal(t, result.Assets[0].URL, result.Listing.Images[1].URL)
	assert.Equal(t, result.Assets[1].URL, result.Listing.Images[2].URL)
}

func TestRunRejectsForeignListingBeforeProvider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.listings.Save(ctx, uuid.New(), listings.SaveInput{Title: "Not yours"})
	require.NoError(t, err)

	listingID := saved.ID
	_, err = f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionMockupDownload, ListingID: &listingID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Zero(t, f.provider.calls)
}

func TestRunValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, RunInput{Action: plans.ActionImageGeneration})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionType("teleport")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Run(ctx, RunInput{AccountID: f.account, Action: plans.ActionImageGeneration, Quantity: -1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
