// Package generation gates paid provider calls behind the credit ledger.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/listingforge-backend/internal/credits"
	"github.com/angelmondragon/listingforge-backend/internal/listings"
	"github.com/angelmondragon/listingforge-backend/internal/plans"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/generator"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
	"github.com/angelmondragon/listingforge-backend/pkg/metrics"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Provider produces generated content for an action.
type Provider interface {
	Generate(ctx context.Context, req generator.Request) (*generator.Result, error)
}

type listingStore interface {
	Get(ctx context.Context, listingID, accountID uuid.UUID) (*listings.ListingDTO, error)
	AppendImages(ctx context.Context, accountID, listingID uuid.UUID, urls []string) (*listings.ListingDTO, error)
}

// RunInput describes one paid action request.
type RunInput struct {
	AccountID uuid.UUID
	Action    plans.ActionType
	Quantity  int
	ListingID *uuid.UUID
	Prompt    string
	SourceURL string
}

// RunResult is the provider output plus the ledger outcome.
type RunResult struct {
	Action           plans.ActionType     `json:"action"`
	Assets           []generator.Asset    `json:"assets"`
	Text             string               `json:"text,omitempty"`
	CreditsDeducted  int                  `json:"creditsDeducted"`
	CreditsRemaining int                  `json:"creditsRemaining"`
	Listing          *listings.ListingDTO `json:"listing,omitempty"`
}

// Service runs the check, generate, deduct sequence.
type Service interface {
	Run(ctx context.Context, input RunInput) (*RunResult, error)
}

type ServiceParams struct {
	Credits  credits.Service
	Listings listingStore
	Provider Provider
	Metrics  *metrics.CreditMetrics
	Logger   *logger.Logger
}

type service struct {
	credits  credits.Service
	listings listingStore
	provider Provider
	metrics  *metrics.CreditMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Credits == nil {
		return nil, fmt.Errorf("credits service required")
	}
	if params.Listings == nil {
		return nil, fmt.Errorf("listing service required")
	}
	if params.Provider == nil {
		return nil, fmt.Errorf("generation provider required")
	}
	return &service{
		credits:  params.Credits,
		listings: params.Listings,
		provider: params.Provider,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Run admits the action, calls the provider and only then deducts. A provider
// failure never costs credits; a deduction that loses a race to a concurrent
// request is reported as the admission error.
func (s *service) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown action %q", input.Action)
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}

	if _, err := s.credits.EnsureAccount(ctx, input.AccountID); err != nil {
		return nil, err
	}

	availability, err := s.credits.CheckAvailable(ctx, input.AccountID, input.Action, input.Quantity)
	if err != nil {
		return nil, err
	}
	if !availability.Available {
		return nil, credits.AdmissionError(availability.Reason, availability.CreditsNeeded, availability.CreditsRemaining)
	}

	attach := input.ListingID != nil && *input.ListingID != uuid.Nil && input.Action.ProducesAssets()
	if attach {
		if _, err := s.listings.Get(ctx, *input.ListingID, input.AccountID); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	output, err := s.provider.Generate(ctx, generator.Request{
		Action:    input.Action.String(),
		Quantity:  input.Quantity,
		Prompt:    strings.TrimSpace(input.Prompt),
		SourceURL: strings.TrimSpace(input.SourceURL),
	})
	if err != nil {
		s.metrics.ObserveGeneration(input.Action.String(), outcomeFailure, time.Since(started))
		s.logError(ctx, input, "generation provider failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generation provider failed")
	}
	s.metrics.ObserveGeneration(input.Action.String(), outcomeSuccess, time.Since(started))

	deducted, err := s.credits.Deduct(ctx, input.AccountID, input.Action, input.Quantity)
	if err != nil {
		return nil, err
	}
	if !deducted.Success {
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithAccountID(ctx, input.AccountID.String()), map[string]any{
				"action": input.Action.String(),
				"reason": deducted.Reason,
			})
			s.logg.Warn(logCtx, "generation output discarded after failed deduction")
		}
		return nil, credits.AdmissionError(deducted.Reason, deducted.CreditsNeeded, deducted.CreditsRemaining)
	}

	result := &RunResult{
		Action:           input.Action,
		Assets:           output.Assets,
		Text:             output.Text,
		CreditsDeducted:  deducted.CreditsDeducted,
		CreditsRemaining: deducted.CreditsRemaining,
	}
	if result.Assets == nil {
		result.Assets = []generator.Asset{}
	}

	if urls := output.URLs(); attach && len(urls) > 0 {
		listing, err := s.listings.AppendImages(ctx, input.AccountID, *input.ListingID, urls)
		if err != nil {
			// The credits are spent; the caller still receives the assets.
			s.logError(ctx, input, "attach generated assets to listing", err)
		} else {
			result.Listing = listing
		}
	}
	return result, nil
}

func (s *service) logError(ctx context.Context, input RunInput, msg string, err error) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{"action": input.Action.String(), "quantity": input.Quantity}
	if input.ListingID != nil {
		fields["listing_id"] = input.ListingID.String()
	}
	s.logg.Error(s.logg.WithFields(s.logg.WithAccountID(ctx, input.AccountID.String()), fields), msg, err)
}
