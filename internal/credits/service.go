package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingforge-backend/internal/plans"
	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
	"github.com/angelmondragon/listingforge-backend/pkg/metrics"
	"github.com/angelmondragon/listingforge-backend/pkg/pagination"
)

// Service meters paid actions against an account's credit balance.
type Service interface {
	CheckAvailable(ctx context.Context, accountID uuid.UUID, action plans.ActionType, quantity int) (*Availability, error)
	Deduct(ctx context.Context, accountID uuid.UUID, action plans.ActionType, quantity int) (*DeductResult, error)
	Balance(ctx context.Context, accountID uuid.UUID) (*Balance, error)
	EnsureAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	ApplyGrant(ctx context.Context, grant Grant) (bool, error)
	UsageHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]UsageEntry, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Metrics           *metrics.CreditMetrics
	Logger            *logger.Logger
	DefaultPlan       string
	Clock             func() time.Time
}

type service struct {
	repo        Repository
	tx          txRunner
	metrics     *metrics.CreditMetrics
	logg        *logger.Logger
	defaultPlan plans.Plan
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("credits repository required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	defaultPlan := plans.Default()
	if id := strings.TrimSpace(params.DefaultPlan); id != "" {
		plan, err := plans.Lookup(id)
		if err != nil {
			return nil, err
		}
		defaultPlan = plan
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:        params.Repo,
		tx:          params.TransactionRunner,
		metrics:     params.Metrics,
		logg:        params.Logger,
		defaultPlan: defaultPlan,
		now:         func() time.Time { return clock().UTC() },
	}, nil
}

func (s *service) CheckAvailable(ctx context.Context, accountID uuid.UUID, action plans.ActionType, quantity int) (*Availability, error) {
	needed, err := plans.TotalCost(action, quantity)
	if err != nil {
		return nil, err
	}
	account, err := s.loadAccount(ctx, s.repo, accountID)
	if err != nil {
		return nil, err
	}
	plan, err := planFor(account)
	if err != nil {
		return nil, err
	}

	result := &Availability{
		Available:        true,
		CreditsNeeded:    needed,
		CreditsRemaining: account.CreditsRemaining(),
	}
	if reason := s.rejectReason(account, plan, needed); reason != "" {
		result.Available = false
		result.Reason = reason
		s.metrics.IncRejected(reason)
	}
	return result, nil
}

func (s *service) Deduct(ctx context.Context, accountID uuid.UUID, action plans.ActionType, quantity int) (*DeductResult, error) {
	needed, err := plans.TotalCost(action, quantity)
	if err != nil {
		return nil, err
	}

	var result *DeductResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		account, err := s.loadAccount(ctx, repo, accountID)
		if err != nil {
			return err
		}
		plan, err := planFor(account)
		if err != nil {
			return err
		}

		if needed > 0 && plan.TrialExpired(account.CreatedAt, s.now()) {
			result = rejected(ReasonTrialExpired, needed, account.CreditsRemaining())
			return nil
		}

		now := s.now()
		if needed > 0 {
			ok, err := repo.IncrementUsage(ctx, accountID, needed, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment credit usage")
			}
			if !ok {
				result = rejected(ReasonInsufficientCredits, needed, account.CreditsRemaining())
				return nil
			}
			if account, err = s.loadAccount(ctx, repo, accountID); err != nil {
				return err
			}
		}

		entry := &models.CreditUsageLog{
			ID:               uuid.New(),
			AccountID:        accountID,
			ActionType:       action.String(),
			Quantity:         quantity,
			Amount:           needed,
			CreditsRemaining: account.CreditsRemaining(),
			CreatedAt:        now,
		}
		if err := repo.InsertUsageLog(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert credit usage log")
		}

		result = &DeductResult{
			Success:          true,
			CreditsDeducted:  needed,
			CreditsNeeded:    needed,
			CreditsRemaining: entry.CreditsRemaining,
		}
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "deduct credits")
	}

	if result.Success {
		s.metrics.AddDeducted(action.String(), result.CreditsDeducted)
	} else {
		s.metrics.IncRejected(result.Reason)
	}
	return result, nil
}

func (s *service) Balance(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	account, err := s.loadAccount(ctx, s.repo, accountID)
	if err != nil {
		return nil, err
	}
	plan, err := planFor(account)
	if err != nil {
		return nil, err
	}
	return &Balance{
		AccountID:          account.ID,
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		CreditsUsed:        account.CreditsUsed,
		CreditsLimit:       account.CreditsLimit,
		CreditsRemaining:   account.CreditsRemaining(),
		OverLimit:          account.CreditsUsed > account.CreditsLimit,
		TrialEndsAt:        plan.TrialEndsAt(account.CreatedAt),
		TrialExpired:       plan.TrialExpired(account.CreatedAt, s.now()),
		SubscriptionStatus: account.SubscriptionStatus,
		AccountCreatedAt:   account.CreatedAt,
	}, nil
}

func (s *service) EnsureAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	now := s.now()
	created, err := s.repo.CreateAccountIfAbsent(ctx, s.newAccount(accountID, now))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision account")
	}
	if created && s.logg != nil {
		s.logg.Info(s.logg.WithAccountID(ctx, accountID.String()), "account provisioned")
	}
	return s.loadAccount(ctx, s.repo, accountID)
}

func (s *service) ApplyGrant(ctx context.Context, grant Grant) (bool, error) {
	grant.Provider = strings.TrimSpace(grant.Provider)
	grant.EventID = strings.TrimSpace(grant.EventID)
	if grant.Provider == "" || grant.EventID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "grant provider and event id are required")
	}
	if grant.AccountID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "grant account id is required")
	}
	if !grant.Status.IsValid() {
		return false, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid subscription status %q", grant.Status)
	}
	plan, err := plans.Lookup(grant.PlanID)
	if err != nil {
		return false, err
	}

	applied := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		now := s.now()
		if _, err := repo.CreateAccountIfAbsent(ctx, s.newAccount(grant.AccountID, now)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision account")
		}

		inserted, err := repo.InsertGrantEvent(ctx, &models.CreditGrantEvent{
			ID:        uuid.New(),
			Provider:  grant.Provider,
			EventID:   grant.EventID,
			AccountID: grant.AccountID,
			PlanID:    plan.ID,
			Status:    grant.Status.String(),
			CreatedAt: now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record grant event")
		}
		if !inserted {
			return nil
		}

		if err := repo.ApplyPlan(ctx, grant.AccountID, PlanUpdate{
			PlanID:       plan.ID,
			CreditsLimit: plan.Credits,
			Status:       grant.Status,
			ResetUsage:   grant.ResetUsage,
			Now:          now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply plan")
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, asDependency(err, "apply credit grant")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"account_id": grant.AccountID.String(),
			"event_id":   grant.EventID,
			"plan_id":    plan.ID,
			"applied":    applied,
		})
		s.logg.Info(logCtx, "credit grant processed")
	}
	return applied, nil
}

func (s *service) UsageHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]UsageEntry, error) {
	if _, err := s.loadAccount(ctx, s.repo, accountID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListUsage(ctx, accountID, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit usage")
	}
	out := make([]UsageEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, usageEntryFromModel(row))
	}
	return out, nil
}

// AdmissionError converts a rejected admission into the caller-visible error.
func AdmissionError(reason string, needed, remaining int) error {
	code := pkgerrors.CodeInsufficientCredits
	message := "not enough credits for this action"
	if reason == ReasonTrialExpired {
		code = pkgerrors.CodeTrialExpired
		message = "free trial has expired"
	}
	return pkgerrors.New(code, message).WithDetails(map[string]any{
		"creditsNeeded":    needed,
		"creditsRemaining": remaining,
		"upgrade":          true,
	})
}

func (s *service) rejectReason(account *models.Account, plan plans.Plan, needed int) string {
	if needed == 0 {
		return ""
	}
	if plan.TrialExpired(account.CreatedAt, s.now()) {
		return ReasonTrialExpired
	}
	if account.CreditsRemaining() < needed {
		return ReasonInsufficientCredits
	}
	return ""
}

func (s *service) newAccount(id uuid.UUID, now time.Time) *models.Account {
	status := enums.SubscriptionStatusNone
	if !s.defaultPlan.HasTrial() {
		status = enums.SubscriptionStatusActive
	}
	return &models.Account{
		ID:                 id,
		PlanID:             s.defaultPlan.ID,
		CreditsUsed:        0,
		CreditsLimit:       s.defaultPlan.Credits,
		SubscriptionStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *service) loadAccount(ctx context.Context, repo Repository, id uuid.UUID) (*models.Account, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := repo.FindAccount(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account, nil
}

func planFor(account *models.Account) (plans.Plan, error) {
	plan, err := plans.Lookup(account.PlanID)
	if err != nil {
		return plans.Plan{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "account references unknown plan")
	}
	return plan, nil
}

func rejected(reason string, needed, remaining int) *DeductResult {
	return &DeductResult{
		Success:          false,
		CreditsNeeded:    needed,
		CreditsRemaining: remaining,
		Reason:           reason,
	}
}

func asDependency(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
