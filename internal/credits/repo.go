package credits

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
)

// Repository manages persistence for account counters, usage logs and grant events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	CreateAccountIfAbsent(ctx context.Context, account *models.Account) (bool, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, amount int, now time.Time) (bool, error)
	InsertUsageLog(ctx context.Context, entry *models.CreditUsageLog) error
	ListUsage(ctx context.Context, id uuid.UUID, limit int) ([]models.CreditUsageLog, error)
	InsertGrantEvent(ctx context.Context, event *models.CreditGrantEvent) (bool, error)
	ApplyPlan(ctx context.Context, id uuid.UUID, update PlanUpdate) error
}

// PlanUpdate is the set of account columns a credit grant rewrites.
type PlanUpdate struct {
	PlanID       string
	CreditsLimit int
	Status       enums.SubscriptionStatus
	ResetUsage   bool
	Now          time.Time
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a credits repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccountIfAbsent(ctx context.Context, account *models.Account) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(account)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementUsage adds amount to credits_used only while the result stays within
// credits_limit. A false result means the balance could not cover the amount and
// nothing was written.
func (r *repository) IncrementUsage(ctx context.Context, id uuid.UUID, amount int, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ? AND credits_used + ? <= credits_limit", id, amount).
		Updates(map[string]any{
			"credits_used": gorm.Expr("credits_used + ?", amount),
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertUsageLog(ctx context.Context, entry *models.CreditUsageLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListUsage(ctx context.Context, id uuid.UUID, limit int) ([]models.CreditUsageLog, error) {
	var entries []models.CreditUsageLog
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", id).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) InsertGrantEvent(ctx context.Context, event *models.CreditGrantEvent) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ApplyPlan(ctx context.Context, id uuid.UUID, update PlanUpdate) error {
	values := map[string]any{
		"plan_id":             update.PlanID,
		"credits_limit":       update.CreditsLimit,
		"subscription_status": update.Status,
		"updated_at":          update.Now,
	}
	if update.ResetUsage {
		values["credits_used"] = 0
	}
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(values).Error
}
