package channels

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
)

// Repository persists the channel catalog.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, channel *models.Channel) error
	List(ctx context.Context) ([]models.Channel, error)
	FindBySlug(ctx context.Context, slug string) (*models.Channel, error)
	FindBySlugs(ctx context.Context, slugs []string) ([]models.Channel, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Channel, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a channel repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts the channel or refreshes name, export format and rules on an
// existing slug. The stored id never changes.
func (r *repository) Upsert(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "export_format", "rules", "updated_at"}),
		}).
		Create(channel).Error
}

func (r *repository) List(ctx context.Context) ([]models.Channel, error) {
	var out []models.Channel
	if err := r.db.WithContext(ctx).Order("slug ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindBySlug(ctx context.Context, slug string) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (r *repository) FindBySlugs(ctx context.Context, slugs []string) ([]models.Channel, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	var out []models.Channel
	if err := r.db.WithContext(ctx).Where("slug IN ?", slugs).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Channel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []models.Channel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
