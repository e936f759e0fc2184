package listings

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
	"github.com/angelmondragon/listingforge-backend/pkg/pagination"
)

// Repository persists the three tables behind a listing aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBase(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindAggregate(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	FindOwners(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	CreateBase(ctx context.Context, listing *models.Listing) error
	UpdateBase(ctx context.Context, listing *models.Listing) error
	ReplaceChildren(ctx context.Context, listingID uuid.UUID, images []models.ListingImage, overrides []models.ListingChannel) error
	DeleteListings(ctx context.Context, ids []uuid.UUID) error
	ListSummaries(ctx context.Context, query summaryQuery) ([]summaryRecord, error)
	ListReadiness(ctx context.Context, listingIDs []uuid.UUID) ([]readinessRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a listing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindBase loads the base row and holds a row lock for the rest of the
// transaction on drivers that support one.
func (r *repository) FindBase(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		First(&listing, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindAggregate loads the base row with images ordered by position and
// overrides joined to their channel.
func (r *repository) FindAggregate(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Channels.Channel").
		First(&listing, "id = ?", id).
		Error
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *repository) FindOwners(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	owners := make(map[uuid.UUID]uuid.UUID, len(ids))
	if len(ids) == 0 {
		return owners, nil
	}
	var rows []models.Listing
	if err := r.db.WithContext(ctx).
		Select("id", "user_id").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		owners[row.ID] = row.UserID
	}
	return owners, nil
}

func (r *repository) CreateBase(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Omit("Images", "Channels").Create(listing).Error
}

func (r *repository) UpdateBase(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ?", listing.ID).
		Updates(map[string]any{
			"title":           listing.Title,
			"description":     listing.Description,
			"price":           listing.Price,
			"currency":        listing.Currency,
			"category":        listing.Category,
			"status":          listing.Status,
			"seo_score":       listing.SEOScore,
			"last_step":       listing.LastStep,
			"scroll_position": listing.ScrollPosition,
			"updated_at":      listing.UpdatedAt,
		}).Error
}

// ReplaceChildren swaps the image and override sets wholesale. Callers run it
// inside the same transaction as the base write.
func (r *repository) ReplaceChildren(ctx context.Context, listingID uuid.UUID, images []models.ListingImage, overrides []models.ListingChannel) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("listing_id = ?", listingID).Delete(&models.ListingImage{}).Error; err != nil {
		return err
	}
	if err := db.Where("listing_id = ?", listingID).Delete(&models.ListingChannel{}).Error; err != nil {
		return err
	}
	if len(images) > 0 {
		if err := db.Create(&images).Error; err != nil {
			return err
		}
	}
	if len(overrides) > 0 {
		if err := db.Omit("Channel").Create(&overrides).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteListings removes children before the base rows.
func (r *repository) DeleteListings(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	db := r.db.WithContext(ctx)
	if err := db.Where("listing_id IN ?", ids).Delete(&models.ListingImage{}).Error; err != nil {
		return err
	}
	if err := db.Where("listing_id IN ?", ids).Delete(&models.ListingChannel{}).Error; err != nil {
		return err
	}
	return db.Where("id IN ?", ids).Delete(&models.Listing{}).Error
}

type summaryQuery struct {
	UserID uuid.UUID
	Status *enums.ListingStatus
	Search string
	Cursor *pagination.Cursor
	Limit  int
}

type summaryRecord struct {
	ID           uuid.UUID
	Title        string
	Price        decimal.NullDecimal
	Currency     string
	Category     string
	Status       string
	SEOScore     int
	PreviewImage sql.NullString
	ImageCount   int
	UpdatedAt    time.Time
}

// ListSummaries pages base rows by (updated_at, id) descending. Image data is
// reduced to a preview url and a count.
func (r *repository) ListSummaries(ctx context.Context, query summaryQuery) ([]summaryRecord, error) {
	qb := r.db.WithContext(ctx).
		Table("listings l").
		Select(strings.Join([]string{
			"l.id",
			"l.title",
			"l.price",
			"l.currency",
			"l.category",
			"l.status",
			"l.seo_score",
			"(SELECT i.url FROM listing_images i WHERE i.listing_id = l.id AND i.position = 0) AS preview_image",
			"(SELECT COUNT(*) FROM listing_images i WHERE i.listing_id = l.id) AS image_count",
			"l.updated_at",
		}, ", ")).
		Where("l.user_id = ?", query.UserID)

	if query.Status != nil {
		qb = qb.Where("l.status = ?", *query.Status)
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(l.title) LIKE ? OR LOWER(l.description) LIKE ?)", pattern, pattern)
	}
	if query.Cursor != nil {
		qb = qb.Where("(l.updated_at < ?) OR (l.updated_at = ? AND l.id < ?)", query.Cursor.At, query.Cursor.At, query.Cursor.ID)
	}

	var records []summaryRecord
	err := qb.Order("l.updated_at DESC").Order("l.id DESC").Limit(query.Limit).Scan(&records).Error
	return records, err
}

type readinessRecord struct {
	ListingID      uuid.UUID
	ChannelID      uuid.UUID
	Slug           string
	Name           string
	ReadinessScore int
	IsReady        bool
}

// ListReadiness returns the summary columns of every override on the page.
func (r *repository) ListReadiness(ctx context.Context, listingIDs []uuid.UUID) ([]readinessRecord, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}
	var records []readinessRecord
	err := r.db.WithContext(ctx).
		Table("listing_channels lc").
		Select("lc.listing_id, lc.channel_id, c.slug, c.name, lc.readiness_score, lc.is_ready").
		Joins("JOIN channels c ON c.id = lc.channel_id").
		Where("lc.listing_id IN ?", listingIDs).
		Order("c.slug ASC").
		Scan(&records).
		Error
	return records, err
}
