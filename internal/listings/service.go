package listings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingforge-backend/internal/channels"
	"github.com/angelmondragon/listingforge-backend/internal/seo"
	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/listingforge-backend/pkg/db/types"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
	"github.com/angelmondragon/listingforge-backend/pkg/logger"
	"github.com/angelmondragon/listingforge-backend/pkg/pagination"
)

// Service stores and reconstructs listing aggregates.
type Service interface {
	Save(ctx context.Context, accountID uuid.UUID, input SaveInput) (*ListingDTO, error)
	Get(ctx context.Context, listingID, accountID uuid.UUID) (*ListingDTO, error)
	List(ctx context.Context, accountID uuid.UUID, filters Filters) (*ListResult, error)
	Delete(ctx context.Context, accountID uuid.UUID, ids ...uuid.UUID) error
	AppendImages(ctx context.Context, accountID, listingID uuid.UUID, urls []string) (*ListingDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type accountProvisioner interface {
	EnsureAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
}

type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Channels          channels.Service
	Accounts          accountProvisioner
	Logger            *logger.Logger
	Clock             func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	channels channels.Service
	accounts accountProvisioner
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Channels == nil {
		return nil, fmt.Errorf("channel service required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account provisioner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.TransactionRunner,
		channels: params.Channels,
		accounts: params.Accounts,
		logg:     params.Logger,
		now:      func() time.Time { return clock().UTC() },
	}, nil
}

const appendImageAttempts = 3

var (
	errStaleSnapshot = errors.New("listing snapshot is stale")

	maxPrice = decimal.New(1, 10)
)

// validatePrice keeps prices inside the numeric(12,2) column.
func validatePrice(price *decimal.Decimal) error {
	switch {
	case price == nil:
		return nil
	case price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	case !price.Equal(price.Round(2)):
		return pkgerrors.New(pkgerrors.CodeValidation, "price must have at most 2 decimal places")
	case price.GreaterThanOrEqual(maxPrice):
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be below 10000000000")
	}
	return nil
}

type resolvedOverride struct {
	input   ChannelOverrideInput
	channel channels.Channel
}

// Save writes the full desired state of a listing. Images and overrides are
// replaced wholesale in the same transaction as the base row.
func (s *service) Save(ctx context.Context, accountID uuid.UUID, input SaveInput) (*ListingDTO, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	currency := enums.CurrencyUSD
	if raw := strings.TrimSpace(input.Currency); raw != "" {
		parsed, err := enums.ParseCurrency(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		currency = parsed
	}
	var status *enums.ListingStatus
	if raw := strings.TrimSpace(input.Status); raw != "" {
		parsed, err := enums.ParseListingStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		status = &parsed
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.LastStep < 0 || input.ScrollPosition < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lastStep and scrollPosition must not be negative")
	}

	urls, err := orderImages(input.Images)
	if err != nil {
		return nil, err
	}
	overrides, err := s.resolveOverrides(ctx, input.Channels)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.EnsureAccount(ctx, accountID); err != nil {
		return nil, err
	}

	now := s.now()
	listingID := uuid.New()
	if input.ID != nil && *input.ID != uuid.Nil {
		listingID = *input.ID
	}

	base := &models.Listing{
		ID:             listingID,
		UserID:         accountID,
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		Price:          nullDecimal(input.Price),
		Currency:       currency,
		Category:       strings.TrimSpace(input.Category),
		LastStep:       input.LastStep,
		ScrollPosition: input.ScrollPosition,
		UpdatedAt:      now,
	}
	images := buildImages(listingID, urls, now)
	rows, signals, err := buildOverrides(base, urls, overrides, now)
	if err != nil {
		return nil, err
	}
	base.SEOScore = seo.Score(seo.Base{
		Title:       base.Title,
		Description: base.Description,
		Category:    base.Category,
		ImageCount:  len(images),
	}, signals)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindBase(ctx, listingID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound) && input.expectedUpdatedAt != nil:
			return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		case errors.Is(err, gorm.ErrRecordNotFound):
			base.Status = enums.ListingStatusDraft
			if status != nil {
				base.Status = *status
			}
			base.CreatedAt = now
			if err := repo.CreateBase(ctx, base); err != nil {
				if pkgerrors.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "listing was created concurrently, retry the save")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert listing")
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
		default:
			if existing.UserID != accountID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another account")
			}
			if input.expectedUpdatedAt != nil && !existing.UpdatedAt.Equal(*input.expectedUpdatedAt) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, errStaleSnapshot, "listing changed while it was being updated, retry")
			}
			base.Status = existing.Status
			if status != nil {
				base.Status = *status
			}
			base.CreatedAt = existing.CreatedAt
			if err := repo.UpdateBase(ctx, base); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing")
			}
		}

		if err := repo.ReplaceChildren(ctx, listingID, images, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace listing images and channels")
		}
		return nil
	})
	if err != nil {
		return nil, asDependency(err, "save listing")
	}

	if s.logg != nil {
		logCtx := s.logg.WithListingID(s.logg.WithAccountID(ctx, accountID.String()), listingID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"images":    len(images),
			"channels":  len(rows),
			"seo_score": base.SEOScore,
		})
		s.logg.Info(logCtx, "listing saved")
	}
	return s.Get(ctx, listingID, accountID)
}

func (s *service) Get(ctx context.Context, listingID, accountID uuid.UUID) (*ListingDTO, error) {
	listing, err := s.repo.FindAggregate(ctx, listingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	if listing.UserID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "listing belongs to another account")
	}
	dto := NewListingDTO(listing)
	sort.SliceStable(dto.Channels, func(i, j int) bool {
		return dto.Channels[i].ChannelSlug < dto.Channels[j].ChannelSlug
	})
	return dto, nil
}

func (s *service) List(ctx context.Context, accountID uuid.UUID, filters Filters) (*ListResult, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	query := summaryQuery{UserID: accountID, Search: filters.Search}
	if raw := strings.TrimSpace(filters.Status); raw != "" {
		status, err := enums.ParseListingStatus(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}
	cursor, err := pagination.ParseCursor(filters.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor

	query.Limit = pagination.LimitWithBuffer(filters.Limit)

	records, err := s.repo.ListSummaries(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	records, nextCursor := pagination.Trim(records, filters.Limit, func(r summaryRecord) pagination.Cursor {
		return pagination.Cursor{At: r.UpdatedAt, ID: r.ID}
	})

	ids := make([]uuid.UUID, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	readiness, err := s.repo.ListReadiness(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list channel readiness")
	}
	byListing := make(map[uuid.UUID][]ChannelReadiness, len(records))
	for _, row := range readiness {
		byListing[row.ListingID] = append(byListing[row.ListingID], ChannelReadiness{
			ChannelID:      row.ChannelID,
			Slug:           row.Slug,
			Name:           row.Name,
			ReadinessScore: row.ReadinessScore,
			IsReady:        row.IsReady,
		})
	}

	summaries := make([]Summary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.toSummary(byListing[record.ID]))
	}
	return &ListResult{Listings: summaries, NextCursor: nextCursor}, nil
}

// Delete removes the listings and their children atomically. Nothing is
// deleted unless every id exists and belongs to the account.
func (s *service) Delete(ctx context.Context, accountID uuid.UUID, ids ...uuid.UUID) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	unique := dedupeIDs(ids)
	if len(unique) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one listing id is required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		owners, err := repo.FindOwners(ctx, unique)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing owners")
		}

		var forbidden, missing error
		var forbiddenIDs, missingIDs []string
		for _, id := range unique {
			owner, ok := owners[id]
			switch {
			case !ok:
				missing = multierr.Append(missing, fmt.Errorf("listing %s not found", id))
				missingIDs = append(missingIDs, id.String())
			case owner != accountID:
				forbidden = multierr.Append(forbidden, fmt.Errorf("listing %s belongs to another account", id))
				forbiddenIDs = append(forbiddenIDs, id.String())
			}
		}
		if forbidden != nil {
			return pkgerrors.Wrap(pkgerrors.CodeForbidden, forbidden, "listing belongs to another account").
				WithDetails(map[string]any{"ids": forbiddenIDs})
		}
		if missing != nil {
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, missing, "listing not found").
				WithDetails(map[string]any{"ids": missingIDs})
		}

		if err := repo.DeleteListings(ctx, unique); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete listings")
		}
		return nil
	})
	if err != nil {
		return asDependency(err, "delete listings")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(s.logg.WithAccountID(ctx, accountID.String()), map[string]any{"deleted": len(unique)})
		s.logg.Info(logCtx, "listings deleted")
	}
	return nil
}

// AppendImages adds generated assets to the end of a listing's image set and
// re-saves the aggregate so readiness and score reflect them.
func (s *service) AppendImages(ctx context.Context, accountID, listingID uuid.UUID, urls []string) (*ListingDTO, error) {
	if len(urls) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one image url is required")
	}
	var err error
	for attempt := 0; attempt < appendImageAttempts; attempt++ {
		var current *ListingDTO
		current, err = s.Get(ctx, listingID, accountID)
		if err != nil {
			return nil, err
		}
		input := current.saveInput()
		for _, url := range urls {
			input.Images = append(input.Images, ImageInput{URL: url})
		}
		snapshot := current.UpdatedAt
		input.expectedUpdatedAt = &snapshot

		var saved *ListingDTO
		saved, err = s.Save(ctx, accountID, input)
		if !errors.Is(err, errStaleSnapshot) {
			return saved, err
		}
	}
	return nil, err
}

func (s *service) resolveOverrides(ctx context.Context, inputs []ChannelOverrideInput) ([]resolvedOverride, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	refs := make([]string, 0, len(inputs))
	for i, in := range inputs {
		ref := strings.TrimSpace(in.Channel)
		if ref == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "channels[%d].channelId is required", i)
		}
		refs = append(refs, ref)
	}

	byRef, err := s.channels.Resolve(ctx, refs)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(refs))
	out := make([]resolvedOverride, 0, len(refs))
	var duplicates []string
	for i, ref := range refs {
		ch := byRef[ref]
		if _, ok := seen[ch.ID]; ok {
			duplicates = append(duplicates, ref)
			continue
		}
		seen[ch.ID] = struct{}{}
		out = append(out, resolvedOverride{input: inputs[i], channel: ch})
	}
	if len(duplicates) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate channel overrides").
			WithDetails(map[string]any{"channels": duplicates})
	}
	return out, nil
}

// orderImages returns the urls in position order. Positions are either all
// omitted (array order) or all given as a permutation of 0..N-1.
func orderImages(images []ImageInput) ([]string, error) {
	urls := make([]string, len(images))
	positioned := 0
	for i, img := range images {
		if strings.TrimSpace(img.URL) == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "images[%d].url is required", i)
		}
		if img.Position != nil {
			positioned++
		}
	}
	if positioned == 0 {
		for i, img := range images {
			urls[i] = strings.TrimSpace(img.URL)
		}
		return urls, nil
	}
	if positioned != len(images) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "image positions must be set on every image or none")
	}

	placed := make([]bool, len(images))
	for _, img := range images {
		pos := *img.Position
		if pos < 0 || pos >= len(images) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "image position %d out of range 0..%d", pos, len(images)-1)
		}
		if placed[pos] {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "duplicate image position %d", pos)
		}
		placed[pos] = true
		urls[pos] = strings.TrimSpace(img.URL)
	}
	return urls, nil
}

func buildImages(listingID uuid.UUID, urls []string, now time.Time) []models.ListingImage {
	images := make([]models.ListingImage, 0, len(urls))
	for i, url := range urls {
		images = append(images, models.ListingImage{
			ID:        uuid.New(),
			ListingID: listingID,
			URL:       url,
			Position:  i,
			IsMain:    i == 0,
			CreatedAt: now,
		})
	}
	return images
}

// buildOverrides validates every override against its effective content: the
// override's own title and description fall back to the base, while price,
// category and images always come from the base.
func buildOverrides(base *models.Listing, urls []string, overrides []resolvedOverride, now time.Time) ([]models.ListingChannel, []seo.Override, error) {
	rows := make([]models.ListingChannel, 0, len(overrides))
	signals := make([]seo.Override, 0, len(overrides))
	for _, o := range overrides {
		tags := cleanList(o.input.Tags)
		bullets := cleanList(o.input.Bullets)
		materials := cleanList(o.input.Materials)
		title := strings.TrimSpace(o.input.Title)
		description := strings.TrimSpace(o.input.Description)

		result := o.channel.Validate(channels.Fields{
			Title:       firstNonEmpty(title, base.Title),
			Description: firstNonEmpty(description, base.Description),
			Price:       base.Price,
			Category:    base.Category,
			Images:      urls,
			Tags:        tags,
			Bullets:     bullets,
			Materials:   materials,
		})
		state, err := dbtypes.MarshalJSONValue(result)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode validation state")
		}
		var custom dbtypes.JSON
		if len(o.input.CustomFields) > 0 {
			if custom, err = dbtypes.MarshalJSONValue(o.input.CustomFields); err != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customFields")
			}
		}

		rows = append(rows, models.ListingChannel{
			ID:              uuid.New(),
			ListingID:       base.ID,
			ChannelID:       o.channel.ID,
			Title:           title,
			Description:     description,
			Tags:            dbtypes.StringList(tags),
			Bullets:         dbtypes.StringList(bullets),
			Materials:       dbtypes.StringList(materials),
			CustomFields:    custom,
			ValidationState: state,
			ReadinessScore:  result.ReadinessScore,
			IsReady:         result.IsReady,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		signals = append(signals, seo.Override{
			Tags:      len(tags),
			Bullets:   len(bullets),
			Materials: len(materials),
		})
	}
	return rows, signals, nil
}

func (d *ListingDTO) saveInput() SaveInput {
	id := d.ID
	input := SaveInput{
		ID:             &id,
		Title:          d.Title,
		Description:    d.Description,
		Price:          d.Price,
		Currency:       d.Currency.String(),
		Category:       d.Category,
		Status:         d.Status.String(),
		LastStep:       d.LastStep,
		ScrollPosition: d.ScrollPosition,
		Images:         make([]ImageInput, 0, len(d.Images)),
		Channels:       make([]ChannelOverrideInput, 0, len(d.Channels)),
	}
	for _, img := range d.Images {
		input.Images = append(input.Images, ImageInput{URL: img.URL})
	}
	for _, ch := range d.Channels {
		input.Channels = append(input.Channels, ChannelOverrideInput{
			Channel:      ch.ChannelID.String(),
			Title:        ch.Title,
			Description:  ch.Description,
			Tags:         ch.Tags,
			Bullets:      ch.Bullets,
			Materials:    ch.Materials,
			CustomFields: ch.CustomFields,
		})
	}
	return input
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func nullDecimal(value *decimal.Decimal) decimal.NullDecimal {
	if value == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *value, Valid: true}
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func asDependency(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
