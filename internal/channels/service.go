package channels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/listingforge-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/listingforge-backend/pkg/db/types"
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/listingforge-backend/pkg/errors"
)

// Channel is a catalog entry with its decoded rule schema.
type Channel struct {
	ID           uuid.UUID          `json:"id"`
	Slug         string             `json:"slug"`
	Name         string             `json:"name"`
	ExportFormat enums.ExportFormat `json:"exportFormat"`
	Rules        Rules              `json:"rules"`
}

// Validate evaluates fields against the channel's rules.
func (c Channel) Validate(fields Fields) Result {
	return c.Rules.Evaluate(fields)
}

// Service exposes the channel catalog and the validation engine.
type Service interface {
	Seed(ctx context.Context, defs []Definition) error
	List(ctx context.Context) ([]Channel, error)
	Validate(ctx context.Context, slug string, fields Fields) (*Result, error)
	Resolve(ctx context.Context, refs []string) (map[string]Channel, error)
	ByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Channel, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a channel service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("channel repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Seed(ctx context.Context, defs []Definition) error {
	for _, def := range defs {
		if !def.ExportFormat.IsValid() {
			return fmt.Errorf("channel %s: invalid export format %q", def.Slug, def.ExportFormat)
		}
		rules, err := dbtypes.MarshalJSONValue(def.Rules)
		if err != nil {
			return fmt.Errorf("channel %s: encode rules: %w", def.Slug, err)
		}
		now := s.now().UTC()
		row := &models.Channel{
			ID:           uuid.New(),
			Slug:         def.Slug,
			Name:         def.Name,
			ExportFormat: def.ExportFormat,
			Rules:        rules,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Upsert(ctx, row); err != nil {
			return pkgerrors.Wrapf(pkgerrors.CodeDependency, err, "seed channel %s", def.Slug)
		}
	}
	return nil
}

func (s *service) List(ctx context.Context) ([]Channel, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list channels")
	}
	out := make([]Channel, 0, len(rows))
	for _, row := range rows {
		ch, err := fromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func (s *service) Validate(ctx context.Context, slug string, fields Fields) (*Result, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "channel slug is required")
	}
	row, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown channel %q", slug)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load channel")
	}
	ch, err := fromModel(*row)
	if err != nil {
		return nil, err
	}
	result := ch.Validate(fields)
	return &result, nil
}

// Resolve maps each reference (slug or id) to its channel. Any unknown
// reference is a validation error naming every miss.
func (s *service) Resolve(ctx context.Context, refs []string) (map[string]Channel, error) {
	out := make(map[string]Channel, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	var slugs []string
	var ids []uuid.UUID
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if id, err := uuid.Parse(ref); err == nil {
			ids = append(ids, id)
			continue
		}
		slugs = append(slugs, ref)
	}

	bySlug, err := s.repo.FindBySlugs(ctx, slugs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load channels by slug")
	}
	byID, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load channels by id")
	}

	known := make(map[string]Channel, len(bySlug)+len(byID))
	for _, row := range append(bySlug, byID...) {
		ch, err := fromModel(row)
		if err != nil {
			return nil, err
		}
		known[ch.Slug] = ch
		known[ch.ID.String()] = ch
	}

	var missing []string
	for _, ref := range refs {
		key := strings.TrimSpace(ref)
		if id, err := uuid.Parse(key); err == nil {
			key = id.String()
		}
		ch, ok := known[key]
		if !ok {
			missing = append(missing, ref)
			continue
		}
		out[ref] = ch
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown channels").
			WithDetails(map[string]any{"channels": missing})
	}
	return out, nil
}

func (s *service) ByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Channel, error) {
	rows, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load channels")
	}
	out := make(map[uuid.UUID]Channel, len(rows))
	for _, row := range rows {
		ch, err := fromModel(row)
		if err != nil {
			return nil, err
		}
		out[ch.ID] = ch
	}
	return out, nil
}

func fromModel(row models.Channel) (Channel, error) {
	rules := Rules{}
	if len(row.Rules) > 0 {
		if err := json.Unmarshal(row.Rules, &rules); err != nil {
			return Channel{}, pkgerrors.Wrapf(pkgerrors.CodeInternal, err, "decode rules for channel %s", row.Slug)
		}
	}
	return Channel{
		ID:           row.ID,
		Slug:         row.Slug,
		Name:         row.Name,
		ExportFormat: row.ExportFormat,
		Rules:        rules,
	}, nil
}
