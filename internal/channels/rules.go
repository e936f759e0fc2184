package channels

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Field names understood by the rule engine.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldPrice       = "price"
	FieldCategory    = "category"
	FieldImages      = "images"
	FieldTags        = "tags"
	FieldBullets     = "bullets"
	FieldMaterials   = "materials"
)

// WarningThreshold is the fraction of a max bound at which a warning is raised.
const WarningThreshold = 0.85

var textFields = []string{FieldTitle, FieldDescription, FieldCategory}
var listFields = []string{FieldImages, FieldTags, FieldBullets, FieldMaterials}

// FieldRule constrains one field. Length bounds apply to text, Min/Max to list
// sizes and to price, ItemMaxLength to every list entry.
type FieldRule struct {
	Required      bool     `json:"required,omitempty"`
	MinLength     *int     `json:"minLength,omitempty"`
	MaxLength     *int     `json:"maxLength,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	ItemMaxLength *int     `json:"itemMaxLength,omitempty"`
}

// Rules is a channel's rule schema keyed by field name.
type Rules map[string]FieldRule

// Fields is the effective content a channel would receive.
type Fields struct {
	Title       string
	Description string
	Price       decimal.NullDecimal
	Category    string
	Images      []string
	Tags        []string
	Bullets     []string
	Materials   []string
}

// Result is the outcome of validating Fields against a channel's Rules.
type Result struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	ReadinessScore int      `json:"readinessScore"`
	IsReady        bool     `json:"isReady"`
}

type tally struct {
	total     int
	satisfied int
	errors    []string
	warnings  []string
}

func (t *tally) check(ok bool, message string) {
	t.total++
	if ok {
		t.satisfied++
		return
	}
	t.errors = append(t.errors, message)
}

func (t *tally) warn(message string) {
	t.warnings = append(t.warnings, message)
}

// Evaluate applies every rule to fields. Rules naming unknown fields are ignored.
func (r Rules) Evaluate(fields Fields) Result {
	t := &tally{}

	for _, name := range textFields {
		rule, ok := r[name]
		if !ok {
			continue
		}
		evaluateText(t, name, rule, textValue(fields, name))
	}
	if rule, ok := r[FieldPrice]; ok {
		evaluatePrice(t, rule, fields.Price)
	}
	for _, name := range listFields {
		rule, ok := r[name]
		if !ok {
			continue
		}
		evaluateList(t, name, rule, listValue(fields, name))
	}

	score := 100
	if t.total > 0 {
		score = int(math.Round(100 * float64(t.satisfied) / float64(t.total)))
	}
	errs := t.errors
	if errs == nil {
		errs = []string{}
	}
	warnings := t.warnings
	if warnings == nil {
		warnings = []string{}
	}
	return Result{
		Valid:          len(errs) == 0,
		Errors:         errs,
		Warnings:       warnings,
		ReadinessScore: score,
		IsReady:        len(errs) == 0,
	}
}

func evaluateText(t *tally, name string, rule FieldRule, value string) {
	value = strings.TrimSpace(value)
	length := utf8.RuneCountInString(value)
	empty := length == 0

	if rule.Required {
		t.check(!empty, fmt.Sprintf("%s is required", name))
	}
	if rule.MinLength != nil {
		t.check(empty || length >= *rule.MinLength,
			fmt.Sprintf("%s must be at least %d characters (got %d)", name, *rule.MinLength, length))
	}
	if rule.MaxLength != nil {
		limit := *rule.MaxLength
		t.check(length <= limit, fmt.Sprintf("%s must be at most %d characters (got %d)", name, limit, length))
		if nearLimit(length, limit) {
			t.warn(fmt.Sprintf("%s is close to the %d character limit (%d/%d)", name, limit, length, limit))
		}
	}
}

func evaluatePrice(t *tally, rule FieldRule, price decimal.NullDecimal) {
	if rule.Required {
		t.check(price.Valid, "price is required")
	}
	if rule.Min != nil {
		min := decimal.NewFromFloat(*rule.Min)
		t.check(!price.Valid || price.Decimal.GreaterThanOrEqual(min),
			fmt.Sprintf("price must be at least %s", min.StringFixed(2)))
	}
	if rule.Max != nil {
		max := decimal.NewFromFloat(*rule.Max)
		t.check(!price.Valid || price.Decimal.LessThanOrEqual(max),
			fmt.Sprintf("price must be at most %s", max.StringFixed(2)))
	}
}

func evaluateList(t *tally, name string, rule FieldRule, items []string) {
	count := 0
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			count++
		}
	}

	if rule.Required {
		t.check(count > 0, fmt.Sprintf("%s is required", name))
	}
	if rule.Min != nil {
		min := int(*rule.Min)
		t.check(count == 0 || count >= min,
			fmt.Sprintf("%s must have at least %d items (got %d)", name, min, count))
	}
	if rule.Max != nil {
		max := int(*rule.Max)
		t.check(count <= max, fmt.Sprintf("%s must have at most %d items (got %d)", name, max, count))
		if nearLimit(count, max) {
			t.warn(fmt.Sprintf("%s is close to the %d item limit (%d/%d)", name, max, count, max))
		}
	}
	if rule.ItemMaxLength != nil {
		limit := *rule.ItemMaxLength
		var tooLong []string
		for _, item := range items {
			if utf8.RuneCountInString(strings.TrimSpace(item)) > limit {
				tooLong = append(tooLong, item)
			}
		}
		t.check(len(tooLong) == 0, fmt.Sprintf("%s entries must be at most %d characters: %s", name, limit, strings.Join(tooLong, ", ")))
	}
}

// nearLimit reports a value at or above the warning threshold of limit but not over it.
func nearLimit(value, limit int) bool {
	if limit <= 0 || value > limit {
		return false
	}
	return float64(value) >= WarningThreshold*float64(limit)
}

func textValue(fields Fields, name string) string {
	switch name {
	case FieldTitle:
		return fields.Title
	case FieldDescription:
		return fields.Description
	case FieldCategory:
		return fields.Category
	default:
		return ""
	}
}

func listValue(fields Fields, name string) []string {
	switch name {
	case FieldImages:
		return fields.Images
	case FieldTags:
		return fields.Tags
	case FieldBullets:
		return fields.Bullets
	case FieldMaterials:
		return fields.Materials
	default:
		return nil
	}
}
