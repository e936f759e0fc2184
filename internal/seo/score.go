// Package seo scores listing completeness on a 0-100 scale.
package seo

import (
	"strings"
	"unicode/utf8"
)

// Base carries the listing-level signals.
type Base struct {
	Title       string
	Description string
	Category    string
	ImageCount  int
}

// Override carries the per-channel list signals.
type Override struct {
	Tags      int
	Bullets   int
	Materials int
}

// Breakdown exposes the points awarded per signal.
type Breakdown struct {
	Title       int `json:"title"`
	Description int `json:"description"`
	Images      int `json:"images"`
	Category    int `json:"category"`
	Tags        int `json:"tags"`
	Bullets     int `json:"bullets"`
	Materials   int `json:"materials"`
}

// Total sums the breakdown, clamped to 100.
func (b Breakdown) Total() int {
	total := b.Title + b.Description + b.Images + b.Category + b.Tags + b.Bullets + b.Materials
	if total > 100 {
		return 100
	}
	if total < 0 {
		return 0
	}
	return total
}

// Score is the weighted completeness score. Overrides are alternatives: each
// list signal takes the best channel, so their order never matters.
func Score(base Base, overrides []Override) int {
	return Explain(base, overrides).Total()
}

// Explain returns the per-signal points behind Score.
func Explain(base Base, overrides []Override) Breakdown {
	var best Override
	for _, o := range overrides {
		best.Tags = max(best.Tags, o.Tags)
		best.Bullets = max(best.Bullets, o.Bullets)
		best.Materials = max(best.Materials, o.Materials)
	}

	b := Breakdown{
		Title:       titlePoints(runeLen(base.Title)),
		Description: descriptionPoints(runeLen(base.Description)),
		Images:      imagePoints(base.ImageCount),
		Tags:        tagPoints(best.Tags),
		Bullets:     bulletPoints(best.Bullets),
		Materials:   materialPoints(best.Materials),
	}
	if strings.TrimSpace(base.Category) != "" {
		b.Category = 10
	}
	return b
}

func titlePoints(n int) int {
	switch {
	case n < 10:
		return 0
	case n < 40:
		return 10
	case n <= 140:
		return 20
	default:
		return 12
	}
}

func descriptionPoints(n int) int {
	switch {
	case n < 50:
		return 0
	case n < 200:
		return 10
	case n <= 2000:
		return 20
	default:
		return 15
	}
}

func imagePoints(n int) int {
	switch {
	case n >= 5:
		return 20
	case n >= 3:
		return 12
	case n >= 1:
		return 5
	default:
		return 0
	}
}

func tagPoints(n int) int {
	switch {
	case n >= 10:
		return 10
	case n >= 5:
		return 6
	case n >= 1:
		return 3
	default:
		return 0
	}
}

func bulletPoints(n int) int {
	switch {
	case n >= 5:
		return 10
	case n >= 3:
		return 6
	case n >= 1:
		return 3
	default:
		return 0
	}
}

func materialPoints(n int) int {
	switch {
	case n >= 3:
		return 10
	case n >= 1:
		return 5
	default:
		return 0
	}
}

func runeLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}
