package channels

import (
	"github.com/angelmondragon/listingforge-backend/pkg/enums"
)

// Definition is a catalog entry before it is persisted.
type Definition struct {
	Slug         string
	Name         string
	ExportFormat enums.ExportFormat
	Rules        Rules
}

func intPtr(v int) *int {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

// DefaultCatalog lists the marketplaces seeded at startup.
func DefaultCatalog() []Definition {
	return []Definition{
		{
			Slug:         "etsy",
			Name:         "Etsy",
			ExportFormat: enums.ExportFormatCSV,
			Rules: Rules{
				FieldTitle:       {Required: true, MaxLength: intPtr(140)},
				FieldDescription: {Required: true, MinLength: intPtr(50)},
				FieldPrice:       {Required: true, Min: floatPtr(0.20), Max: floatPtr(50000)},
				FieldCategory:    {Required: true},
				FieldImages:      {Required: true, Max: floatPtr(10)},
				FieldTags:        {Max: floatPtr(13), ItemMaxLength: intPtr(20)},
				FieldMaterials:   {Max: floatPtr(13), ItemMaxLength: intPtr(45)},
			},
		},
		{
			Slug:         "amazon",
			Name:         "Amazon",
			ExportFormat: enums.ExportFormatTSV,
			Rules: Rules{
				FieldTitle:       {Required: true, MaxLength: intPtr(200)},
				FieldDescription: {Required: true, MaxLength: intPtr(2000)},
				FieldPrice:       {Required: true, Min: floatPtr(0.01)},
				FieldCategory:    {Required: true},
				FieldImages:      {Required: true, Max: floatPtr(9)},
				FieldBullets:     {Required: true, Max: floatPtr(5), ItemMaxLength: intPtr(500)},
				FieldTags:        {ItemMaxLength: intPtr(250)},
			},
		},
		{
			Slug:         "ebay",
			Name:         "eBay",
			ExportFormat: enums.ExportFormatCSV,
			Rules: Rules{
				FieldTitle:       {Required: true, MaxLength: intPtr(80)},
				FieldDescription: {Required: true, MaxLength: intPtr(4000)},
				FieldPrice:       {Required: true, Min: floatPtr(0.99)},
				FieldCategory:    {Required: true},
				FieldImages:      {Required: true, Max: floatPtr(24)},
			},
		},
		{
			Slug:         "shopify",
			Name:         "Shopify",
			ExportFormat: enums.ExportFormatCSV,
			Rules: Rules{
				FieldTitle:       {Required: true, MaxLength: intPtr(255)},
				FieldDescription: {MaxLength: intPtr(5000)},
				FieldPrice:       {Required: true, Min: floatPtr(0)},
				FieldImages:      {Max: floatPtr(250)},
				FieldTags:        {Max: floatPtr(250), ItemMaxLength: intPtr(255)},
			},
		},
		{
			Slug:         "tiktok_shop",
			Name:         "TikTok Shop",
			ExportFormat: enums.ExportFormatXLSX,
			Rules: Rules{
				FieldTitle:       {Required: true, MinLength: intPtr(25), MaxLength: intPtr(255)},
				FieldDescription: {Required: true, MinLength: intPtr(60), MaxLength: intPtr(10000)},
				FieldPrice:       {Required: true, Min: floatPtr(0.01)},
				FieldCategory:    {Required: true},
				FieldImages:      {Required: true, Min: floatPtr(3), Max: floatPtr(9)},
			},
		},
	}
}
