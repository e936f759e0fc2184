package enums

import "fmt"

// ExportFormat is the file layout a channel expects for bulk uploads.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatTSV  ExportFormat = "tsv"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatJSON ExportFormat = "json"
)

var validExportFormats = []ExportFormat{
	ExportFormatCSV,
	ExportFormatTSV,
	ExportFormatXLSX,
	ExportFormatJSON,
}

// String implements fmt.Stringer.
func (f ExportFormat) String() string {
	return string(f)
}

// IsValid reports whether the value is known.
func (f ExportFormat) IsValid() bool {
	for _, candidate := range validExportFormats {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseExportFormat converts raw input into an ExportFormat.
func ParseExportFormat(value string) (ExportFormat, error) {
	for _, candidate := range validExportFormats {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid export format %q", value)
}
