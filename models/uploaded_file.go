package models

import "gorm.io/gorm"

// UploadedFile records one ingested document: where the raw blob lives and
// what the extraction service pulled out of it.
type UploadedFile struct {
	gorm.Model
	UserID               uint    `gorm:"index;not null" json:"user_id"`
	FileName             string  `gorm:"size:255" json:"file_name"`
	MimeType             string  `gorm:"size:128" json:"mime_type"`
	SizeBytes            int64   `json:"size_bytes"`
	StoragePath          string  `gorm:"size:512" json:"storage_path"`
	ExtractedData        JSONMap `gorm:"type:jsonb" json:"extracted_data,omitempty"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
	DataCategories       string  `gorm:"size:255" json:"data_categories"` // comma-sep canonical metric types
	DateRangeStart       string  `gorm:"size:10" json:"date_range_start"` // YYYY-MM-DD, empty if unknown
	DateRangeEnd         string  `gorm:"size:10" json:"date_range_end"`
}
