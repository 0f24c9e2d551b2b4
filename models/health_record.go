package models

import (
	"time"

	"gorm.io/gorm"
)

// HealthRecord is one scalar observation in canonical units. The composite
// unique index is the upsert key: one row per (user, metric, timestamp, source).
type HealthRecord struct {
	gorm.Model
	UserID       uint      `gorm:"index;not null;uniqueIndex:idx_record_upsert" json:"user_id"`
	MetricType   string    `gorm:"size:64;not null;uniqueIndex:idx_record_upsert" json:"metric_type"`
	Value        float64   `json:"value"`
	Unit         string    `gorm:"size:32" json:"unit"` // always the canonical unit for MetricType
	RecordedAt   time.Time `gorm:"index;not null;uniqueIndex:idx_record_upsert" json:"recorded_at"`
	SourceApp    string    `gorm:"size:64;not null;uniqueIndex:idx_record_upsert" json:"source_app"`
	SourceDevice string    `gorm:"size:128" json:"source_device,omitempty"`
	QualityScore float64   `json:"quality_score"`
	IsCanonical  bool      `gorm:"index;default:true" json:"is_canonical"`
	Description  string    `gorm:"type:text" json:"description,omitempty"`
	Metadata     JSONMap   `gorm:"type:jsonb" json:"metadata,omitempty"`
}
