package models

import (
	"time"

	"gorm.io/gorm"
)

// HealthEvent is a bounded activity (workout, meal, sleep session) that does
// not fit the scalar HealthRecord shape. Metrics holds the per-event-type
// payload; services.ValidateEventMetrics checks it against the schema for
// EventType before a row is written.
type HealthEvent struct {
	gorm.Model
	UserID       uint       `gorm:"index;not null" json:"user_id"`
	EventType    string     `gorm:"size:32;not null" json:"event_type"` // "workout" | "meal" | "sleep"
	StartTime    time.Time  `gorm:"index;not null" json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"` // nil for instantaneous events; >= StartTime when set
	Title        string     `gorm:"size:255" json:"title"`
	Description  string     `gorm:"type:text" json:"description,omitempty"`
	Metrics      JSONMap    `gorm:"type:jsonb" json:"metrics,omitempty"`
	SourceApp    string     `gorm:"size:64" json:"source_app"`
	QualityScore float64    `json:"quality_score"`
}
