package models

import "time"

// Alert is a user-visible notice about background work: a finished sync batch,
// a dedup pass, or an extraction result.
type Alert struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Type      string    `gorm:"size:20" json:"type"` // "sync" | "dedup" | "extraction" | "info"
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
