package models

import (
	"time"

	"gorm.io/gorm"
)

// ConnectedSource is one logical connection per (user, app); reconnecting
// updates the existing row instead of creating a second one.
type ConnectedSource struct {
	gorm.Model
	UserID      uint       `gorm:"index;not null;uniqueIndex:idx_user_app" json:"user_id"`
	AppName     string     `gorm:"size:64;not null;uniqueIndex:idx_user_app" json:"app_name"`
	AppType     string     `gorm:"size:32" json:"app_type"` // "device" | "app" | "manual" | "estimate"
	Credentials string     `gorm:"type:text" json:"-"`      // opaque blob, never serialized out
	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
}
