package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email            string    `gorm:"uniqueIndex;not null" json:"email"`
	Password         string    `gorm:"not null" json:"-"`
	FullName         string    `json:"full_name"`
	Birthday         time.Time `json:"birthday,omitempty"`
	HeightCm         float64   `json:"height_cm,omitempty"`
	HealthConditions string    `json:"health_conditions,omitempty"` // comma-sep
	WellnessGoals    string    `json:"wellness_goals,omitempty"`    // comma-sep
	Onboarded        bool      `json:"onboarded"`
	Disabled         bool      `gorm:"default:false" json:"-"`
}
