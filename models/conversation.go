package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation groups chat messages. Its "last updated" time is derived from
// the newest message, not stored here.
type Conversation struct {
	gorm.Model
	UserID   uint      `gorm:"index;not null" json:"user_id"`
	Title    string    `gorm:"size:255" json:"title"`
	Messages []Message `json:"messages,omitempty"`
}

type Message struct {
	gorm.Model
	ConversationID uint    `gorm:"index;not null" json:"conversation_id"`
	Role           string  `gorm:"size:16;not null" json:"role"` // "user" | "assistant"
	Content        string  `gorm:"type:text;not null" json:"content"`
	Metadata       JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// LastUpdated returns the newest message time, falling back to the
// conversation's own UpdatedAt when no messages are loaded.
func (c *Conversation) LastUpdated() time.Time {
	latest := c.UpdatedAt
	for _, m := range c.Messages {
		if m.CreatedAt.After(latest) {
			latest = m.CreatedAt
		}
	}
	return latest
}
