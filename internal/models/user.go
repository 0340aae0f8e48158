package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the minimal profile the chat subsystem needs. The full employee
// record lives in the HR module and is synced by ID.
type User struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username string `gorm:"uniqueIndex" json:"username"`
	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex" json:"email"`
	Image    string `json:"image"`

	// Presence: bumped as a side effect of marking messages read and by the
	// socket server on disconnect.
	LastSeenAt *time.Time `json:"lastSeenAt"`
}
