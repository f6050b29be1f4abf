package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Profile is a signed-in user. Its ID is the partition key for votes.
type Profile struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	Email   string `gorm:"uniqueIndex;not null" json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`

	// OAuth fields
	GoogleID     string `gorm:"index" json:"-"` // Google subject
	AuthProvider string `json:"auth_provider"`  // "google"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

type OAuthRequest struct {
	Token string `json:"token" binding:"required"` // Google ID token from frontend
}

type AuthResponse struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}
