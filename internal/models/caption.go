package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Image struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	URL       string    `gorm:"not null" json:"url"`
	ProfileID string    `gorm:"type:uuid;index" json:"profile_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (i *Image) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Caption is one piece of text attached to an image. Captions without an
// image are never offered for rating.
type Caption struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	Content   string    `gorm:"not null" json:"content"`
	ImageID   *string   `gorm:"type:uuid;index" json:"image_id,omitempty"`
	Image     *Image    `gorm:"foreignKey:ImageID" json:"image,omitempty"`
	ProfileID string    `gorm:"type:uuid;index" json:"profile_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Caption) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
