package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/caption-rater/backend/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// UpsertGoogle finds the profile for a Google identity, creating it on
// first sign-in and filling in fields that were missing.
func (r *ProfileRepository) UpsertGoogle(ctx context.Context, id GoogleIdentity) (*models.Profile, error) {
	db := r.db.WithContext(ctx)

	var profile models.Profile
	result := db.Where("google_id = ? OR email = ?", id.Sub, id.Email).First(&profile)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		profile = models.Profile{
			Email:        id.Email,
			Name:         id.Name,
			Picture:      id.Picture,
			GoogleID:     id.Sub,
			AuthProvider: "google",
		}
		if err := db.Create(&profile).Error; err != nil {
			if !isUniqueViolation(err) {
				return nil, fmt.Errorf("error creating profile: %w", err)
			}
			// Lost a race with a concurrent first sign-in
			profile = models.Profile{}
			if err := db.Where("email = ?", id.Email).First(&profile).Error; err != nil {
				return nil, fmt.Errorf("error loading profile: %w", err)
			}
		}
		return &profile, nil
	} else if result.Error != nil {
		return nil, fmt.Errorf("error loading profile: %w", result.Error)
	}

	updates := map[string]any{}
	if profile.GoogleID == "" {
		profile.GoogleID = id.Sub
		updates["google_id"] = id.Sub
	}
	if profile.Picture == "" && id.Picture != "" {
		profile.Picture = id.Picture
		updates["picture"] = id.Picture
	}
	if profile.Name == "" && id.Name != "" {
		profile.Name = id.Name
		updates["name"] = id.Name
	}
	if len(updates) > 0 {
		if err := db.Model(&profile).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("error updating profile: %w", err)
		}
	}
	return &profile, nil
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading profile: %w", err)
	}
	return &profile, nil
}
