package handlers

import (
	"time"

	"github.com/emilythestrangee/caption-rater/backend/internal/rating"
)

// Handler combines all handler types
type Handler struct {
	Auth    *AuthHandler
	Gallery *GalleryHandler
	Rating  *RatingHandler
}

type Deps struct {
	Profiles  ProfileStore
	Verifier  TokenVerifier
	Gallery   GallerySource
	Sessions  *rating.Registry
	JWTSecret []byte
	TokenTTL  time.Duration
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(d Deps) *Handler {
	return &Handler{
		Auth:    NewAuthHandler(d.Profiles, d.Verifier, d.Sessions, d.JWTSecret, d.TokenTTL),
		Gallery: NewGalleryHandler(d.Gallery),
		Rating:  NewRatingHandler(d.Sessions),
	}
}
