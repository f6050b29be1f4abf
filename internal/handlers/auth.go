package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/emilythestrangee/caption-rater/backend/internal/database"
	"github.com/emilythestrangee/caption-rater/backend/internal/logging"
	"github.com/emilythestrangee/caption-rater/backend/internal/middleware"
	"github.com/emilythestrangee/caption-rater/backend/internal/models"
	"github.com/emilythestrangee/caption-rater/backend/internal/rating"
)

type ProfileStore interface {
	UpsertGoogle(ctx context.Context, id database.GoogleIdentity) (*models.Profile, error)
	Get(ctx context.Context, id string) (*models.Profile, error)
}

// TokenVerifier checks an ID token with the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*GoogleUserInfo, error)
}

type AuthHandler struct {
	profiles ProfileStore
	verifier TokenVerifier
	sessions *rating.Registry
	secret   []byte
	ttl      time.Duration
}

func NewAuthHandler(profiles ProfileStore, verifier TokenVerifier, sessions *rating.Registry, secret []byte, ttl time.Duration) *AuthHandler {
	return &AuthHandler{
		profiles: profiles,
		verifier: verifier,
		sessions: sessions,
		secret:   secret,
		ttl:      ttl,
	}
}

// GoogleUserInfo represents user data from Google OAuth
type GoogleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Picture       string `json:"picture"`
	Name          string `json:"name"`
	Audience      string `json:"aud"`
}

// GoogleVerifier verifies ID tokens against Google's tokeninfo endpoint.
type GoogleVerifier struct {
	ClientID string // empty skips the audience check
	Endpoint string
	Client   *http.Client
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		ClientID: clientID,
		Endpoint: "https://oauth2.googleapis.com/tokeninfo",
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.Endpoint+"?id_token="+url.QueryEscape(idToken), nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid google token")
	}

	var user GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if user.EmailVerified != "true" {
		return nil, fmt.Errorf("email not verified")
	}
	if v.ClientID != "" && user.Audience != v.ClientID {
		return nil, fmt.Errorf("token issued for another client")
	}

	return &user, nil
}

// GoogleLogin handles Google OAuth login
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var input models.OAuthRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	googleUser, err := h.verifier.Verify(c.Request.Context(), input.Token)
	if err != nil {
		slog.Info("Google token rejected", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Google token"})
		return
	}

	profile, err := h.profiles.UpsertGoogle(c.Request.Context(), database.GoogleIdentity{
		Sub:     googleUser.Sub,
		Email:   googleUser.Email,
		Name:    googleUser.Name,
		Picture: googleUser.Picture,
	})
	if err != nil {
		slog.Error("Failed to upsert profile", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	tokenString, err := h.generateToken(profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Token:   tokenString,
		Profile: *profile,
	})
}

// GetMe returns the current authenticated profile
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if errors.Is(err, database.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, profile)
}

// Logout discards the user's in-memory rating session. Stored votes remain.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	h.sessions.End(userID)
	logging.WithUser(userID).Info("Rating session ended")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *AuthHandler) generateToken(profile *models.Profile) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": profile.ID,
		"email":   profile.Email,
		"exp":     time.Now().Add(h.ttl).Unix(),
	})
	return token.SignedString(h.secret)
}
