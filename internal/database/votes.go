package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/caption-rater/backend/internal/models"
	"github.com/emilythestrangee/caption-rater/backend/internal/rating"
)

// VoteRepository writes caption votes keyed by (profile_id, caption_id).
type VoteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) *VoteRepository {
	return &VoteRepository{db: db}
}

// UpsertVote updates the existing vote or inserts a new one. Calling it
// twice with the same value leaves one row.
func (r *VoteRepository) UpsertVote(ctx context.Context, userID, captionID string, value rating.VoteValue, at time.Time) error {
	if !value.Valid() {
		return rating.ErrInvalidVote
	}

	// Update first; most writes after an undo hit an existing row
	res := r.db.WithContext(ctx).
		Model(&models.CaptionVote{}).
		Where("profile_id = ? AND caption_id = ?", userID, captionID).
		Updates(map[string]any{
			"vote_value":  int(value),
			"modified_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("error updating vote: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	vote := models.CaptionVote{
		ProfileID:  userID,
		CaptionID:  captionID,
		VoteValue:  int(value),
		CreatedAt:  at,
		ModifiedAt: at,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "profile_id"}, {Name: "caption_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"vote_value":  int(value),
			"modified_at": at,
		}),
	}).Create(&vote).Error
	if err != nil {
		return fmt.Errorf("error inserting vote: %w", err)
	}
	return nil
}

func (r *VoteRepository) DeleteVote(ctx context.Context, userID, captionID string) error {
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND caption_id = ?", userID, captionID).
		Delete(&models.CaptionVote{}).Error
	if err != nil {
		return fmt.Errorf("error deleting vote: %w", err)
	}
	return nil
}

var (
	_ rating.ContentSource = (*CaptionRepository)(nil)
	_ rating.VotesStore    = (*VoteRepository)(nil)
)
