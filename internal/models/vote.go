package models

import "time"

// CaptionVote tracks one user's vote on one caption
type CaptionVote struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	ProfileID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_caption_votes_profile_caption" json:"profile_id"`
	CaptionID  string    `gorm:"type:uuid;not null;uniqueIndex:idx_caption_votes_profile_caption;index" json:"caption_id"`
	VoteValue  int       `gorm:"type:smallint;not null;check:vote_value IN (-1, 1)" json:"vote_value"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

func (CaptionVote) TableName() string {
	return "caption_votes"
}
