package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/emilythestrangee/caption-rater/backend/internal/models"
	"github.com/emilythestrangee/caption-rater/backend/internal/rating"
)

// CaptionRepository reads the caption catalog. It is the rating session's
// content source.
type CaptionRepository struct {
	db *gorm.DB
}

func NewCaptionRepository(db *gorm.DB) *CaptionRepository {
	return &CaptionRepository{db: db}
}

// FetchItems returns the newest captions that have an image with a URL.
func (r *CaptionRepository) FetchItems(ctx context.Context, limit int) ([]rating.Item, error) {
	var rows []struct {
		ID      string
		Content string
		URL     string
	}

	err := r.db.WithContext(ctx).
		Model(&models.Caption{}).
		Select("captions.id, captions.content, images.url").
		Joins("JOIN images ON images.id = captions.image_id").
		Where("captions.image_id IS NOT NULL").
		Where("images.url <> ''").
		Order("captions.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching captions: %w", err)
	}

	items := make([]rating.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, rating.Item{ID: row.ID, Content: row.Content, ImageURL: row.URL})
	}
	return items, nil
}

// FetchExistingVotes returns userID's votes for exactly itemIDs. Ids without
// a vote are omitted.
func (r *CaptionRepository) FetchExistingVotes(ctx context.Context, userID string, itemIDs []string) (map[string]rating.VoteValue, error) {
	out := make(map[string]rating.VoteValue)
	if len(itemIDs) == 0 {
		return out, nil
	}

	var votes []models.CaptionVote
	err := r.db.WithContext(ctx).
		Where("profile_id = ? AND caption_id IN ?", userID, itemIDs).
		Find(&votes).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching votes: %w", err)
	}

	for _, v := range votes {
		value := rating.VoteValue(v.VoteValue)
		if value.Valid() {
			out[v.CaptionID] = value
		}
	}
	return out, nil
}

type GalleryCaption struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	CreatedAt time.Time `json:"created_at"`
}

type GalleryImage struct {
	ID        string           `json:"id"`
	URL       string           `json:"url"`
	CreatedAt time.Time        `json:"created_at"`
	Captions  []GalleryCaption `json:"captions"`
}

// Gallery returns the newest images with their captions and vote tallies.
func (r *CaptionRepository) Gallery(ctx context.Context, limit int) ([]GalleryImage, error) {
	var images []models.Image
	err := r.db.WithContext(ctx).
		Where("url <> ''").
		Order("created_at desc").
		Limit(limit).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching images: %w", err)
	}
	if len(images) == 0 {
		return []GalleryImage{}, nil
	}

	imageIDs := make([]string, len(images))
	for k, img := range images {
		imageIDs[k] = img.ID
	}

	var captions []models.Caption
	err = r.db.WithContext(ctx).
		Where("image_id IN ?", imageIDs).
		Order("created_at desc").
		Find(&captions).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching captions: %w", err)
	}

	captionIDs := make([]string, len(captions))
	for k, c := range captions {
		captionIDs[k] = c.ID
	}
	tallies, err := r.tallies(ctx, captionIDs)
	if err != nil {
		return nil, err
	}

	byImage := make(map[string][]GalleryCaption, len(images))
	for _, c := range captions {
		t := tallies[c.ID]
		byImage[*c.ImageID] = append(byImage[*c.ImageID], GalleryCaption{
			ID:        c.ID,
			Content:   c.Content,
			Upvotes:   t.Upvotes,
			Downvotes: t.Downvotes,
			CreatedAt: c.CreatedAt,
		})
	}

	out := make([]GalleryImage, 0, len(images))
	for _, img := range images {
		caps := byImage[img.ID]
		if caps == nil {
			caps = []GalleryCaption{}
		}
		out = append(out, GalleryImage{
			ID:        img.ID,
			URL:       img.URL,
			CreatedAt: img.CreatedAt,
			Captions:  caps,
		})
	}
	return out, nil
}

type tally struct {
	CaptionID string
	Upvotes   int
	Downvotes int
}

func (r *CaptionRepository) tallies(ctx context.Context, captionIDs []string) (map[string]tally, error) {
	out := make(map[string]tally, len(captionIDs))
	if len(captionIDs) == 0 {
		return out, nil
	}

	var rows []tally
	err := r.db.WithContext(ctx).
		Model(&models.CaptionVote{}).
		Select("caption_id, "+
			"COUNT(*) FILTER (WHERE vote_value = 1) AS upvotes, "+
			"COUNT(*) FILTER (WHERE vote_value = -1) AS downvotes").
		Where("caption_id IN ?", captionIDs).
		Group("caption_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error counting votes: %w", err)
	}

	for _, row := range rows {
		out[row.CaptionID] = row
	}
	return out, nil
}
