package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/caption-rater/backend/internal/middleware"
	"github.com/emilythestrangee/caption-rater/backend/internal/rating"
)

type RatingHandler struct {
	sessions *rating.Registry
}

func NewRatingHandler(sessions *rating.Registry) *RatingHandler {
	return &RatingHandler{sessions: sessions}
}

type voteRequest struct {
	CaptionID string `json:"caption_id" binding:"required"`
	VoteValue int    `json:"vote_value" binding:"required,oneof=-1 1"`
}

type keyRequest struct {
	Code   string `json:"code" binding:"required"`
	Typing bool   `json:"typing"`
}

// StartSession loads a fresh batch and resumes from the last seen caption
func (h *RatingHandler) StartSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	_, snap, err := h.sessions.Start(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, &snap)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": snap})
}

// GetSession returns the current session state
func (h *RatingHandler) GetSession(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": ctrl.Snapshot()})
}

// Vote casts an up/down vote on the current caption
func (h *RatingHandler) Vote(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var input voteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote value must be -1 or 1"})
		return
	}

	err := ctrl.CastVote(c.Request.Context(), input.CaptionID, rating.VoteValue(input.VoteValue))
	respond(c, ctrl, err)
}

// Undo reverses the most recent vote
func (h *RatingHandler) Undo(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	respond(c, ctrl, ctrl.Undo(c.Request.Context()))
}

// Key applies a keyboard shortcut: ArrowUp, ArrowDown or KeyZ
func (h *RatingHandler) Key(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}

	var input keyRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	action := rating.ActionForKey(input.Code, input.Typing)
	switch action {
	case rating.ActionVoteUp, rating.ActionVoteDown:
		value := rating.Up
		if action == rating.ActionVoteDown {
			value = rating.Down
		}
		snap := ctrl.Snapshot()
		if snap.Current == nil {
			err = rating.ErrNotActive
			break
		}
		err = ctrl.CastVote(c.Request.Context(), snap.Current.ID, value)
	case rating.ActionUndo:
		err = ctrl.Undo(c.Request.Context())
	}
	respond(c, ctrl, err)
}

// DismissError clears the surfaced vote error
func (h *RatingHandler) DismissError(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.DismissError()
	c.JSON(http.StatusOK, gin.H{"session": ctrl.Snapshot()})
}

func (h *RatingHandler) controller(c *gin.Context) (*rating.Controller, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}
	ctrl, ok := h.sessions.Get(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": rating.ErrNoSession.Error()})
		return nil, false
	}
	return ctrl, true
}

func respond(c *gin.Context, ctrl *rating.Controller, err error) {
	snap := ctrl.Snapshot()
	if err != nil {
		respondError(c, err, &snap)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": snap})
}

func respondError(c *gin.Context, err error, snap *rating.Snapshot) {
	c.JSON(statusFor(err), gin.H{"error": err.Error(), "session": snap})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rating.ErrContentUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, rating.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, rating.ErrBusy), errors.Is(err, rating.ErrNothingToUndo), errors.Is(err, rating.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, rating.ErrNotCurrent), errors.Is(err, rating.ErrInvalidVote):
		return http.StatusBadRequest
	case errors.Is(err, rating.ErrVoteWriteFailed):
		return http.StatusBadGateway
	case errors.Is(err, rating.ErrNoSession):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
