// Package rating implements the rating session: one unrated caption at a
// time, optimistic votes with rollback, and single-level undo.
package rating

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/emilythestrangee/caption-rater/backend/internal/metrics"
)

const (
	DefaultBatchSize  = 250
	DefaultMinVoteGap = 350 * time.Millisecond
	DefaultNoticeTTL  = 1200 * time.Millisecond

	slowDownNotice = "Slow down"
)

type Options struct {
	BatchSize  int
	MinVoteGap time.Duration // zero disables the debounce
	NoticeTTL  time.Duration
	Clock      clockwork.Clock
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		BatchSize:  DefaultBatchSize,
		MinVoteGap: DefaultMinVoteGap,
		NoticeTTL:  DefaultNoticeTTL,
	}
}

// Controller owns the state of one user's rating session. All state
// transitions happen under mu; store calls happen with mu released and the
// inFlight flag set, so at most one store call is outstanding at a time.
type Controller struct {
	userID  string
	content ContentSource
	votes   VotesStore
	markers MarkerStore
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu          sync.Mutex
	phase       Phase
	items       []Item
	state       map[string]VoteValue
	cursor      int
	undo        []UndoEntry
	restored    bool
	inFlight    bool
	lastVoteAt  time.Time
	errMsg      string
	loadFailed  bool
	notice      string
	noticeUntil time.Time
}

func NewController(userID string, content ContentSource, votes VotesStore, markers MarkerStore, opts Options) *Controller {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = DefaultNoticeTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		userID:  userID,
		content: content,
		votes:   votes,
		markers: markers,
		opts:    opts,
		clock:   clock,
		logger:  logger.With("user_id", userID),
		metrics: opts.Metrics,
		phase:   PhaseLoading,
		state:   map[string]VoteValue{},
	}
}

func (c *Controller) UserID() string {
	return c.userID
}

// Load fetches a fresh batch, the user's existing votes for it, and resumes
// from the last-seen marker.
func (c *Controller) Load(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return c.Snapshot(), ErrBusy
	}
	c.inFlight = true
	c.phase = PhaseLoading
	c.items = nil
	c.state = map[string]VoteValue{}
	c.cursor = 0
	c.undo = nil
	c.restored = false
	c.errMsg = ""
	c.loadFailed = false
	c.mu.Unlock()

	items, err := c.content.FetchItems(ctx, c.opts.BatchSize)
	if err != nil {
		c.logger.Error("Failed to load captions", "error", err)
		c.metrics.SessionLoaded("failed")

		c.mu.Lock()
		c.inFlight = false
		c.phase = PhaseComplete
		c.errMsg = err.Error()
		c.loadFailed = true
		c.mu.Unlock()
		return c.Snapshot(), fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	ids := make([]string, len(items))
	for k, it := range items {
		ids[k] = it.ID
	}
	existing := map[string]VoteValue{}
	if len(ids) > 0 {
		got, err := c.content.FetchExistingVotes(ctx, c.userID, ids)
		if err != nil {
			// Rating can continue; already-rated items will simply be shown again.
			c.logger.Warn("Failed to load existing votes", "error", err)
		} else {
			for id, v := range got {
				if v.Valid() {
					existing[id] = v
				}
			}
		}
	}

	c.mu.Lock()
	c.items = items
	c.state = existing
	c.phase = PhaseRestoring
	c.mu.Unlock()

	lastSeen := ""
	if c.markers != nil {
		id, ok, err := c.markers.Get(ctx, c.userID)
		if err != nil {
			c.logger.Warn("Failed to read last seen marker", "error", err)
		} else if ok {
			lastSeen = id
		}
	}

	c.mu.Lock()
	c.cursor = resumeCursor(c.items, c.state, lastSeen)
	c.restored = true
	c.updatePhase()
	c.inFlight = false
	marker := c.currentID()
	c.mu.Unlock()

	c.writeMarker(ctx, marker)
	c.metrics.SessionLoaded("ok")
	c.logger.Info("Rating session loaded", "items", len(items), "rated", len(existing))

	return c.Snapshot(), nil
}

// CastVote records value for the current item. The vote is applied
// optimistically and reverted if the store rejects it.
func (c *Controller) CastVote(ctx context.Context, itemID string, value VoteValue) error {
	c.mu.Lock()
	if c.phase != PhaseActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.inFlight {
		c.mu.Unlock()
		c.metrics.Vote("busy")
		return ErrBusy
	}
	if !value.Valid() {
		c.mu.Unlock()
		return ErrInvalidVote
	}
	if c.items[c.cursor].ID != itemID {
		c.mu.Unlock()
		return ErrNotCurrent
	}
	now := c.clock.Now()
	if c.opts.MinVoteGap > 0 && !c.lastVoteAt.IsZero() && now.Sub(c.lastVoteAt) < c.opts.MinVoteGap {
		c.notice = slowDownNotice
		c.noticeUntil = now.Add(c.opts.NoticeTTL)
		c.mu.Unlock()
		c.metrics.Vote("rate_limited")
		return ErrRateLimited
	}

	c.lastVoteAt = now
	c.inFlight = true
	c.errMsg = ""

	entry := UndoEntry{
		ItemID:       itemID,
		PreviousVote: c.state[itemID],
		CursorBefore: c.cursor,
	}
	c.undo = append(c.undo, entry)
	c.apply(entry, value)
	marker := c.currentID()
	c.mu.Unlock()

	c.writeMarker(ctx, marker)

	start := c.clock.Now()
	err := c.votes.UpsertVote(ctx, c.userID, itemID, value, now.UTC())
	c.metrics.Persist("upsert", c.clock.Since(start))

	c.mu.Lock()
	c.inFlight = false
	if err == nil {
		c.mu.Unlock()
		c.metrics.Vote("accepted")
		return nil
	}

	c.revert(entry)
	c.undo = c.undo[:len(c.undo)-1]
	c.errMsg = err.Error()
	marker = c.currentID()
	c.mu.Unlock()

	c.logger.Warn("Vote write failed, rolled back", "caption_id", itemID, "error", err)
	c.metrics.Vote("rolled_back")
	c.writeMarker(ctx, marker)

	return fmt.Errorf("%w: %v", ErrVoteWriteFailed, err)
}

// Undo reverses the most recent vote, including the one that completed the
// batch. The entry is consumed even when the store call fails.
func (c *Controller) Undo(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseActive && c.phase != PhaseComplete {
		c.mu.Unlock()
		return ErrNotActive
	}
	if c.inFlight {
		c.mu.Unlock()
		c.metrics.Undo("busy")
		return ErrBusy
	}
	if len(c.undo) == 0 {
		c.mu.Unlock()
		return ErrNothingToUndo
	}

	entry := c.undo[len(c.undo)-1]
	c.undo = c.undo[:len(c.undo)-1]
	c.inFlight = true
	c.errMsg = ""
	now := c.clock.Now()
	c.mu.Unlock()

	var err error
	start := c.clock.Now()
	if entry.PreviousVote == NoVote {
		err = c.votes.DeleteVote(ctx, c.userID, entry.ItemID)
		c.metrics.Persist("delete", c.clock.Since(start))
	} else {
		err = c.votes.UpsertVote(ctx, c.userID, entry.ItemID, entry.PreviousVote, now.UTC())
		c.metrics.Persist("upsert", c.clock.Since(start))
	}

	c.mu.Lock()
	c.inFlight = false
	if err != nil {
		c.errMsg = err.Error()
		c.mu.Unlock()

		c.logger.Warn("Undo failed", "caption_id", entry.ItemID, "error", err)
		c.metrics.Undo("failed")
		return fmt.Errorf("%w: %v", ErrVoteWriteFailed, err)
	}

	c.revert(entry)
	marker := c.currentID()
	c.mu.Unlock()

	c.metrics.Undo("ok")
	c.writeMarker(ctx, marker)
	return nil
}

// DismissError clears the surfaced vote error. A load failure is kept
// until the next Load.
func (c *Controller) DismissError() {
	c.mu.Lock()
	if !c.loadFailed {
		c.errMsg = ""
	}
	c.mu.Unlock()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	votes := make(map[string]VoteValue, len(c.state))
	for id, v := range c.state {
		votes[id] = v
	}

	s := Snapshot{
		Phase:       c.phase,
		Cursor:      c.cursor,
		Total:       len(c.items),
		Rated:       ratedCount(c.items, c.state),
		Position:    unratedPosition(c.items, c.state, c.cursor),
		UndoDepth:   len(c.undo),
		Saving:      c.inFlight,
		Votes:       votes,
		Error:       c.errMsg,
		Unavailable: c.loadFailed,
	}
	if c.cursor < len(c.items) {
		item := c.items[c.cursor]
		s.Current = &item
	}
	if c.notice != "" && c.clock.Now().Before(c.noticeUntil) {
		s.Notice = c.notice
	}
	return s
}

// apply is the forward transition for entry: record the vote and advance
// past every rated item.
func (c *Controller) apply(entry UndoEntry, value VoteValue) {
	c.state[entry.ItemID] = value
	c.cursor = nextUnrated(c.items, c.state, entry.CursorBefore+1)
	c.updatePhase()
}

// revert is the exact inverse of apply for the same entry.
func (c *Controller) revert(entry UndoEntry) {
	if entry.PreviousVote == NoVote {
		delete(c.state, entry.ItemID)
	} else {
		c.state[entry.ItemID] = entry.PreviousVote
	}
	c.cursor = nextUnrated(c.items, c.state, entry.CursorBefore)
	c.updatePhase()
}

func (c *Controller) updatePhase() {
	if c.cursor >= len(c.items) {
		c.phase = PhaseComplete
	} else {
		c.phase = PhaseActive
	}
}

// currentID returns the marker to persist, or "" when nothing should be
// written: before restore completes or past the end of the batch.
func (c *Controller) currentID() string {
	if !c.restored || c.cursor >= len(c.items) {
		return ""
	}
	return c.items[c.cursor].ID
}

func (c *Controller) writeMarker(ctx context.Context, itemID string) {
	if itemID == "" || c.markers == nil {
		return
	}
	if err := c.markers.Set(ctx, c.userID, itemID); err != nil {
		c.logger.Warn("Failed to write last seen marker", "caption_id", itemID, "error", err)
	}
}
