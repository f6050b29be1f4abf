package rating

import (
	"context"
	"time"
)

// VoteValue is a signed unit vote. The zero value means "not rated".
type VoteValue int

const (
	NoVote VoteValue = 0
	Up     VoteValue = 1
	Down   VoteValue = -1
)

func (v VoteValue) Valid() bool {
	return v == Up || v == Down
}

func (v VoteValue) String() string {
	switch v {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Item is one caption paired with its image.
type Item struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// UndoEntry holds everything needed to reverse one vote.
type UndoEntry struct {
	ItemID       string
	PreviousVote VoteValue
	CursorBefore int
}

type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseRestoring Phase = "restoring"
	PhaseActive    Phase = "active"
	PhaseComplete  Phase = "complete"
)

// Snapshot is a consistent view of a session taken under the controller lock.
// Unavailable marks a session whose batch could not be loaded; its Error
// stays set until the next Load.
type Snapshot struct {
	Phase       Phase                `json:"phase"`
	Current     *Item                `json:"current,omitempty"`
	Cursor      int                  `json:"cursor"`
	Total       int                  `json:"total"`
	Rated       int                  `json:"rated"`
	Position    int                  `json:"position"`
	UndoDepth   int                  `json:"undo_depth"`
	Saving      bool                 `json:"saving"`
	Votes       map[string]VoteValue `json:"votes"`
	Error       string               `json:"error,omitempty"`
	Notice      string               `json:"notice,omitempty"`
	Unavailable bool                 `json:"unavailable,omitempty"`
}

// ContentSource yields the ordered list of ratable items.
type ContentSource interface {
	FetchItems(ctx context.Context, limit int) ([]Item, error)
	FetchExistingVotes(ctx context.Context, userID string, itemIDs []string) (map[string]VoteValue, error)
}

// VotesStore persists votes keyed by (userID, itemID).
type VotesStore interface {
	UpsertVote(ctx context.Context, userID, itemID string, value VoteValue, at time.Time) error
	DeleteVote(ctx context.Context, userID, itemID string) error
}

// MarkerStore keeps the last item a user was shown.
type MarkerStore interface {
	Get(ctx context.Context, userID string) (string, bool, error)
	Set(ctx context.Context, userID, itemID string) error
}
