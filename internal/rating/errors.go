package rating

import "errors"

var (
	ErrContentUnavailable = errors.New("content unavailable")
	ErrVoteWriteFailed    = errors.New("vote write failed")
	ErrRateLimited        = errors.New("voting too fast")
	ErrBusy               = errors.New("another vote is in flight")
	ErrNotActive          = errors.New("session is not active")
	ErrNotCurrent         = errors.New("item is not the current item")
	ErrInvalidVote        = errors.New("vote value must be 1 or -1")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrNoSession          = errors.New("no rating session")
)
