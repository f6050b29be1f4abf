package rating

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

type harness struct {
	ctrl    *Controller
	content *fakeContent
	votes   *fakeVotes
	markers *fakeMarkers
	clock   *clockwork.FakeClock
}

func newHarness(t *testing.T, content *fakeContent, gap time.Duration) *harness {
	t.Helper()
	h := &harness{
		content: content,
		votes:   newFakeVotes(),
		markers: newFakeMarkers(),
		clock:   clockwork.NewFakeClock(),
	}
	h.ctrl = NewController(testUser, h.content, h.votes, h.markers, Options{
		BatchSize:  DefaultBatchSize,
		MinVoteGap: gap,
		NoticeTTL:  DefaultNoticeTTL,
		Clock:      h.clock,
	})
	return h
}

func loaded(t *testing.T, content *fakeContent, gap time.Duration) *harness {
	t.Helper()
	h := newHarness(t, content, gap)
	_, err := h.ctrl.Load(context.Background())
	require.NoError(t, err)
	return h
}

func currentID(t *testing.T, s Snapshot) string {
	t.Helper()
	require.NotNil(t, s.Current)
	return s.Current.ID
}

func TestVoteVoteUndoScenario(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B", "C")}, 0)
	assert.Equal(t, "A", currentID(t, h.ctrl.Snapshot()))

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Up))
	s := h.ctrl.Snapshot()
	assert.Equal(t, "B", currentID(t, s))
	assert.Equal(t, map[string]VoteValue{"A": Up}, s.Votes)

	require.NoError(t, h.ctrl.CastVote(ctx, "B", Down))
	s = h.ctrl.Snapshot()
	assert.Equal(t, "C", currentID(t, s))
	assert.Equal(t, map[string]VoteValue{"A": Up, "B": Down}, s.Votes)

	require.NoError(t, h.ctrl.Undo(ctx))
	s = h.ctrl.Snapshot()
	assert.Equal(t, "B", currentID(t, s))
	assert.Equal(t, map[string]VoteValue{"A": Up}, s.Votes)
	assert.Equal(t, 1, s.UndoDepth)

	assert.Equal(t, map[string]VoteValue{"A": Up}, h.votes.rows)
	assert.Equal(t, voteCall{op: "delete", itemID: "B"}, h.votes.calls[len(h.votes.calls)-1])
}

func TestResumeSkipsRatedMarkerItem(t *testing.T) {
	content := &fakeContent{
		items: items("A", "B", "C", "D"),
		votes: map[string]VoteValue{"A": Up, "B": Down},
	}
	h := newHarness(t, content, 0)
	h.markers.ids[testUser] = "B"

	s, err := h.ctrl.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseActive, s.Phase)
	assert.Equal(t, 2, s.Cursor)
	assert.Equal(t, "C", currentID(t, s))
	assert.Equal(t, []string{"C"}, h.markers.history())
}

func TestResumeCursor(t *testing.T) {
	seq := items("A", "B", "C", "D", "E")
	tests := []struct {
		name     string
		votes    map[string]VoteValue
		lastSeen string
		want     int
	}{
		{"no marker all unrated", nil, "", 0},
		{"no marker skips rated prefix", map[string]VoteValue{"A": Up, "B": Up}, "", 2},
		{"unrated marker resumes on itself", nil, "C", 2},
		{"rated marker resumes after itself", map[string]VoteValue{"C": Down}, "C", 3},
		{"rated marker skips following rated", map[string]VoteValue{"C": Up, "D": Up}, "C", 4},
		{"unknown marker starts from top", map[string]VoteValue{"A": Up}, "Z", 1},
		{"everything rated", map[string]VoteValue{"A": Up, "B": Up, "C": Up, "D": Up, "E": Up}, "B", 5},
		{"rated marker does not rewind to earlier unrated items", map[string]VoteValue{"D": Up}, "D", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			votes := tt.votes
			if votes == nil {
				votes = map[string]VoteValue{}
			}
			first := resumeCursor(seq, votes, tt.lastSeen)
			second := resumeCursor(seq, votes, tt.lastSeen)
			assert.Equal(t, tt.want, first)
			assert.Equal(t, first, second)
		})
	}
}

func TestResumeIsIdempotentAcrossLoads(t *testing.T) {
	content := &fakeContent{
		items: items("A", "B", "C", "D"),
		votes: map[string]VoteValue{"A": Up},
	}
	h := newHarness(t, content, 0)
	h.markers.ids[testUser] = "C"

	first, err := h.ctrl.Load(context.Background())
	require.NoError(t, err)
	second, err := h.ctrl.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Cursor, second.Cursor)
	assert.Equal(t, "C", currentID(t, second))
}

func TestFailedVoteRestoresPreCallState(t *testing.T) {
	ctx := context.Background()
	content := &fakeContent{
		items: items("A", "B", "C", "D"),
		votes: map[string]VoteValue{"A": Up, "B": Down},
	}
	h := loaded(t, content, 0)
	before := h.ctrl.Snapshot()
	require.Equal(t, "C", currentID(t, before))

	h.votes.setFail(true)
	err := h.ctrl.CastVote(ctx, "C", Up)
	require.ErrorIs(t, err, ErrVoteWriteFailed)

	after := h.ctrl.Snapshot()
	assert.Equal(t, before.Votes, after.Votes)
	assert.Equal(t, before.Cursor, after.Cursor)
	assert.Equal(t, before.UndoDepth, after.UndoDepth)
	assert.Equal(t, PhaseActive, after.Phase)
	assert.False(t, after.Saving)
	assert.Equal(t, errStoreDown.Error(), after.Error)

	// marker moved to D optimistically, then back to C
	assert.Equal(t, []string{"C", "D", "C"}, h.markers.history())
}

func TestFailedVoteKeepsEarlierUndoEntries(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B", "C")}, 0)

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Down))
	h.votes.setFail(true)
	require.ErrorIs(t, h.ctrl.CastVote(ctx, "B", Up), ErrVoteWriteFailed)

	s := h.ctrl.Snapshot()
	assert.Equal(t, 1, s.UndoDepth)
	assert.Equal(t, "B", currentID(t, s))
	assert.Equal(t, map[string]VoteValue{"A": Down}, s.Votes)
}

func TestFailedLastVoteLeavesCompleteState(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A")}, 0)

	h.votes.setFail(true)
	require.ErrorIs(t, h.ctrl.CastVote(ctx, "A", Up), ErrVoteWriteFailed)

	s := h.ctrl.Snapshot()
	assert.Equal(t, PhaseActive, s.Phase)
	assert.Equal(t, "A", currentID(t, s))
	assert.Empty(t, s.Votes)
}

func TestUndoRestoresPreVoteState(t *testing.T) {
	ctx := context.Background()
	content := &fakeContent{
		items: items("A", "B", "C", "D"),
		votes: map[string]VoteValue{"B": Up},
	}
	h := loaded(t, content, 0)
	before := h.ctrl.Snapshot()
	require.Equal(t, "A", currentID(t, before))

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Down))
	assert.Equal(t, "C", currentID(t, h.ctrl.Snapshot()))

	require.NoError(t, h.ctrl.Undo(ctx))
	after := h.ctrl.Snapshot()
	assert.Equal(t, before.Votes, after.Votes)
	assert.Equal(t, before.Cursor, after.Cursor)
	assert.Equal(t, 0, after.UndoDepth)
	assert.Equal(t, "A", h.markers.ids[testUser])
}

func TestUndoFailureConsumesEntry(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B")}, 0)

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Up))
	h.votes.setFail(true)

	err := h.ctrl.Undo(ctx)
	require.ErrorIs(t, err, ErrVoteWriteFailed)

	s := h.ctrl.Snapshot()
	assert.Equal(t, 0, s.UndoDepth)
	assert.Equal(t, "B", currentID(t, s))
	assert.Equal(t, map[string]VoteValue{"A": Up}, s.Votes)
	assert.NotEmpty(t, s.Error)

	assert.ErrorIs(t, h.ctrl.Undo(ctx), ErrNothingToUndo)

	h.ctrl.DismissError()
	assert.Empty(t, h.ctrl.Snapshot().Error)
}

func TestUndoWithEmptyStack(t *testing.T) {
	h := loaded(t, &fakeContent{items: items("A")}, 0)
	assert.ErrorIs(t, h.ctrl.Undo(context.Background()), ErrNothingToUndo)
	assert.Empty(t, h.votes.calls)
}

func TestDebounceAcceptsOneOfTwoFastVotes(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B", "C")}, DefaultMinVoteGap)

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Up))
	h.clock.Advance(100 * time.Millisecond)
	err := h.ctrl.CastVote(ctx, "B", Up)
	require.ErrorIs(t, err, ErrRateLimited)

	s := h.ctrl.Snapshot()
	assert.Equal(t, map[string]VoteValue{"A": Up}, s.Votes)
	assert.Equal(t, "B", currentID(t, s))
	assert.Equal(t, 1, s.UndoDepth)
	assert.Equal(t, slowDownNotice, s.Notice)
	assert.Len(t, h.votes.calls, 1)

	h.clock.Advance(DefaultNoticeTTL)
	assert.Empty(t, h.ctrl.Snapshot().Notice)

	require.NoError(t, h.ctrl.CastVote(ctx, "B", Up))
	assert.Len(t, h.votes.calls, 2)
}

func TestRejectedVoteDoesNotResetDebounceWindow(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B", "C")}, DefaultMinVoteGap)

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Up))
	h.clock.Advance(300 * time.Millisecond)
	require.ErrorIs(t, h.ctrl.CastVote(ctx, "B", Up), ErrRateLimited)
	h.clock.Advance(60 * time.Millisecond)
	assert.NoError(t, h.ctrl.CastVote(ctx, "B", Up))
}

func TestSingleFlight(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B", "C")}, 0)
	h.votes.entered = make(chan struct{})
	h.votes.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- h.ctrl.CastVote(ctx, "A", Up)
	}()
	<-h.votes.entered

	s := h.ctrl.Snapshot()
	assert.True(t, s.Saving)
	assert.Equal(t, "B", currentID(t, s))

	assert.ErrorIs(t, h.ctrl.CastVote(ctx, "B", Down), ErrBusy)
	assert.ErrorIs(t, h.ctrl.Undo(ctx), ErrBusy)

	close(h.votes.release)
	require.NoError(t, <-done)

	s = h.ctrl.Snapshot()
	assert.False(t, s.Saving)
	assert.Equal(t, map[string]VoteValue{"A": Up}, s.Votes)
	assert.Len(t, h.votes.calls, 1)
}

func TestCastVoteValidation(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B")}, 0)

	assert.ErrorIs(t, h.ctrl.CastVote(ctx, "B", Up), ErrNotCurrent)
	assert.ErrorIs(t, h.ctrl.CastVote(ctx, "A", NoVote), ErrInvalidVote)
	assert.ErrorIs(t, h.ctrl.CastVote(ctx, "A", VoteValue(2)), ErrInvalidVote)
	assert.Empty(t, h.votes.calls)
	assert.Equal(t, 0, h.ctrl.Snapshot().UndoDepth)
}

func TestSessionCompletes(t *testing.T) {
	ctx := context.Background()
	content := &fakeContent{
		items: items("A", "B", "C"),
		votes: map[string]VoteValue{"B": Up},
	}
	h := loaded(t, content, 0)

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Up))
	require.NoError(t, h.ctrl.CastVote(ctx, "C", Down))

	s := h.ctrl.Snapshot()
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.Nil(t, s.Current)
	assert.Equal(t, 3, s.Cursor)
	assert.Equal(t, 3, s.Rated)
	assert.Equal(t, 0, s.Position)

	assert.ErrorIs(t, h.ctrl.CastVote(ctx, "C", Up), ErrNotActive)

	// marker never points past the end
	assert.Equal(t, []string{"A", "C"}, h.markers.history())

	// the vote that completed the batch can still be undone
	require.NoError(t, h.ctrl.Undo(ctx))
	s = h.ctrl.Snapshot()
	assert.Equal(t, PhaseActive, s.Phase)
	assert.Equal(t, "C", currentID(t, s))
	assert.Equal(t, map[string]VoteValue{"A": Up, "B": Up}, s.Votes)
	assert.Equal(t, voteCall{op: "delete", itemID: "C"}, h.votes.calls[len(h.votes.calls)-1])
	assert.Equal(t, []string{"A", "C", "C"}, h.markers.history())
}

func TestUndoLastItemOfSingleItemBatch(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A")}, 0)
	before := h.ctrl.Snapshot()

	require.NoError(t, h.ctrl.CastVote(ctx, "A", Up))
	assert.Equal(t, PhaseComplete, h.ctrl.Snapshot().Phase)

	require.NoError(t, h.ctrl.Undo(ctx))
	after := h.ctrl.Snapshot()
	assert.Equal(t, PhaseActive, after.Phase)
	assert.Equal(t, before.Cursor, after.Cursor)
	assert.Equal(t, "A", currentID(t, after))
	assert.Empty(t, after.Votes)
	assert.Empty(t, h.votes.rows)

	assert.ErrorIs(t, h.ctrl.Undo(ctx), ErrNothingToUndo)
}

func TestLoadContentUnavailable(t *testing.T) {
	h := newHarness(t, &fakeContent{fetchErr: errStoreDown}, 0)

	s, err := h.ctrl.Load(context.Background())
	require.ErrorIs(t, err, ErrContentUnavailable)
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.Equal(t, 0, s.Total)
	assert.Nil(t, s.Current)
	assert.NotEmpty(t, s.Error)
	assert.True(t, s.Unavailable)
	assert.Empty(t, h.markers.history())

	// a load failure is not dismissable, so it never looks like a finished batch
	h.ctrl.DismissError()
	s = h.ctrl.Snapshot()
	assert.NotEmpty(t, s.Error)
	assert.True(t, s.Unavailable)
	assert.ErrorIs(t, h.ctrl.Undo(context.Background()), ErrNothingToUndo)

	h.content.fetchErr = nil
	h.content.items = items("A")
	s, err = h.ctrl.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Unavailable)
	assert.Empty(t, s.Error)
	assert.Equal(t, "A", currentID(t, s))
}

func TestDismissErrorClearsVoteError(t *testing.T) {
	ctx := context.Background()
	h := loaded(t, &fakeContent{items: items("A", "B")}, 0)
	h.votes.setFail(true)

	require.ErrorIs(t, h.ctrl.CastVote(ctx, "A", Up), ErrVoteWriteFailed)
	require.NotEmpty(t, h.ctrl.Snapshot().Error)
	assert.False(t, h.ctrl.Snapshot().Unavailable)

	h.ctrl.DismissError()
	assert.Empty(t, h.ctrl.Snapshot().Error)
}

func TestLoadToleratesVoteFetchFailure(t *testing.T) {
	h := newHarness(t, &fakeContent{items: items("A", "B"), votesErr: errStoreDown}, 0)

	s, err := h.ctrl.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A", currentID(t, s))
	assert.Empty(t, s.Votes)
}

func TestLoadRespectsBatchSize(t *testing.T) {
	h := newHarness(t, &fakeContent{items: items("A", "B", "C")}, 0)
	h.ctrl.opts.BatchSize = 2

	s, err := h.ctrl.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.Total)
}

func TestEmptyBatchIsComplete(t *testing.T) {
	h := loaded(t, &fakeContent{}, 0)
	s := h.ctrl.Snapshot()
	assert.Equal(t, PhaseComplete, s.Phase)
	assert.Empty(t, s.Error)
}

func TestPositionCountsUnratedItems(t *testing.T) {
	content := &fakeContent{
		items: items("A", "B", "C", "D"),
		votes: map[string]VoteValue{"A": Up, "C": Up},
	}
	h := loaded(t, content, 0)
	s := h.ctrl.Snapshot()
	assert.Equal(t, "B", currentID(t, s))
	assert.Equal(t, 1, s.Position)
	assert.Equal(t, 2, s.Rated)

	require.NoError(t, h.ctrl.CastVote(context.Background(), "B", Up))
	s = h.ctrl.Snapshot()
	assert.Equal(t, "D", currentID(t, s))
	assert.Equal(t, 1, s.Position)
}

func TestCursorNeverRestsOnRatedItem(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		votes := map[string]VoteValue{}
		seq := items("A", "B", "C", "D", "E", "F", "G", "H")
		for _, it := range seq {
			if rng.Intn(3) == 0 {
				votes[it.ID] = Up
			}
		}
		h := newHarness(t, &fakeContent{items: seq, votes: votes}, 0)
		h.markers.ids[testUser] = seq[rng.Intn(len(seq))].ID
		_, err := h.ctrl.Load(ctx)
		require.NoError(t, err)

		for step := 0; step < 30; step++ {
			h.votes.setFail(rng.Intn(4) == 0)
			s := h.ctrl.Snapshot()
			if rng.Intn(3) == 0 {
				_ = h.ctrl.Undo(ctx)
			} else if s.Current != nil {
				v := Up
				if rng.Intn(2) == 0 {
					v = Down
				}
				_ = h.ctrl.CastVote(ctx, s.Current.ID, v)
			}

			s = h.ctrl.Snapshot()
			if s.Current != nil {
				assert.Equal(t, NoVote, s.Votes[s.Current.ID], "round %d step %d", round, step)
			} else {
				assert.Equal(t, len(seq), s.Cursor)
			}
		}
	}
}
