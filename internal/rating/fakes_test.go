package rating

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errStoreDown = errors.New("store down")

type fakeContent struct {
	items    []Item
	votes    map[string]VoteValue
	fetchErr error
	votesErr error
}

func (f *fakeContent) FetchItems(ctx context.Context, limit int) ([]Item, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if limit < len(f.items) {
		return append([]Item(nil), f.items[:limit]...), nil
	}
	return append([]Item(nil), f.items...), nil
}

func (f *fakeContent) FetchExistingVotes(ctx context.Context, userID string, itemIDs []string) (map[string]VoteValue, error) {
	if f.votesErr != nil {
		return nil, f.votesErr
	}
	out := map[string]VoteValue{}
	for _, id := range itemIDs {
		if v, ok := f.votes[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

type voteCall struct {
	op     string
	itemID string
	value  VoteValue
}

type fakeVotes struct {
	mu    sync.Mutex
	rows  map[string]VoteValue
	calls []voteCall
	fail  bool

	// when set, store calls signal entered and wait on release
	entered chan struct{}
	release chan struct{}
}

func newFakeVotes() *fakeVotes {
	return &fakeVotes{rows: map[string]VoteValue{}}
}

func (f *fakeVotes) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeVotes) block() {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
}

func (f *fakeVotes) UpsertVote(ctx context.Context, userID, itemID string, value VoteValue, at time.Time) error {
	f.block()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, voteCall{op: "upsert", itemID: itemID, value: value})
	if f.fail {
		return errStoreDown
	}
	f.rows[itemID] = value
	return nil
}

func (f *fakeVotes) DeleteVote(ctx context.Context, userID, itemID string) error {
	f.block()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, voteCall{op: "delete", itemID: itemID})
	if f.fail {
		return errStoreDown
	}
	delete(f.rows, itemID)
	return nil
}

type fakeMarkers struct {
	mu   sync.Mutex
	ids  map[string]string
	sets []string
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{ids: map[string]string{}}
}

func (f *fakeMarkers) Get(ctx context.Context, userID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.ids[userID]
	return id, ok, nil
}

func (f *fakeMarkers) Set(ctx context.Context, userID, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[userID] = itemID
	f.sets = append(f.sets, itemID)
	return nil
}

func (f *fakeMarkers) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sets...)
}

func items(ids ...string) []Item {
	out := make([]Item, len(ids))
	for k, id := range ids {
		out[k] = Item{ID: id, Content: "caption " + id, ImageURL: "https://img.example/" + id + ".png"}
	}
	return out
}
