package rating

import (
	"context"
	"sync"
)

// Registry holds one rating session per signed-in user.
type Registry struct {
	content ContentSource
	votes   VotesStore
	markers MarkerStore
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Controller
}

func NewRegistry(content ContentSource, votes VotesStore, markers MarkerStore, opts Options) *Registry {
	return &Registry{
		content:  content,
		votes:    votes,
		markers:  markers,
		opts:     opts,
		sessions: map[string]*Controller{},
	}
}

// Start loads a fresh batch for userID. An existing session is reloaded in
// place, so a start while its store call is outstanding fails with ErrBusy.
func (r *Registry) Start(ctx context.Context, userID string) (*Controller, Snapshot, error) {
	r.mu.Lock()
	ctrl, ok := r.sessions[userID]
	if !ok {
		ctrl = NewController(userID, r.content, r.votes, r.markers, r.opts)
		r.sessions[userID] = ctrl
		r.setGauge()
	}
	r.mu.Unlock()

	snap, err := ctrl.Load(ctx)
	return ctrl, snap, err
}

func (r *Registry) Get(userID string) (*Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.sessions[userID]
	return ctrl, ok
}

// End discards the in-memory session. Persisted votes are untouched.
func (r *Registry) End(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	r.setGauge()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) setGauge() {
	r.opts.Metrics.SetActiveSessions(len(r.sessions))
}
