package mailstate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/model"
)

// RefreshFeed polls the refresh snapshot and keeps the deduplicated union
// of every successful poll. A failed poll empties the union.
type RefreshFeed struct {
	fetcher *InboxFetcher
	merger  Merger

	mu     sync.Mutex
	merged []model.Message
}

// NewRefreshFeed creates a feed reading the refresh endpoint from src.
func NewRefreshFeed(src MessageSource, merger Merger, logger *zap.Logger) *RefreshFeed {
	return &RefreshFeed{
		fetcher: NewInboxFetcher(src, model.EndpointRefresh, logger),
		merger:  merger,
	}
}

// Start begins a poll; see InboxFetcher.Start.
func (r *RefreshFeed) Start() FetchTicket {
	return r.fetcher.Start()
}

// Run completes the poll for ticket and folds it into the union.
func (r *RefreshFeed) Run(ctx context.Context, ticket FetchTicket) bool {
	state, applied := r.fetcher.Run(ctx, ticket)
	if !applied {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch state.Phase {
	case FetchReady:
		union := make([]model.Message, 0, len(r.merged)+len(state.Messages))
		union = append(union, r.merged...)
		union = append(union, state.Messages...)
		r.merged = r.merger.Merge(union)
	case FetchFailed:
		r.merged = nil
	}
	return true
}

// Poll starts a poll, waits for it, and returns the union.
func (r *RefreshFeed) Poll(ctx context.Context) []model.Message {
	r.Run(ctx, r.Start())
	return r.Messages()
}

// Messages returns the deduplicated union of successful polls.
func (r *RefreshFeed) Messages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Message, len(r.merged))
	copy(out, r.merged)
	return out
}

// State returns the state of the most recent poll.
func (r *RefreshFeed) State() FetchState {
	return r.fetcher.State()
}

// Close cancels any in-flight poll.
func (r *RefreshFeed) Close() {
	r.fetcher.Close()
}
