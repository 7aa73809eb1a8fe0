package mailstate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/relay"
)

// MessageSource reads one mail collection from the relay.
type MessageSource interface {
	FetchMessages(ctx context.Context, ep model.Endpoint) ([]model.Message, error)
}

// FetchTicket identifies one fetch started by InboxFetcher.Start.
type FetchTicket uint64

// InboxFetcher performs one-shot retrievals of a single collection. Each
// fetch replaces the previous result; there is no caching.
type InboxFetcher struct {
	mu       sync.Mutex
	source   MessageSource
	endpoint model.Endpoint
	logger   *zap.Logger
	state    FetchState
	seq      FetchTicket
	cancel   context.CancelFunc
	closed   bool
}

// NewInboxFetcher creates a fetcher for ep.
func NewInboxFetcher(src MessageSource, ep model.Endpoint, logger *zap.Logger) *InboxFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InboxFetcher{
		source:   src,
		endpoint: ep,
		logger:   logger.Named("inbox").With(zap.String("endpoint", string(ep))),
	}
}

// Endpoint returns the collection this fetcher reads.
func (f *InboxFetcher) Endpoint() model.Endpoint {
	return f.endpoint
}

// State returns the current fetch state.
func (f *InboxFetcher) State() FetchState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Start moves to Loading, dropping the previous result, and returns the
// ticket to pass to Run. Any older fetch still running is canceled and its
// completion will be ignored.
func (f *InboxFetcher) Start() FetchTicket {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.seq++
	if !f.closed {
		f.state = f.state.Start()
	}
	return f.seq
}

// Run performs the request for ticket and applies the outcome. It returns
// the resulting state and whether it was applied; a result is dropped when
// the ticket is stale or the fetcher was closed before it arrived.
func (f *InboxFetcher) Run(ctx context.Context, ticket FetchTicket) (FetchState, bool) {
	f.mu.Lock()
	if f.closed || ticket != f.seq {
		state := f.state
		f.mu.Unlock()
		return state, false
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	messages, err := f.source.FetchMessages(ctx, f.endpoint)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || ticket != f.seq {
		f.logger.Debug("discarding stale fetch result")
		return f.state, false
	}
	f.cancel = nil

	if err != nil {
		f.logger.Warn("fetch failed",
			zap.String("kind", string(relay.Classify(err))),
			zap.Error(err),
		)
		f.state = f.state.Fail(err)
		return f.state, true
	}

	f.logger.Debug("fetch completed", zap.Int("messages", len(messages)))
	f.state = f.state.Succeed(messages)
	return f.state, true
}

// Fetch starts a fetch and waits for it.
func (f *InboxFetcher) Fetch(ctx context.Context) FetchState {
	state, _ := f.Run(ctx, f.Start())
	return state
}

// Close cancels any in-flight request. Later completions are discarded.
func (f *InboxFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
