// Package sync turns relay operations into Bubble Tea commands. State moves
// on the update loop when a command is built; the network call runs inside
// the command and its outcome comes back as a typed message.
package sync

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/mailstate"
	"github.com/nhle/relaymail/internal/model"
)

// DefaultTimeout bounds a single relay call when none is configured.
const DefaultTimeout = 30 * time.Second

// FetchResultMsg is sent when a collection fetch completes.
type FetchResultMsg struct {
	Endpoint model.Endpoint
	State    mailstate.FetchState
	// Applied is false when the fetcher was closed or restarted before the
	// response arrived; the view should ignore the message.
	Applied bool
}

// RefreshPollMsg is sent when a refresh poll completes.
type RefreshPollMsg struct {
	Messages []model.Message
	State    mailstate.FetchState
	Applied  bool
}

// SendResultMsg is sent when a compose submission completes.
type SendResultMsg struct {
	Status  mailstate.SubmitStatus
	Applied bool
}

// ImportResultMsg is sent when an import completes or is refused locally.
type ImportResultMsg struct {
	Status  mailstate.SubmitStatus
	Applied bool
}

// RefreshTriggeredMsg is sent after the global refresh trigger returns.
type RefreshTriggeredMsg struct {
	Err error
}

// RefreshTrigger asks the relay to refresh its mailbox.
type RefreshTrigger interface {
	TriggerRefresh(ctx context.Context) error
}

// Runner builds commands with a per-call timeout.
type Runner struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner creates a Runner. A non-positive timeout uses DefaultTimeout.
func NewRunner(timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{timeout: timeout, logger: logger.Named("sync")}
}

// Timeout returns the per-call timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Fetch moves f to Loading and returns the command that performs the fetch.
func (r *Runner) Fetch(f *mailstate.InboxFetcher) tea.Cmd {
	ticket := f.Start()
	ep := f.Endpoint()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		state, applied := f.Run(ctx, ticket)
		return FetchResultMsg{Endpoint: ep, State: state, Applied: applied}
	}
}

// Poll starts a refresh poll on feed.
func (r *Runner) Poll(feed *mailstate.RefreshFeed) tea.Cmd {
	ticket := feed.Start()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		applied := feed.Run(ctx, ticket)
		return RefreshPollMsg{
			Messages: feed.Messages(),
			State:    feed.State(),
			Applied:  applied,
		}
	}
}

// Send starts a submission on c. It returns nil when a submission is
// already in flight.
func (r *Runner) Send(c *mailstate.Composer) tea.Cmd {
	sub, ok := c.Begin()
	if !ok {
		r.logger.Debug("send ignored", zap.String("phase", c.Status().Phase.String()))
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		status, applied := c.Finish(sub, c.Deliver(ctx, sub))
		return SendResultMsg{Status: status, Applied: applied}
	}
}

// Import starts an import on im. Without a held file the importer fails
// locally and the command reports that status without touching the
// network. It returns nil when an import is already in flight.
func (r *Runner) Import(im *mailstate.Importer) tea.Cmd {
	job, ok := im.Begin()
	if !ok {
		status := im.Status()
		if status.Sending() {
			return nil
		}
		return func() tea.Msg {
			return ImportResultMsg{Status: status, Applied: true}
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		status, applied := im.Finish(job, im.Deliver(ctx, job))
		return ImportResultMsg{Status: status, Applied: applied}
	}
}

// TriggerRefresh asks the relay to refresh. The response body is ignored.
func (r *Runner) TriggerRefresh(t RefreshTrigger) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		err := t.TriggerRefresh(ctx)
		if err != nil {
			r.logger.Warn("refresh trigger failed", zap.Error(err))
		}
		return RefreshTriggeredMsg{Err: err}
	}
}
