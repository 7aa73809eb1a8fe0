package mailstate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/relay"
)

// User-facing compose status texts.
const (
	TextSent       = "Email sent successfully!"
	TextSendFailed = "Failed to send email."
	TextSendError  = "Error sending email."
)

// ErrSubmissionInFlight is returned when the draft is edited while a
// submission is sending.
var ErrSubmissionInFlight = errors.New("submission in flight")

// Sender delivers an outgoing message.
type Sender interface {
	SendEmail(ctx context.Context, req relay.SendRequest) error
}

// Field names one editable draft field.
type Field int

const (
	FieldTo Field = iota
	FieldSubject
	FieldText
)

func (f Field) String() string {
	switch f {
	case FieldTo:
		return "to"
	case FieldSubject:
		return "subject"
	case FieldText:
		return "text"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Draft holds the editable text fields of an outgoing message.
type Draft struct {
	To      string
	Subject string
	Text    string
}

// IsEmpty reports whether every field is blank.
func (d Draft) IsEmpty() bool {
	return d.To == "" && d.Subject == "" && d.Text == ""
}

// Submission is the snapshot taken when sending starts. It is what goes on
// the wire even if the caller keeps a reference to the Composer.
type Submission struct {
	Draft       Draft
	Attachments []model.File
	ticket      uint64
}

// Composer owns a draft and its attachments and submits them to the relay.
// At most one submission is in flight; the draft is read-only meanwhile.
type Composer struct {
	mu          sync.Mutex
	sender      Sender
	logger      *zap.Logger
	draft       Draft
	attachments AttachmentSet
	status      SubmitStatus
	seq         uint64
	cancel      context.CancelFunc
	closed      bool
	onCleared   func()
}

// NewComposer creates a Composer that sends through sender.
func NewComposer(sender Sender, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		sender: sender,
		logger: logger.Named("compose"),
	}
}

// OnCleared registers fn to run after a successful send has cleared the
// draft, so the front end can reset any file picker it owns.
func (c *Composer) OnCleared(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCleared = fn
}

// UpdateField sets one draft field. No validation happens here.
func (c *Composer) UpdateField(f Field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Sending() {
		return ErrSubmissionInFlight
	}

	switch f {
	case FieldTo:
		c.draft.To = value
	case FieldSubject:
		c.draft.Subject = value
	case FieldText:
		c.draft.Text = value
	default:
		return fmt.Errorf("unknown draft field %v", f)
	}
	return nil
}

// ReplaceAttachments swaps in a new attachment selection.
func (c *Composer) ReplaceAttachments(files []model.File) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Sending() {
		return ErrSubmissionInFlight
	}
	c.attachments.ReplaceAll(files)
	return nil
}

// ClearAttachments empties the attachment selection.
func (c *Composer) ClearAttachments() error {
	return c.ReplaceAttachments(nil)
}

// Draft returns the current draft fields.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Attachments returns the current attachment selection.
func (c *Composer) Attachments() []model.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachments.Files()
}

// Status returns the submission status.
func (c *Composer) Status() SubmitStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Begin snapshots the draft and moves to Sending. It returns false without
// side effects when a submission is already in flight or the Composer is
// closed.
func (c *Composer) Begin() (Submission, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Submission{}, false
	}
	next, ok := c.status.Begin()
	if !ok {
		c.logger.Debug("submit ignored while sending")
		return Submission{}, false
	}

	c.status = next
	c.seq++
	return Submission{
		Draft:       c.draft,
		Attachments: c.attachments.Files(),
		ticket:      c.seq,
	}, true
}

// Deliver performs the network call for sub. It does not touch the
// Composer's state; pass the result to Finish.
func (c *Composer) Deliver(ctx context.Context, sub Submission) SubmissionResult {
	c.mu.Lock()
	if c.closed || sub.ticket != c.seq {
		c.mu.Unlock()
		return Failure(TextSendError, &relay.TransportError{Op: "send email", Err: context.Canceled})
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	err := c.sender.SendEmail(ctx, relay.SendRequest{
		To:          sub.Draft.To,
		Subject:     sub.Draft.Subject,
		Text:        sub.Draft.Text,
		Attachments: sub.Attachments,
	})

	log := c.logger.With(
		zap.String("to", sub.Draft.To),
		zap.Int("attachments", len(sub.Attachments)),
	)
	switch {
	case err == nil:
		log.Info("email sent")
		return Success(TextSent)
	case relay.IsRejected(err):
		log.Warn("email rejected", zap.String("kind", string(relay.KindRejected)), zap.Error(err))
		return Failure(TextSendFailed, err)
	default:
		log.Error("email send failed", zap.String("kind", string(relay.Classify(err))), zap.Error(err))
		return Failure(TextSendError, err)
	}
}

// Finish applies the outcome of sub. A success clears the draft and the
// attachments; a failure keeps both for a retry. It returns false when the
// result was discarded because the Composer was closed meanwhile.
func (c *Composer) Finish(sub Submission, r SubmissionResult) (SubmitStatus, bool) {
	c.mu.Lock()
	if c.closed || sub.ticket != c.seq {
		status := c.status
		c.mu.Unlock()
		return status, false
	}

	c.cancel = nil
	c.status = c.status.Complete(r)
	var cleared func()
	if r.OK {
		c.draft = Draft{}
		c.attachments.Clear()
		cleared = c.onCleared
	}
	status := c.status
	c.mu.Unlock()

	if cleared != nil {
		cleared()
	}
	return status, true
}

// Submit sends the current draft and waits for the outcome. Calling it
// while a submission is in flight returns the current status and issues
// no request.
func (c *Composer) Submit(ctx context.Context) SubmitStatus {
	sub, ok := c.Begin()
	if !ok {
		return c.Status()
	}
	status, _ := c.Finish(sub, c.Deliver(ctx, sub))
	return status
}

// Reset clears the draft and status. It is refused while sending.
func (c *Composer) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Sending() {
		return ErrSubmissionInFlight
	}
	c.draft = Draft{}
	c.attachments.Clear()
	c.status = SubmitStatus{}
	return nil
}

// Close cancels any in-flight submission and discards its outcome.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
