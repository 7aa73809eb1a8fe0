package mailstate

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/model"
	"github.com/nhle/relaymail/internal/relay"
)

// User-facing import status texts.
const (
	TextNoFile         = "Please upload a file first."
	TextImported       = "Emails sent successfully!"
	TextImportFailed   = "Failed: "
	TextImportRejected = "Failed to import recipients."
	TextImportError    = "Error sending emails."
)

// ErrNoFile is the local precondition failure for an import without a file.
var ErrNoFile = &relay.PreconditionError{Reason: TextNoFile}

// RecipientImporter uploads a bulk recipient spreadsheet.
type RecipientImporter interface {
	ImportRecipients(ctx context.Context, file model.File) (string, error)
}

// ImportJob is the snapshot taken when an import starts.
type ImportJob struct {
	File   model.File
	ticket uint64
}

// Importer holds one selected spreadsheet and submits it for bulk import.
type Importer struct {
	mu        sync.Mutex
	client    RecipientImporter
	logger    *zap.Logger
	file      *model.File
	status    SubmitStatus
	seq       uint64
	cancel    context.CancelFunc
	closed    bool
	onCleared func()
}

// NewImporter creates an Importer that uploads through client.
func NewImporter(client RecipientImporter, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		client: client,
		logger: logger.Named("import"),
	}
}

// OnCleared registers fn to run after a successful import or a cancel has
// dropped the held file.
func (im *Importer) OnCleared(fn func()) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.onCleared = fn
}

// SetFile selects the file to import and clears any previous status text.
func (im *Importer) SetFile(f model.File) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.status.Sending() {
		return ErrSubmissionInFlight
	}
	im.file = &f
	im.status = SubmitStatus{}
	return nil
}

// File returns the held file, if any.
func (im *Importer) File() (model.File, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.file == nil {
		return model.File{}, false
	}
	return *im.file, true
}

// Status returns the import status.
func (im *Importer) Status() SubmitStatus {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.status
}

// Cancel drops the held file and resets the status.
func (im *Importer) Cancel() error {
	im.mu.Lock()
	if im.status.Sending() {
		im.mu.Unlock()
		return ErrSubmissionInFlight
	}
	im.file = nil
	im.status = SubmitStatus{}
	cleared := im.onCleared
	im.mu.Unlock()

	if cleared != nil {
		cleared()
	}
	return nil
}

// Begin snapshots the held file and moves to Sending. Without a file it
// completes immediately with a local failure and returns false; it also
// returns false when an import is already in flight.
func (im *Importer) Begin() (ImportJob, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if im.closed || im.status.Sending() {
		return ImportJob{}, false
	}
	if im.file == nil {
		im.logger.Info("import without file",
			zap.String("kind", string(relay.KindPrecondition)),
		)
		im.status = im.status.Complete(Failure(TextNoFile, ErrNoFile))
		return ImportJob{}, false
	}

	im.status, _ = im.status.Begin()
	im.seq++
	return ImportJob{File: *im.file, ticket: im.seq}, true
}

// Deliver uploads job.File. It does not touch the Importer's state; pass
// the result to Finish.
func (im *Importer) Deliver(ctx context.Context, job ImportJob) SubmissionResult {
	im.mu.Lock()
	if im.closed || job.ticket != im.seq {
		im.mu.Unlock()
		return Failure(TextImportError, &relay.TransportError{Op: "import recipients", Err: context.Canceled})
	}
	ctx, cancel := context.WithCancel(ctx)
	im.cancel = cancel
	im.mu.Unlock()
	defer cancel()

	msg, err := im.client.ImportRecipients(ctx, job.File)

	log := im.logger.With(
		zap.String("file", job.File.Name),
		zap.Int("bytes", job.File.Size()),
	)
	switch {
	case err == nil:
		log.Info("recipients imported", zap.String("server_message", msg))
		return Success(TextImported)
	case relay.IsRejected(err):
		log.Warn("import rejected", zap.String("kind", string(relay.KindRejected)), zap.Error(err))
		return Failure(rejectionText(err), err)
	default:
		log.Error("import failed", zap.String("kind", string(relay.Classify(err))), zap.Error(err))
		return Failure(TextImportError, err)
	}
}

// Finish applies the outcome of job. Success drops the held file; failure
// keeps it so the user can retry or cancel.
func (im *Importer) Finish(job ImportJob, r SubmissionResult) (SubmitStatus, bool) {
	im.mu.Lock()
	if im.closed || job.ticket != im.seq {
		status := im.status
		im.mu.Unlock()
		return status, false
	}

	im.cancel = nil
	im.status = im.status.Complete(r)
	var cleared func()
	if r.OK {
		im.file = nil
		cleared = im.onCleared
	}
	status := im.status
	im.mu.Unlock()

	if cleared != nil {
		cleared()
	}
	return status, true
}

// Submit imports the held file and waits for the outcome.
func (im *Importer) Submit(ctx context.Context) SubmitStatus {
	job, ok := im.Begin()
	if !ok {
		return im.Status()
	}
	status, _ := im.Finish(job, im.Deliver(ctx, job))
	return status
}

// Close cancels any in-flight upload and discards its outcome.
func (im *Importer) Close() {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.closed = true
	if im.cancel != nil {
		im.cancel()
		im.cancel = nil
	}
}

func rejectionText(err error) string {
	var re *relay.RejectedError
	if errors.As(err, &re) && re.Message != "" {
		return TextImportFailed + re.Message
	}
	return TextImportRejected
}
