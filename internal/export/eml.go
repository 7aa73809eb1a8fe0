// Package export saves messages as RFC 5322 .eml files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/emersion/go-message/mail"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/model"
)

// WriteEML encodes msg as a single-part text/plain message. Addresses that
// do not parse are written verbatim.
func WriteEML(w io.Writer, msg model.Message) error {
	var h mail.Header
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	setAddresses(&h, "From", msg.From)
	setAddresses(&h, "To", msg.To)
	h.SetSubject(msg.Subject)
	if t, ok := msg.ParsedTime(); ok {
		h.SetDate(t)
	}
	if msg.HasID() {
		h.SetMessageID(msg.ID + "@relaymail")
	}

	body, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}
	if strings.TrimSpace(msg.Body) != "" {
		if _, err := io.WriteString(body, msg.Body); err != nil {
			body.Close()
			return fmt.Errorf("writing body: %w", err)
		}
	}
	if err := body.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}
	return nil
}

func setAddresses(h *mail.Header, key, value string) {
	if value == "" {
		return
	}
	addrs, err := mail.ParseAddressList(value)
	if err != nil || len(addrs) == 0 {
		h.Set(key, value)
		return
	}
	h.SetAddressList(key, addrs)
}

// Exporter writes messages into a directory.
type Exporter struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
}

// NewExporter returns an Exporter that writes into dir on fs.
func NewExporter(fs afero.Fs, dir string, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{fs: fs, dir: dir, logger: logger.Named("export")}
}

// Dir returns the target directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Save writes msg to a new file in the export directory and returns its
// path. Existing files are never overwritten.
func (e *Exporter) Save(msg model.Message) (string, error) {
	if err := e.fs.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", e.dir, err)
	}

	path, err := e.freePath(FileName(msg))
	if err != nil {
		return "", err
	}

	f, err := e.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteEML(f, msg); err != nil {
		f.Close()
		_ = e.fs.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	e.logger.Info("message exported", zap.String("path", path), zap.String("id", msg.ID))
	return path, nil
}

func (e *Exporter) freePath(name string) (string, error) {
	base := strings.TrimSuffix(name, ".eml")
	for i := 0; i < 1000; i++ {
		candidate := base + ".eml"
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d.eml", base, i)
		}
		path := filepath.Join(e.dir, candidate)
		exists, err := afero.Exists(e.fs, path)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
		if !exists {
			return path, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, e.dir)
}

// FileName builds a file name from the message time and subject, such as
// "20240301-1000-quarterly-report.eml".
func FileName(msg model.Message) string {
	var parts []string
	if t, ok := msg.ParsedTime(); ok {
		parts = append(parts, t.UTC().Format("20060102-1504"))
	}
	if s := slug(msg.Subject); s != "" {
		parts = append(parts, s)
	} else if msg.HasID() {
		parts = append(parts, slug(msg.ID))
	}
	if len(parts) == 0 {
		parts = append(parts, "message")
	}
	return strings.Join(parts, "-") + ".eml"
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
		if b.Len() >= 48 {
			break
		}
	}
	return strings.TrimRight(b.String(), "-")
}
