package model

import (
	"strings"
	"time"

	"github.com/k3a/html2text"
)

// NoSubject is shown in place of an empty subject line.
const NoSubject = "(No subject)"

// NoBody is shown in place of an empty message body.
const NoBody = "No message body"

// Message is a single email record as returned by the relay. Every field
// is optional on the wire; records are never constructed locally.
type Message struct {
	// ID is the opaque server-assigned identifier. Legacy and sent records
	// may omit it.
	ID string `json:"id,omitempty"`

	// From is the sender address.
	From string `json:"from,omitempty"`

	// To is the recipient address.
	To string `json:"to,omitempty"`

	// Subject may be empty.
	Subject string `json:"subject,omitempty"`

	// Body is plain text and may contain newlines.
	Body string `json:"body,omitempty"`

	// Date is the ISO-8601 timestamp of an inbound message.
	Date string `json:"date,omitempty"`

	// SentAt is the ISO-8601 timestamp carried by sent records.
	SentAt string `json:"sent_at,omitempty"`
}

// HasID reports whether the server assigned an identifier.
func (m Message) HasID() bool {
	return m.ID != ""
}

// DisplaySubject returns the subject, or NoSubject when it is empty.
func (m Message) DisplaySubject() string {
	if m.Subject == "" {
		return NoSubject
	}
	return m.Subject
}

// Timestamp returns the raw timestamp, preferring Date over SentAt.
func (m Message) Timestamp() string {
	if m.Date != "" {
		return m.Date
	}
	return m.SentAt
}

// ParsedTime parses the timestamp. The boolean is false when the time is
// unknown: absent or not ISO-8601.
func (m Message) ParsedTime() (time.Time, bool) {
	raw := m.Timestamp()
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DisplayTime formats the timestamp in local time, or returns "" when the
// time is unknown.
func (m Message) DisplayTime() string {
	t, ok := m.ParsedTime()
	if !ok {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

// PlainBody returns the body ready for terminal display with line breaks
// preserved. Only bodies that are whole HTML documents are flattened to
// text; markup-like fragments inside plain text are shown verbatim.
func (m Message) PlainBody() string {
	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	if isHTMLDocument(body) {
		body = html2text.HTML2Text(body)
	}
	if strings.TrimSpace(body) == "" {
		return NoBody
	}
	return body
}

func isHTMLDocument(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html")
}
