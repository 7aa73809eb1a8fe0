package export

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/relaymail/internal/model"
)

var sample = model.Message{
	ID:      "65f1c0",
	From:    "Alice <alice@example.com>",
	To:      "bob@example.com",
	Subject: "Quarterly report",
	Body:    "Numbers attached.\nSee you.",
	Date:    "2024-03-01T10:00:00Z",
}

func readBack(t *testing.T, raw []byte) (*mail.Reader, string) {
	t.Helper()

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	return mr, string(body)
}

func TestWriteEMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEML(&buf, sample))

	mr, body := readBack(t, buf.Bytes())

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "alice@example.com", from[0].Address)
	assert.Equal(t, "Alice", from[0].Name)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "bob@example.com", to[0].Address)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.Equal(t, "65f1c0@relaymail", id)

	assert.Equal(t, "Numbers attached.\r\nSee you.", normalize(body))
}

func normalize(s string) string {
	return string(bytes.ReplaceAll(bytes.ReplaceAll([]byte(s), []byte("\r\n"), []byte("\n")), []byte("\n"), []byte("\r\n")))
}

func TestWriteEMLSparseMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEML(&buf, model.Message{To: "not an address"}))

	mr, body := readBack(t, buf.Bytes())
	assert.Equal(t, "not an address", mr.Header.Get("To"))
	assert.Empty(t, mr.Header.Get("Date"))
	assert.Empty(t, body)
}

func TestWriteEMLKeepsBodyVerbatim(t *testing.T) {
	msg := sample
	msg.Body = "Hi team,\nthe closing tag is </div>\nthanks"

	var buf bytes.Buffer
	require.NoError(t, WriteEML(&buf, msg))

	_, body := readBack(t, buf.Bytes())
	assert.Equal(t, normalize(msg.Body), normalize(body))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "20240301-1000-quarterly-report.eml", FileName(sample))
	assert.Equal(t, "abc.eml", FileName(model.Message{ID: "abc"}))
	assert.Equal(t, "message.eml", FileName(model.Message{}))
	assert.Equal(t, "re-hello-world.eml", FileName(model.Message{Subject: "Re: Hello,  World!"}))
}

func TestExporterSaveNeverOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	e := NewExporter(fs, "/out/mail", zaptest.NewLogger(t))

	first, err := e.Save(sample)
	require.NoError(t, err)
	assert.Equal(t, "/out/mail/20240301-1000-quarterly-report.eml", first)

	second, err := e.Save(sample)
	require.NoError(t, err)
	assert.Equal(t, "/out/mail/20240301-1000-quarterly-report-1.eml", second)

	data, err := afero.ReadFile(fs, first)
	require.NoError(t, err)
	_, body := readBack(t, data)
	assert.Contains(t, body, "Numbers attached.")
}
