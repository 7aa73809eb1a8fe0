package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageDecodeOptionalFields(t *testing.T) {
	var msgs []Message
	raw := `[{"id":"1","subject":"Hi","date":"2024-03-01T10:00:00Z"},{"to":"a@b.com","sent_at":"2024-03-02T08:30:00Z"}]`
	require.NoError(t, json.Unmarshal([]byte(raw), &msgs))
	require.Len(t, msgs, 2)

	assert.True(t, msgs[0].HasID())
	assert.False(t, msgs[1].HasID())
	assert.Equal(t, "2024-03-02T08:30:00Z", msgs[1].Timestamp())
}

func TestDisplaySubject(t *testing.T) {
	assert.Equal(t, NoSubject, Message{}.DisplaySubject())
	assert.Equal(t, "   ", Message{Subject: "   "}.DisplaySubject())
	assert.Equal(t, "Hi", Message{Subject: "Hi"}.DisplaySubject())
}

func TestParsedTime(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		ok   bool
	}{
		{"rfc3339", Message{Date: "2024-03-01T10:00:00Z"}, true},
		{"fractional", Message{Date: "2024-03-01T10:00:00.123Z"}, true},
		{"no zone", Message{Date: "2024-03-01T10:00:00"}, true},
		{"date only", Message{Date: "2024-03-01"}, true},
		{"sent_at fallback", Message{SentAt: "2024-03-01T10:00:00+02:00"}, true},
		{"absent", Message{}, false},
		{"garbage", Message{Date: "yesterday"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.msg.ParsedTime()
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.Equal(t, "", tt.msg.DisplayTime())
			} else {
				assert.NotEmpty(t, tt.msg.DisplayTime())
			}
		})
	}
}

func TestPlainBody(t *testing.T) {
	assert.Equal(t, NoBody, Message{}.PlainBody())
	assert.Equal(t, NoBody, Message{Body: " \n "}.PlainBody())
	assert.Equal(t, "line one\nline two", Message{Body: "line one\r\nline two"}.PlainBody())

	html := Message{Body: "<html><body><p>Hello <b>there</b></p></body></html>"}.PlainBody()
	assert.Contains(t, html, "Hello")
	assert.Contains(t, html, "there")
	assert.False(t, strings.Contains(html, "<p>"))

	doctype := Message{Body: "<!DOCTYPE html><html><body>Hi</body></html>"}.PlainBody()
	assert.Equal(t, "Hi", strings.TrimSpace(doctype))
}

func TestPlainBodyKeepsMarkupInPlainText(t *testing.T) {
	tests := []string{
		"a < b\nc </ d\ne",
		"Hi team,\nthe closing tag is </div>\nthanks",
		"Use <br to break\nsecond line",
		"<p>not a document</p>\nkept as typed",
	}
	for _, body := range tests {
		t.Run(body, func(t *testing.T) {
			assert.Equal(t, body, Message{Body: body}.PlainBody())
		})
	}
}

func TestEndpointPaths(t *testing.T) {
	assert.Equal(t, "/emails", EndpointUnread.Path())
	assert.Equal(t, "/emails/receive", EndpointReceived.Path())
	assert.Equal(t, "/emails/sent", EndpointSent.Path())
	assert.Equal(t, "/emails/refresh", EndpointRefresh.Path())
	assert.Equal(t, "", Endpoint("bogus").Path())
	assert.Equal(t, "Refreshed", EndpointRefresh.Title())
}
