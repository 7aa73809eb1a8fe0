package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nhle/relaymail/internal/model"
)

// Upload is one file part received by the fake relay.
type Upload struct {
	Field string
	Name  string
	Data  []byte
}

// Request is a request recorded by the fake relay.
type Request struct {
	Method    string
	Path      string
	RequestID string
	Fields    map[string][]string
	Files     []Upload
}

// Response is a canned reply for one path.
type Response struct {
	Status int
	Header map[string]string
	Body   string
}

// FakeRelay is an httptest server standing in for the mail relay. Replies
// are queued per path; the last queued reply repeats once the queue drains.
type FakeRelay struct {
	Server *httptest.Server

	mu       sync.Mutex
	replies  map[string][]Response
	requests []Request
	hook     func(r *http.Request)
}

// NewFakeRelay starts a fake relay and closes it when the test completes.
func NewFakeRelay(t *testing.T) *FakeRelay {
	t.Helper()

	f := &FakeRelay{replies: make(map[string][]Response)}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the fake relay.
func (f *FakeRelay) URL() string {
	return f.Server.URL
}

// Reply queues a raw reply for path.
func (f *FakeRelay) Reply(path string, status int, body string) {
	f.ReplyWith(path, Response{Status: status, Body: body})
}

// ReplyWith queues a full reply for path.
func (f *FakeRelay) ReplyWith(path string, resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = append(f.replies[path], resp)
}

// ReplyMessages queues a 200 reply with messages encoded as JSON.
func (f *FakeRelay) ReplyMessages(t *testing.T, path string, messages []model.Message) {
	t.Helper()

	data, err := json.Marshal(messages)
	if err != nil {
		t.Fatalf("encoding messages: %v", err)
	}
	f.Reply(path, http.StatusOK, string(data))
}

// OnRequest installs a hook that runs before each reply is written. It can
// block to hold a request in flight.
func (f *FakeRelay) OnRequest(hook func(r *http.Request)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// Requests returns a copy of every recorded request.
func (f *FakeRelay) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// Count returns how many requests hit path.
func (f *FakeRelay) Count(path string) int {
	n := 0
	for _, r := range f.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

func (f *FakeRelay) serve(w http.ResponseWriter, r *http.Request) {
	rec := Request{
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: r.Header.Get("X-Request-ID"),
	}

	if r.Method == http.MethodPost {
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			rec.Fields = r.MultipartForm.Value
			for field, headers := range r.MultipartForm.File {
				for _, fh := range headers {
					file, err := fh.Open()
					if err != nil {
						continue
					}
					data, _ := io.ReadAll(file)
					file.Close()
					rec.Files = append(rec.Files, Upload{Field: field, Name: fh.Filename, Data: data})
				}
			}
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	hook := f.hook
	resp, ok := f.next(r.URL.Path)
	f.mu.Unlock()

	if hook != nil {
		hook(r)
	}

	if !ok {
		http.NotFound(w, r)
		return
	}
	for k, v := range resp.Header {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", "application/json")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp.Body)
}

// next pops the next reply for path. Callers hold f.mu.
func (f *FakeRelay) next(path string) (Response, bool) {
	queue := f.replies[path]
	if len(queue) == 0 {
		return Response{}, false
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.replies[path] = queue[1:]
	}
	return resp, true
}
