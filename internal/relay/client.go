package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/relaymail/internal/model"
)

const (
	pathSendEmail   = "/send-email"
	pathImportExcel = "/import-excel"

	// RequestIDHeader carries a per-request UUID that also appears in logs.
	RequestIDHeader = "X-Request-ID"
)

// Client is a thin HTTP client for the mail relay. It speaks JSON for
// reads, multipart/form-data for submissions, and retries idempotent GETs
// with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the http.Client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries sets how many times a GET is retried on HTTP 429.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger attaches a logger. A nil logger is ignored.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a relay client rooted at baseURL
// (e.g., https://emai-node.onrender.com).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the relay root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SendRequest is the outgoing message as encoded on the wire.
type SendRequest struct {
	To          string
	Subject     string
	Text        string
	Attachments []model.File
}

// statusResponse is the JSON body returned by submission endpoints.
type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// FetchMessages retrieves one mail collection in server order.
func (c *Client) FetchMessages(
	ctx context.Context,
	ep model.Endpoint,
) ([]model.Message, error) {
	path := ep.Path()
	if path == "" {
		return nil, fmt.Errorf("unknown endpoint %q", ep)
	}

	op := "fetch " + string(ep)
	status, body, err := c.get(ctx, op, path)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &TransportError{
			Op:     op,
			Status: status,
			Err:    fmt.Errorf("unexpected status: %s", snippet(body)),
		}
	}

	var messages []model.Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, &TransportError{
			Op:     op,
			Status: status,
			Err:    fmt.Errorf("decoding messages: %w", err),
		}
	}
	return messages, nil
}

// TriggerRefresh asks the relay to refresh its mailbox. The response body
// is ignored; only transport failures are reported.
func (c *Client) TriggerRefresh(ctx context.Context) error {
	_, _, err := c.get(ctx, "trigger refresh", model.EndpointRefresh.Path())
	return err
}

// SendEmail posts a message with its attachments. It returns a
// *RejectedError when the relay reports success=false.
func (c *Client) SendEmail(ctx context.Context, req SendRequest) error {
	_, err := c.postForm(ctx, "send email", pathSendEmail, func(w *multipart.Writer) error {
		fields := [][2]string{
			{"to", req.To},
			{"subject", req.Subject},
			{"text", req.Text},
		}
		for _, f := range fields {
			if err := w.WriteField(f[0], f[1]); err != nil {
				return fmt.Errorf("writing field %s: %w", f[0], err)
			}
		}
		for _, file := range req.Attachments {
			if err := writeFilePart(w, "attachments", file); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// ImportRecipients uploads a spreadsheet to the bulk import endpoint and
// returns the server's message.
func (c *Client) ImportRecipients(
	ctx context.Context,
	file model.File,
) (string, error) {
	resp, err := c.postForm(ctx, "import recipients", pathImportExcel, func(w *multipart.Writer) error {
		return writeFilePart(w, "file", file)
	})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// get issues a GET, retrying on 429. It returns the final status and body.
func (c *Client) get(
	ctx context.Context,
	op string,
	path string,
) (int, []byte, error) {
	var lastStatus int
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		status, body, header, err := c.do(ctx, op, http.MethodGet, path, nil, "")
		if err != nil {
			return 0, nil, err
		}
		if status != http.StatusTooManyRequests {
			return status, body, nil
		}

		lastStatus = status
		if attempt == c.maxRetries {
			break
		}
		wait := retryAfterDuration(header, attempt)
		c.logger.Warn("rate limited by relay",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
		)

		select {
		case <-ctx.Done():
			return 0, nil, &TransportError{Op: op, Err: ctx.Err()}
		case <-time.After(wait):
		}
	}

	return 0, nil, &TransportError{
		Op:     op,
		Status: lastStatus,
		Err:    fmt.Errorf("max retries (%d) exceeded", c.maxRetries),
	}
}

// postForm encodes a multipart body with fill, posts it once, and decodes
// the status response.
func (c *Client) postForm(
	ctx context.Context,
	op string,
	path string,
	fill func(*multipart.Writer) error,
) (*statusResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := fill(w); err != nil {
		return nil, fmt.Errorf("%s: encoding form: %w", op, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s: closing form: %w", op, err)
	}

	status, body, _, err := c.do(ctx, op, http.MethodPost, path, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{
			Op:     op,
			Status: status,
			Err:    fmt.Errorf("decoding response: %w", err),
		}
	}
	if !resp.Success {
		return &resp, &RejectedError{Op: op, Message: resp.Message}
	}
	return &resp, nil
}

// do performs a single request and reads the whole response body.
func (c *Client) do(
	ctx context.Context,
	op string,
	method string,
	path string,
	body io.Reader,
	contentType string,
) (int, []byte, http.Header, error) {
	requestID := uuid.New().String()
	log := c.logger.With(
		zap.String("op", op),
		zap.String("request_id", requestID),
	)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, nil, &TransportError{Op: op, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("relay request failed", zap.Error(err))
		return 0, nil, nil, &TransportError{Op: op, Err: fmt.Errorf("executing request %s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, nil, &TransportError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("reading response body: %w", err),
		}
	}

	log.Debug("relay request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp.StatusCode, respBody, resp.Header, nil
}

// writeFilePart adds one file part, sniffing its content type.
func writeFilePart(w *multipart.Writer, field string, file model.File) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(
		`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(file.Name),
	))
	h.Set("Content-Type", http.DetectContentType(file.Data))

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating part for %s: %w", file.Name, err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return fmt.Errorf("writing part for %s: %w", file.Name, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// snippet trims a response body for error messages.
func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(header http.Header, attempt int) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}

// IsCanceled reports whether err stems from a canceled context rather than
// the relay.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
