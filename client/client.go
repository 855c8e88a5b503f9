// Package client talks to the deskchat backend over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/stream"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is where a locally running backend listens
	DefaultBaseURL = "http://127.0.0.1:9720"

	// maxErrorBody bounds how much of a failed response is kept in a TransportError
	maxErrorBody = 512
)

// Client is a backend API client. It is safe for concurrent use; every
// stream gets its own decoder.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.SugaredLogger
	decodeOpts []stream.Option
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every request
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger for request diagnostics
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds non-streaming calls. Streams are bounded only by their context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithDecoderOptions passes options to every stream decoder the client creates
func WithDecoderOptions(opts ...stream.Option) Option {
	return func(c *Client) {
		c.decodeOpts = append(c.decodeOpts, opts...)
	}
}

// New creates a client for the backend at baseURL
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		timeout:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.S()
	}
	return c
}

// BaseURL returns the backend address the client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Stream starts a generation and decodes its event stream into h. It returns
// the accumulated text. A failed initiating request yields a
// *stream.TransportError and h is never invoked.
func (c *Client) Stream(ctx context.Context, req messages.ChatRequest, h stream.Handlers) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debugw("client_stream_started",
		"mode", req.Mode,
		"model", req.Model,
		"ephemeral", req.Ephemeral,
		"prompt_length", len(req.Text),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled before the stream began; nothing partial to keep
			return "", nil
		}
		return "", &stream.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return "", err
	}

	opts := append([]stream.Option{stream.WithLogger(c.logger)}, c.decodeOpts...)
	dec := stream.NewDecoder(h, opts...)
	text, err := dec.Decode(ctx, resp.Body)

	c.logger.Debugw("client_stream_finished",
		"text_length", len(text),
		"cancelled", dec.Cancelled(),
		"malformed", dec.State().Malformed(),
		"error", err,
	)
	return text, err
}

// StreamWith is Stream with a rendering surface supplying the callbacks
func (c *Client) StreamWith(ctx context.Context, req messages.ChatRequest, p messages.EventProcessor) (string, error) {
	return c.Stream(ctx, req, messages.Handlers(p))
}

// Conversations lists stored conversations, newest first
func (c *Client) Conversations(ctx context.Context) ([]messages.Conversation, error) {
	var out []messages.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NewConversation creates a conversation and makes it current
func (c *Client) NewConversation(ctx context.Context) (messages.Conversation, error) {
	var out messages.Conversation
	err := c.do(ctx, http.MethodPost, "/api/conversations/new", struct{}{}, &out)
	return out, err
}

// SwitchConversation makes id the current conversation and returns its history
func (c *Client) SwitchConversation(ctx context.Context, id string) ([]messages.ChatMessage, error) {
	var out []messages.ChatMessage
	if err := c.do(ctx, http.MethodPost, "/api/conversations/switch", idRequest{ID: id}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteConversation removes a conversation
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/conversations/delete", idRequest{ID: id}, nil)
}

// RenameConversation sets a conversation's title
func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	body := struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}{id, title}
	return c.do(ctx, http.MethodPost, "/api/conversations/rename", body, nil)
}

// CurrentConversationID returns the id of the conversation new chats append
// to, or "" when there is none
func (c *Client) CurrentConversationID(ctx context.Context) (string, error) {
	var out *string
	if err := c.do(ctx, http.MethodGet, "/api/current-conv-id", nil, &out); err != nil || out == nil {
		return "", err
	}
	return *out, nil
}

// Models lists the model registry
func (c *Client) Models(ctx context.Context) ([]messages.Model, error) {
	var out []messages.Model
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetModel selects the backend's default model
func (c *Client) SetModel(ctx context.Context, model string) error {
	body := struct {
		Model string `json:"model"`
	}{model}
	return c.do(ctx, http.MethodPost, "/api/model", body, nil)
}

// CurrentModel returns the backend's default model
func (c *Client) CurrentModel(ctx context.Context) (string, error) {
	var out string
	err := c.do(ctx, http.MethodGet, "/api/model/current", nil, &out)
	return out, err
}

// SystemInfo describes the host running the backend
func (c *Client) SystemInfo(ctx context.Context) (messages.SystemInfo, error) {
	var out messages.SystemInfo
	err := c.do(ctx, http.MethodGet, "/api/system-info", nil, &out)
	return out, err
}

// Upload sends a file and returns the text the backend extracted from it
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) (messages.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return messages.UploadResult{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return messages.UploadResult{}, fmt.Errorf("reading %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return messages.UploadResult{}, fmt.Errorf("closing form: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return messages.UploadResult{}, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out messages.UploadResult
	if err := c.send(req, &out); err != nil {
		return messages.UploadResult{}, err
	}
	return out, nil
}

type idRequest struct {
	ID string `json:"id"`
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// do performs a JSON request and decodes the JSON response into out
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &stream.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

// checkResponse maps a non-2xx response to a TransportError
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(snippet))

	// The backend reports failures as {"error": "..."}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(snippet, &payload) == nil && payload.Error != "" {
		body = payload.Error
	}

	return &stream.TransportError{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       body,
	}
}
