// Package api is the REST client for the marketplace chat backend. It covers
// the four endpoints the sync engine consumes: chat list, message history,
// text send and file send.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/essaydesk/chat-engine/internal/domain"
)

const (
	DefaultTimeout = 30 * time.Second

	// Outbound request budget. The breaker guards the send paths so a dead
	// backend fails drafts fast instead of stacking 30s timeouts.
	defaultRateLimit = 20 // requests per second
	defaultRateBurst = 40
)

// APIError is a non-2xx response decoded from the server error body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: HTTP %d", e.Status)
}

// ErrUnavailable wraps breaker-open and transport-level failures.
var ErrUnavailable = errors.New("api: backend unavailable")

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultRateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "chat-api",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return c
}

// SetToken replaces the auth token, e.g. after a refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) ListChats(ctx context.Context) ([]*domain.Chat, error) {
	var out []*domain.Chat
	if err := c.doJSON(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListMessages(ctx context.Context, chatID string) ([]*domain.Message, error) {
	var wire []Message
	path := "/chats/" + chatID + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wire); err != nil {
		return nil, err
	}
	msgs := make([]*domain.Message, len(wire))
	for i, w := range wire {
		msgs[i] = w.ToDomain()
	}
	return msgs, nil
}

type SendMessageRequest struct {
	ChatID    string `json:"chatId"`
	Content   string `json:"content"`
	ReplyToID string `json:"replyTo,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*domain.Message, error) {
	var wire Message
	if err := c.doJSON(ctx, http.MethodPost, "/messages", req, &wire); err != nil {
		return nil, err
	}
	return wire.ToDomain(), nil
}

type SendFileRequest struct {
	ChatID    string
	Content   string
	ReplyToID string
	File      domain.FileInput
}

func (c *Client) SendFile(ctx context.Context, req SendFileRequest) (*domain.Message, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fields := map[string]string{
		"chatId":  req.ChatID,
		"content": req.Content,
	}
	if req.ReplyToID != "" {
		fields["replyTo"] = req.ReplyToID
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}

	fw, err := mw.CreateFormFile("file", req.File.Name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(req.File.Data); err != nil {
		return nil, fmt.Errorf("write file data: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var wire Message
	if err := c.do(ctx, http.MethodPost, "/messages/file", body, mw.FormDataContentType(), &wire); err != nil {
		return nil, err
	}
	return wire.ToDomain(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := &APIError{Status: resp.StatusCode}
			_ = json.Unmarshal(data, apiErr)
			return nil, apiErr
		}
		return data, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	data := result.([]byte)
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
