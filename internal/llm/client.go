package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/cognicore/nerlink/pkg/nerlink/internalerr"
)

const (
	defaultBaseURL    = "http://localhost:11434"
	defaultTimeout    = 120 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = time.Second
)

// Client calls an Ollama chat endpoint. Transport failures are retried
// with exponential backoff; retrying semantic failures (a well-formed but
// unparsable answer) is the caller's business.
type Client struct {
	BaseURL string
	Model   string

	// MaxRetries is the total number of attempts per call (default 3).
	MaxRetries int
	// RetryDelay is the backoff base; attempt n sleeps RetryDelay * 2^(n-1).
	RetryDelay time.Duration

	HTTPClient *http.Client
}

// New creates a client for the given model. An empty baseURL falls back
// to the local Ollama default.
func New(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Model:      model,
		MaxRetries: defaultRetries,
		RetryDelay: defaultRetryDelay,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

// Chat sends a system+user message pair and returns the model's reply
// content. A non-empty format constrains the reply to that JSON schema.
func (c *Client) Chat(ctx context.Context, system, user string, format json.RawMessage) (string, error) {
	if c.Model == "" {
		return "", fmt.Errorf("llm: model required")
	}
	messages := []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}}

	var payload *chatResponse
	err := c.withRetry(ctx, func() error {
		var err error
		payload, err = c.send(ctx, messages, format)
		return err
	})
	if err != nil {
		return "", err
	}
	return stripReasoning(payload.Message.Content), nil
}

// Ping checks that the service is reachable. Run drivers call it once at
// start so an unreachable server fails the run before any work is queued.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", internalerr.ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

// Pull asks the server to download the model if it is not present yet.
func (c *Client) Pull(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{"model": c.Model, "stream": false})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", internalerr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("llm: pull %s: %s", c.Model, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *Client) send(ctx context.Context, messages []chatMessage, format json.RawMessage) (*chatResponse, error) {
	reqBody, err := json.Marshal(chatRequest{Model: c.Model, Messages: messages, Stream: false, Format: format})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("llm: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("llm: %s", payload.Error)
	}
	return &payload, nil
}

func (c *Client) withRetry(ctx context.Context, call func() error) error {
	attempts := c.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = call(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// stripReasoning removes <think> blocks that reasoning models prepend to
// their answer. A dangling </think> without an opening tag drops
// everything before it.
func stripReasoning(s string) string {
	if !strings.Contains(s, "</think>") {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var buf strings.Builder
	depth := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return strings.TrimSpace(buf.String())
		}
		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "think" {
				depth++
				continue
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "think" {
				if depth > 0 {
					depth--
				} else {
					buf.Reset()
				}
				continue
			}
		}
		if depth == 0 {
			buf.Write(z.Raw())
		}
	}
}
