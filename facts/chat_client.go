package facts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ChatClient speaks the OpenAI-compatible chat completions wire format, which
// most hosted and local LLM servers accept.
type ChatClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

type ChatClientOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewChatClient(opts ChatClientOptions) *ChatClient {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.openai.com"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &ChatClient{BaseURL: base, APIKey: opts.APIKey, HTTPClient: hc}
}

// NewChatClientFromEnv reads OPENAI_BASE_URL and OPENAI_API_KEY.
func NewChatClientFromEnv() *ChatClient {
	return NewChatClient(ChatClientOptions{
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
	})
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type ChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Delta struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// StreamEvent is one SSE chunk. Done marks the [DONE] sentinel.
type StreamEvent struct {
	Chunk *ChatResponse
	Done  bool
}

func (c *ChatClient) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var out ChatResponse
	req.Stream = false

	resp, err := c.post(ctx, req, false)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// Stream yields SSE chunks until [DONE], an error, or context cancellation.
func (c *ChatClient) Stream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, <-chan error) {
	events := make(chan StreamEvent, 128)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		req.Stream = true
		resp, err := c.post(ctx, req, true)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			raw := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if raw == "" {
				continue
			}
			if raw == "[DONE]" {
				events <- StreamEvent{Done: true}
				return
			}
			var chunk ChatResponse
			if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
				continue
			}
			events <- StreamEvent{Chunk: &chunk}
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}()

	return events, errs
}

func (c *ChatClient) post(ctx context.Context, req ChatRequest, stream bool) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("chat http %d: %s", resp.StatusCode, string(b))
	}
	return resp, nil
}
