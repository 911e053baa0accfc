package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragserver/internal/domain"
)

// Client talks to an OpenAI-compatible chat completions endpoint. It backs
// both generation modes: a single blocking completion and an SSE token stream.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
	// streams hold the connection open for the whole generation, so no
	// client-level timeout; cancellation comes from the request context
	streamClient *http.Client
}

// Config configures the chat client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		temperature:  cfg.Temperature,
		client:       &http.Client{Timeout: t},
		streamClient: &http.Client{},
	}
}

func (c *Client) newRequest(ctx context.Context, prompt string, stream bool) (*http.Request, error) {
	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": c.temperature,
		"stream":      stream,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

// Complete sends one completion request and returns the full answer text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req, err := c.newRequest(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", domain.Error{Code: domain.Provider, Err: fmt.Errorf("chat completion failed: %w", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", domain.Errorf(domain.Provider, "chat completion failed: %s", resp.Status)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.Error{Code: domain.Provider, Err: fmt.Errorf("decode chat response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return "", domain.Errorf(domain.Provider, "chat completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// Stream starts a streaming completion and delivers deltas in provider
// emission order, one channel element per non-empty delta. A mid-stream
// failure is delivered as a final Delta with Err set; the channel is closed
// afterwards either way. The consumer stops the upstream read by cancelling
// ctx.
func (c *Client) Stream(ctx context.Context, prompt string) (<-chan domain.Delta, error) {
	req, err := c.newRequest(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, domain.Error{Code: domain.Provider, Err: fmt.Errorf("chat stream failed: %w", err)}
	}
	if resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, domain.Errorf(domain.Provider, "chat stream failed: %s", resp.Status)
	}

	ch := make(chan domain.Delta)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		if err := readStream(ctx, resp.Body, ch); err != nil {
			select {
			case ch <- domain.Delta{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func readStream(ctx context.Context, body io.Reader, ch chan<- domain.Delta) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		var event struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return domain.Error{Code: domain.Provider, Err: fmt.Errorf("decode stream event: %w", err)}
		}
		if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
			continue
		}
		select {
		case ch <- domain.Delta{Content: event.Choices[0].Delta.Content}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.Error{Code: domain.Provider, Err: fmt.Errorf("chat stream interrupted: %w", err)}
	}
	return nil
}
