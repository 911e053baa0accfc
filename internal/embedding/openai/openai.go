package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"ragserver/internal/domain"
)

// Client is an OpenAI-compatible embeddings client. One call embeds a whole
// batch; correspondence between inputs and vectors is by response order only,
// since some providers omit or mis-set the per-item index tag.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Config configures the embeddings client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: t},
	}
}

// item accepts both response shapes seen in the wild: an object carrying an
// "embedding" field and a bare vector. vec stays nil when neither matches.
type item struct {
	vec []float64
}

func (it *item) UnmarshalJSON(data []byte) error {
	var obj struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Embedding != nil {
		it.vec = obj.Embedding
		return nil
	}
	var bare []float64
	if err := json.Unmarshal(data, &bare); err == nil && bare != nil {
		it.vec = bare
		return nil
	}
	return nil
}

// Embed returns one vector per input text, in input order. The response must
// contain exactly len(texts) items, each with an embedding field; anything
// else fails without a partial result.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"input": texts,
	})
	if err != nil {
		return nil, err
	}

	var payload []byte
	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("embeddings failed: %s", resp.Status))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("embeddings failed: %s", resp.Status)
		}
		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, domain.Error{Code: domain.Provider, Err: fmt.Errorf("embeddings request failed: %w", err)}
	}

	var out struct {
		Data []item `json:"data"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, domain.Error{Code: domain.Provider, Err: fmt.Errorf("decode embeddings response: %w", err)}
	}
	if len(out.Data) != len(texts) {
		return nil, domain.Errorf(domain.ShapeMismatch,
			"embedding response size mismatch: expected %d items, got %d", len(texts), len(out.Data))
	}
	vectors := make([][]float64, len(out.Data))
	for i, it := range out.Data {
		if it.vec == nil {
			return nil, domain.Errorf(domain.ShapeMismatch,
				"missing 'embedding' at position %d in embeddings response", i)
		}
		vectors[i] = it.vec
	}
	return vectors, nil
}
