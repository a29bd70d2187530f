package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// EmbeddingClient wraps the OpenAI-compatible embeddings endpoint exposed by
// the model proxy. Pure request/response, no state beyond the HTTP client.
type EmbeddingClient struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// EmbeddingConfig holds configuration for the embedding client.
type EmbeddingConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// NewEmbeddingClient creates a new embedding client.
func NewEmbeddingClient(cfg *EmbeddingConfig) *EmbeddingClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	return &EmbeddingClient{
		client:     client,
		endpoint:   cfg.BaseURL + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Dimensions returns the fixed output dimension of this deployment.
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

// Model returns the model name being used.
func (c *EmbeddingClient) Model() string {
	return c.model
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for a single text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	req := embeddingRequest{
		Model: c.model,
		Input: texts,
	}

	var resp embeddingResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call embedding backend: %w", err)
	}

	if httpResp.StatusCode() != http.StatusOK {
		if resp.Error != nil {
			return nil, fmt.Errorf("embedding backend error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embedding backend error: status %d", httpResp.StatusCode())
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// Sort by index to ensure correct order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}

	for i, emb := range embeddings {
		if c.dimensions > 0 && len(emb) != c.dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(emb), c.dimensions)
		}
	}

	return embeddings, nil
}
