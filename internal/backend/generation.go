package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/go-resty/resty/v2"
)

// Completion is the result of a single generation call.
type Completion struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// GenerationClient calls OpenAI-compatible chat completion endpoints. It is
// stateless: each call carries the target it should hit, so one client serves
// every configured backend.
type GenerationClient struct {
	client *resty.Client
}

// NewGenerationClient creates a new generation client.
func NewGenerationClient() *GenerationClient {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")

	return &GenerationClient{client: client}
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate runs one completion against the given target. The target's timeout
// bounds the call; an exceeded budget is reported as domain.ErrTimeout so the
// router can escalate instead of surfacing it.
func (c *GenerationClient) Generate(ctx context.Context, target *domain.ModelTarget, prompt string, maxTokens int) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, target.Timeout)
	defer cancel()

	req := chatRequest{
		Model: target.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(target.APIKey).
		SetBody(req).
		SetResult(&resp).
		Post(target.Endpoint + "/chat/completions")

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: target %s after %s", domain.ErrTimeout, target.Name, target.Timeout)
		}
		return nil, fmt.Errorf("failed to call generation backend %s: %w", target.Name, err)
	}

	if httpResp.StatusCode() != http.StatusOK {
		if resp.Error != nil {
			return nil, fmt.Errorf("generation backend %s error: %s", target.Name, resp.Error.Message)
		}
		return nil, fmt.Errorf("generation backend %s error: status %d", target.Name, httpResp.StatusCode())
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("generation backend %s returned no choices", target.Name)
	}

	return &Completion{
		Text:         resp.Choices[0].Message.Content,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
