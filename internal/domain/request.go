package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Mode identifies how a request should be executed.
// The set is closed: dispatch code switches exhaustively over these values.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeRAG   Mode = "rag"
	ModeEmbed Mode = "embed"
	ModeBatch Mode = "batch"
)

// Priority classifies queue scheduling for asynchronous work.
type Priority string

const (
	PriorityInteractive Priority = "interactive"
	PriorityBatch       Priority = "batch"
)

// Request is an immutable inference request. It is created at ingress,
// validated once, and never mutated afterwards.
type Request struct {
	ID         string   `json:"id"`
	Text       string   `json:"text" binding:"required"`
	Collection string   `json:"collection,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
	Mode       Mode     `json:"mode"`
	MaxTokens  int      `json:"max_tokens,omitempty"`
	Priority   Priority `json:"priority,omitempty"`

	// Texts carries the input list for batch embedding requests.
	Texts []string `json:"texts,omitempty"`

	// DocumentID and Metadata carry the payload of asynchronous ingestion
	// jobs. DocumentID is the caller's stable identifier, not the request ID.
	DocumentID string            `json:"document_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

const (
	DefaultTopK      = 3
	DefaultMaxTokens = 512
)

// NewRequest assigns an ID and fills defaults for optional fields.
func NewRequest(text string, mode Mode) *Request {
	r := &Request{
		ID:   uuid.New().String(),
		Text: text,
		Mode: mode,
	}
	r.ApplyDefaults()
	return r
}

// ApplyDefaults fills zero-valued optional fields. Safe to call once at ingress.
func (r *Request) ApplyDefaults() {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Mode == "" {
		r.Mode = ModeChat
	}
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Priority == "" {
		if r.Mode == ModeBatch {
			r.Priority = PriorityBatch
		} else {
			r.Priority = PriorityInteractive
		}
	}
}

// Validate rejects malformed requests before they enter the pipeline.
func (r *Request) Validate() error {
	switch r.Mode {
	case ModeChat, ModeRAG, ModeEmbed, ModeBatch:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrValidation, r.Mode)
	}

	if strings.TrimSpace(r.Text) == "" && len(r.Texts) == 0 {
		return fmt.Errorf("%w: text is required", ErrValidation)
	}
	if r.Mode == ModeRAG && r.Collection == "" {
		return fmt.Errorf("%w: rag mode requires a collection", ErrValidation)
	}
	if r.TopK < 0 {
		return fmt.Errorf("%w: top_k must be non-negative", ErrValidation)
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must be non-negative", ErrValidation)
	}
	switch r.Priority {
	case "", PriorityInteractive, PriorityBatch:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, r.Priority)
	}
	return nil
}

// Response is the synchronous result of a request, or a handle to the job
// that will produce it.
type Response struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text,omitempty"`
	Target    string `json:"target,omitempty"`
	Cached    bool   `json:"cached"`

	// Embeddings is set for embed-mode requests.
	Embeddings [][]float32 `json:"embeddings,omitempty"`

	// JobID is set instead of Text when the request was queued.
	JobID string `json:"job_id,omitempty"`

	// Sources lists the retrieved chunks that grounded a RAG answer.
	Sources []DocumentChunk `json:"sources,omitempty"`
}

// Async reports whether the response is a job handle rather than a result.
func (r *Response) Async() bool {
	return r.JobID != ""
}
