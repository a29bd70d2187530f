package domain

// DocumentChunk is one indexed slice of a document. Chunks are owned by their
// collection; they are created during ingestion and removed only when their
// document is re-ingested or the collection is purged.
type DocumentChunk struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	DocumentID string            `json:"document_id"`
	Index      int               `json:"index"`
	Text       string            `json:"text"`
	Embedding  []float32         `json:"-"`
	Score      float32           `json:"score,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
