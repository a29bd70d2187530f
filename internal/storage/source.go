package storage

import (
	"context"
	"io"
)

// DocumentRef identifies one ingestable document in a source. The ID is
// stable across runs so re-ingestion stays idempotent.
type DocumentRef struct {
	ID   string
	Name string
	Size int64
}

// DocumentSource enumerates and reads plain-text documents for ingestion.
type DocumentSource interface {
	// List returns the documents available in the source, in a stable order.
	List(ctx context.Context) ([]DocumentRef, error)

	// Open returns a reader for one document's content.
	Open(ctx context.Context, ref DocumentRef) (io.ReadCloser, error)
}

// ingestableExtensions are the file suffixes treated as plain-text documents.
var ingestableExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}
