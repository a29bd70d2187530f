package service

import "strings"

// ChunkerConfig controls document splitting.
type ChunkerConfig struct {
	ChunkSize    int     // runes per chunk
	OverlapRatio float64 // fraction of ChunkSize carried into the next chunk
}

// Chunker splits document text into fixed-size overlapping windows. Sizes
// are measured in runes so multi-byte scripts chunk the same as ASCII.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(cfg ChunkerConfig) *Chunker {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := int(float64(size) * cfg.OverlapRatio)
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the chunk texts for a document, in order. Whitespace-only
// input yields no chunks. Consecutive chunks share the trailing overlap
// window of the previous chunk.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	chunks := make([]string, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
