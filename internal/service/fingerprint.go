package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/driss-b/infercore/internal/domain"
)

// Fingerprint computes the cache key for a request once it has been routed.
// The key covers everything that changes the answer: the normalized request
// text, the target identity, the generation parameters, and (for RAG) a hash
// of the retrieved context. Two requests collide only when the same model
// would see the same prompt with the same budget.
func Fingerprint(req *domain.Request, target domain.TargetName, contextHash string) string {
	h := sha256.New()
	h.Write([]byte(normalizeText(req.Text)))
	h.Write([]byte{0})
	h.Write([]byte(target))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%s:%d", req.Mode, req.MaxTokens)
	if contextHash != "" {
		h.Write([]byte{0})
		h.Write([]byte(contextHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContextHash fingerprints a retrieved context so RAG answers are only shared
// between requests grounded in identical chunks, in identical order.
func ContextHash(chunks []domain.DocumentChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	h := sha256.New()
	for _, c := range chunks {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeText collapses whitespace and case so trivially reformatted
// requests share a fingerprint.
func normalizeText(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// HashText computes the SHA-256 content hash used by the ingestion dedup
// registry.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
