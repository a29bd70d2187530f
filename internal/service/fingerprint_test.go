package service

import (
	"testing"

	"github.com/driss-b/infercore/internal/domain"
)

func TestFingerprint_Deterministic(t *testing.T) {
	req := &domain.Request{Text: "explain the plan", Mode: domain.ModeChat, MaxTokens: 512}
	first := Fingerprint(req, domain.TargetLargeLocal, "")
	for i := 0; i < 10; i++ {
		if got := Fingerprint(req, domain.TargetLargeLocal, ""); got != first {
			t.Fatalf("fingerprint changed between calls: %s != %s", got, first)
		}
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first))
	}
}

func TestFingerprint_NormalizesWhitespaceAndCase(t *testing.T) {
	a := &domain.Request{Text: "Explain   the  plan", Mode: domain.ModeChat, MaxTokens: 512}
	b := &domain.Request{Text: "explain the plan", Mode: domain.ModeChat, MaxTokens: 512}
	if Fingerprint(a, domain.TargetSmallLocal, "") != Fingerprint(b, domain.TargetSmallLocal, "") {
		t.Error("reformatted text must share a fingerprint")
	}
}

func TestFingerprint_Discriminates(t *testing.T) {
	base := &domain.Request{Text: "explain the plan", Mode: domain.ModeChat, MaxTokens: 512}
	baseFP := Fingerprint(base, domain.TargetSmallLocal, "")

	tests := []struct {
		name string
		fp   string
	}{
		{"different text", Fingerprint(&domain.Request{Text: "explain the risk", Mode: domain.ModeChat, MaxTokens: 512}, domain.TargetSmallLocal, "")},
		{"different target", Fingerprint(base, domain.TargetLargeLocal, "")},
		{"different max tokens", Fingerprint(&domain.Request{Text: "explain the plan", Mode: domain.ModeChat, MaxTokens: 1024}, domain.TargetSmallLocal, "")},
		{"different mode", Fingerprint(&domain.Request{Text: "explain the plan", Mode: domain.ModeRAG, MaxTokens: 512}, domain.TargetSmallLocal, "")},
		{"with context", Fingerprint(base, domain.TargetSmallLocal, "abc123")},
	}
	for _, tc := range tests {
		if tc.fp == baseFP {
			t.Errorf("%s: fingerprint collided with base", tc.name)
		}
	}
}

func TestFingerprint_IgnoresRequestID(t *testing.T) {
	a := &domain.Request{ID: "req-1", Text: "same question", Mode: domain.ModeChat, MaxTokens: 512}
	b := &domain.Request{ID: "req-2", Text: "same question", Mode: domain.ModeChat, MaxTokens: 512}
	if Fingerprint(a, domain.TargetSmallLocal, "") != Fingerprint(b, domain.TargetSmallLocal, "") {
		t.Error("two requests with identical content must share a fingerprint")
	}
}

func TestContextHash_OrderSensitive(t *testing.T) {
	c1 := domain.DocumentChunk{ID: "a"}
	c2 := domain.DocumentChunk{ID: "b"}

	if ContextHash(nil) != "" {
		t.Error("empty context must hash to empty string")
	}
	ab := ContextHash([]domain.DocumentChunk{c1, c2})
	ba := ContextHash([]domain.DocumentChunk{c2, c1})
	if ab == ba {
		t.Error("context hash must depend on chunk order")
	}
	if ab != ContextHash([]domain.DocumentChunk{c1, c2}) {
		t.Error("context hash must be deterministic")
	}
}

func TestChunkID_Stable(t *testing.T) {
	a := ChunkID("tenant-a", "doc-1", 0)
	if a != ChunkID("tenant-a", "doc-1", 0) {
		t.Error("chunk ID must be stable across calls")
	}
	if a == ChunkID("tenant-a", "doc-1", 1) {
		t.Error("different chunk indexes must produce different IDs")
	}
	if a == ChunkID("tenant-b", "doc-1", 0) {
		t.Error("different collections must produce different IDs")
	}
	if a == ChunkID("tenant-a", "doc-2", 0) {
		t.Error("different documents must produce different IDs")
	}
}
