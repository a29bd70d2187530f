package service

import (
	"strings"
	"testing"

	"github.com/driss-b/infercore/internal/domain"
)

const testThreshold = 50

func TestDefaultScore_RoutingCorpus(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected domain.TargetName
	}{
		// Greetings and short conversational turns stay small.
		{"greeting", "hi", domain.TargetSmallLocal},
		{"greeting fr", "bonjour", domain.TargetSmallLocal},
		{"thanks", "thanks a lot", domain.TargetSmallLocal},
		{"short factual", "what is the capital of France?", domain.TargetSmallLocal},
		{"short factual fr", "c'est quoi un vecteur ?", domain.TargetSmallLocal},
		{"short list", "list the planets", domain.TargetSmallLocal},
		{"greeting ar", "مرحبا", domain.TargetSmallLocal},
		{"short factual ar", "ما هو عاصمة فرنسا؟", domain.TargetSmallLocal},

		// Analytical, legal, and code requests go large.
		{"analysis", "analyze the quarterly revenue trends", domain.TargetLargeLocal},
		{"legal", "review the termination clause in this contract", domain.TargetLargeLocal},
		{"legal fr", "peux-tu expliquer cette clause du contrat", domain.TargetLargeLocal},
		{"code", "debug this function, it throws an exception", domain.TargetLargeLocal},
		{"deep reasoning", "why does the scheduler starve low-priority tasks", domain.TargetLargeLocal},
		{"analysis ar", "حلل اتجاهات الإيرادات الفصلية", domain.TargetLargeLocal},
		{"legal ar", "راجع بنود عقد الإيجار قبل التوقيع", domain.TargetLargeLocal},
		{"deep reasoning ar", "لماذا تأخر المشروع عن الموعد", domain.TargetLargeLocal},

		// Long text goes large even without keywords.
		{"long plain text", strings.Repeat("some plain words without trigger terms ", 10), domain.TargetLargeLocal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			score := DefaultScore(tc.text, domain.DefaultMaxTokens)
			got := classify(score, testThreshold)
			if got != tc.expected {
				t.Errorf("classify(%q) = %s (score %d), want %s", tc.text, got, score, tc.expected)
			}
		})
	}
}

func TestDefaultScore_Deterministic(t *testing.T) {
	text := "analyze this contract and summarize the tax implications"
	first := DefaultScore(text, 512)
	for i := 0; i < 100; i++ {
		if got := DefaultScore(text, 512); got != first {
			t.Fatalf("score changed between calls: %d != %d", got, first)
		}
	}
}

func TestDefaultScore_MonotonicInMaxTokens(t *testing.T) {
	text := "write a short story about a lighthouse"
	prev := DefaultScore(text, 256)
	for _, maxTokens := range []int{512, 1024, 2048, 4096, 8192} {
		score := DefaultScore(text, maxTokens)
		if score < prev {
			t.Fatalf("score decreased when maxTokens grew to %d: %d < %d", maxTokens, score, prev)
		}
		prev = score
	}
}

func TestDefaultScore_MonotonicInLength(t *testing.T) {
	base := "describe the outcome in plain terms "
	prev := -1
	for repeat := 1; repeat <= 40; repeat *= 2 {
		text := strings.Repeat(base, repeat)
		score := DefaultScore(text, 512)
		if score < prev {
			t.Fatalf("score decreased for longer text (repeat %d): %d < %d", repeat, score, prev)
		}
		prev = score
	}
}

func TestDefaultScore_SimpleOpenerNeedsWordBoundary(t *testing.T) {
	// "history" starts with "hi" but is not a greeting.
	if hasSimpleOpener("history books") {
		t.Error("'history' must not match the opener 'hi'")
	}
	if !hasSimpleOpener("hi there") {
		t.Error("'hi there' must match the opener 'hi'")
	}
}

func TestDefaultScore_NeverNegative(t *testing.T) {
	if score := DefaultScore("hi", 16); score < 0 {
		t.Errorf("score must be clamped at zero, got %d", score)
	}
}

func TestClassify_NeverPicksCloudFallback(t *testing.T) {
	for score := 0; score < 500; score += 7 {
		if got := classify(score, testThreshold); got == domain.TargetCloudFallback {
			t.Fatalf("classification picked cloud fallback at score %d", score)
		}
	}
}

func TestContainsWord_Boundaries(t *testing.T) {
	tests := []struct {
		text     string
		word     string
		expected bool
	}{
		{"the capital of france", "api", false},
		{"modern syntax rules", "tax", false},
		{"rest api design", "api", true},
		{"tax season", "tax", true},
		{"pay your tax", "tax", true},
		{"c'est quoi", "quoi", true},
		{"راجع العقد قبل التوقيع", "عقد", true},
		{"العقد", "عقد", true},
		{"معقد جدا", "عقد", false},
	}
	for _, tc := range tests {
		if got := containsWord(tc.text, tc.word); got != tc.expected {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tc.text, tc.word, got, tc.expected)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"hi", 1},
		{strings.Repeat("a", 400), 100},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.text); got != tc.expected {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got, tc.expected)
		}
	}
}
