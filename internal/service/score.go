package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/prompts"
)

// ScoreFunc estimates request complexity from cheap lexical signals. Higher
// means more complex. The function must be pure and deterministic: identical
// text and params always produce the same score, which keeps routing
// reproducible and cache fingerprints stable.
type ScoreFunc func(text string, maxTokens int) int

const (
	// Rough chars-per-token ratio used for token estimation. Precision does
	// not matter here; monotonicity does.
	charsPerToken = 4

	shortTextRunes = 80
	longTextRunes  = 150

	complexKeywordWeight = 60
	codeFenceWeight      = 30
	longTextWeight       = 50
	simpleKeywordWeight  = -25

	// maxTokens above this adds weight proportional to the excess.
	largeOutputTokens = 1024
)

// DefaultScore is the standard complexity scorer.
//
// Inputs: the raw request text and the requested max output tokens.
// Output: an integer score; the router compares it against a configured
// threshold. Signals, in decreasing weight:
//   - presence of any complex keyword (analysis, legal, code, deep reasoning)
//   - text length beyond 80 runes (anything non-trivial defaults to the
//     large model; only short simple requests stay small)
//   - presence of a fenced code block
//   - requested output size beyond 1024 tokens
//   - a simple-opener keyword on short text lowers the score
//
// The score is monotonic in text length and maxTokens when the other signals
// are held fixed.
func DefaultScore(text string, maxTokens int) int {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	runes := len([]rune(trimmed))

	score := 0

	if containsAnyKeyword(lower, prompts.ComplexKeywords) {
		score += complexKeywordWeight
	}
	if strings.Contains(trimmed, "```") {
		score += codeFenceWeight
	}
	if runes >= shortTextRunes {
		score += longTextWeight
		// Longer text keeps raising the score so classification stays
		// monotonic in length.
		score += runes / longTextRunes
	}
	if maxTokens > largeOutputTokens {
		score += (maxTokens - largeOutputTokens) / 64
	}
	if runes < shortTextRunes && hasSimpleOpener(lower) {
		score += simpleKeywordWeight
	}

	if score < 0 {
		return 0
	}
	return score
}

// EstimateTokens approximates the token count of a text. Used for context
// budgeting and for the synchronous-vs-job decision, not for billing.
func EstimateTokens(text string) int {
	n := len([]rune(text)) / charsPerToken
	if n < 1 && text != "" {
		return 1
	}
	return n
}

func containsAnyKeyword(lower string, keywords []string) bool {
	for _, word := range keywords {
		if word == "" {
			continue
		}
		if containsWord(lower, word) {
			return true
		}
	}
	return false
}

// arabicArticle is the definite article prefix that attaches directly to the
// noun, so "العقد" still counts as the keyword "عقد".
const arabicArticle = "ال"

// containsWord matches a keyword only at word boundaries, so "api" does not
// fire inside "capital" or "tax" inside "syntax".
func containsWord(text, word string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)

		beforeOK := idx == 0
		if !beforeOK {
			r, _ := utf8.DecodeLastRuneInString(text[:idx])
			beforeOK = !isWordRune(r)
		}
		if !beforeOK && strings.HasSuffix(text[:idx], arabicArticle) {
			head := strings.TrimSuffix(text[:idx], arabicArticle)
			if head == "" {
				beforeOK = true
			} else if r, _ := utf8.DecodeLastRuneInString(head); !isWordRune(r) {
				beforeOK = true
			}
		}
		afterOK := end == len(text)
		if !afterOK {
			r, _ := utf8.DecodeRuneInString(text[end:])
			afterOK = !isWordRune(r)
		}
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func hasSimpleOpener(lower string) bool {
	for _, word := range prompts.SimpleKeywords {
		if word == "" {
			continue
		}
		if !strings.HasPrefix(lower, word) {
			continue
		}
		// Require a word boundary so "hi" does not match "history".
		rest := lower[len(word):]
		if rest == "" {
			return true
		}
		if r, _ := utf8.DecodeRuneInString(rest); !isWordRune(r) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// classify maps a score to a target. Below the threshold stays local and
// small; at or above escalates to the large local model. CloudFallback is
// never chosen by classification, only by failure escalation.
func classify(score, threshold int) domain.TargetName {
	if score < threshold {
		return domain.TargetSmallLocal
	}
	return domain.TargetLargeLocal
}
