// Package textutil provides the text helpers shared across the generation
// pipeline: fuzzy similarity scoring, slug derivation, and sentence-aware
// splitting and truncation.
package textutil

import (
	"regexp"
	"strings"
)

var (
	slugInvalidRegex   = regexp.MustCompile(`[^a-z0-9]+`)
	sentenceEndRegex   = regexp.MustCompile(`([.!?]["')\]]?)(\s+|$)`)
	whitespaceCollapse = regexp.MustCompile(`\s+`)
)

// SimilarityRatio computes a character-level similarity percentage (0-100)
// between two strings, based on the length of their longest common
// subsequence. Comparison is case-insensitive.
func SimilarityRatio(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}

	// Length in runes, matching the rune-wise subsequence, so multi-byte
	// characters do not deflate the ratio.
	lcs := lcsLength(a, b)
	total := len([]rune(a)) + len([]rune(b))
	return float64(2*lcs) / float64(total) * 100
}

// lcsLength returns the longest common subsequence length using a
// two-row rolling table.
func lcsLength(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// ContainsEitherWay reports whether one string contains the other as a
// substring, preserving case.
func ContainsEitherWay(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Slugify converts a title into a URL- and anchor-safe slug.
// The same input always yields the same slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalidRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "section"
	}
	return s
}

// SplitSentences splits text into sentences at terminal punctuation,
// keeping the punctuation attached to the sentence it ends.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	marked := sentenceEndRegex.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")

	var sentences []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// WordCount counts whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// TruncateAtSentence trims text to at most maxWords, cutting only at
// sentence boundaries so the result never ends mid-sentence. Text already
// within the bound is returned unchanged.
func TruncateAtSentence(text string, maxWords int) string {
	if WordCount(text) <= maxWords {
		return text
	}

	var b strings.Builder
	words := 0
	for _, sentence := range SplitSentences(text) {
		n := WordCount(sentence)
		if words > 0 && words+n > maxWords {
			break
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
		words += n
	}
	return b.String()
}

// ChunkByWords splits text into consecutive sentence groups of roughly
// targetWords each, preserving sentence order.
func ChunkByWords(text string, targetWords int) []string {
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var b strings.Builder
	words := 0

	for _, sentence := range sentences {
		n := WordCount(sentence)
		if words > 0 && words+n > targetWords {
			chunks = append(chunks, b.String())
			b.Reset()
			words = 0
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(sentence)
		words += n
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

// CollapseWhitespace normalizes runs of whitespace to single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceCollapse.ReplaceAllString(s, " "))
}
