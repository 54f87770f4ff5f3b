// Package draft produces article HTML in two passes: a provider-backed
// draft call with post-hoc word-count enforcement, and an optimize pass
// that degrades to a local structural fix when no provider is available.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"inkwell/internal/core"
	"inkwell/internal/logger"
	"inkwell/internal/provider"
	"inkwell/internal/textutil"
)

// Options tunes the draft stage.
type Options struct {
	MinWords            int
	MaxWords            int
	ParagraphSplitWords int
	ParagraphChunkWords int
}

// DefaultOptions returns the stage defaults.
func DefaultOptions() Options {
	return Options{
		MinWords:            500,
		MaxWords:            5000,
		ParagraphSplitWords: 80,
		ParagraphChunkWords: 40,
	}
}

// Stage runs the draft and optimize passes.
type Stage struct {
	gen  provider.Generator
	opts Options
}

// NewStage creates a draft stage over the given generator.
func NewStage(gen provider.Generator, opts Options) *Stage {
	return &Stage{gen: gen, opts: opts}
}

// Draft produces raw article HTML for a topic, enforcing word-count bounds
// after generation: an under-length draft triggers one expansion call, an
// over-length draft is truncated at sentence boundaries.
func (s *Stage) Draft(ctx context.Context, topic, category, researchContext string) (string, error) {
	resp, err := s.gen.Generate(ctx, provider.Request{
		Kind:   provider.KindChat,
		System: draftSystemInstruction,
		User:   buildDraftPrompt(topic, category, researchContext),
	})
	if err != nil {
		return "", fmt.Errorf("draft generation failed: %w", err)
	}

	html := stripCodeFences(resp.Text)
	if err := validateStructure(html); err != nil {
		return "", fmt.Errorf("draft is not well-formed: %w", err)
	}

	words := countContentWords(html)
	logger.Info("Draft produced", "topic", topic, "words", words, "provider", resp.Provider)

	if words < s.opts.MinWords {
		html = s.expand(ctx, html)
	} else if words > s.opts.MaxWords {
		html = truncateContent(html, s.opts.MaxWords)
	}

	return html, nil
}

// expand asks a provider for a longer revision. Failure keeps the short
// draft; a thin article beats no article.
func (s *Stage) expand(ctx context.Context, html string) string {
	resp, err := s.gen.Generate(ctx, provider.Request{
		Kind:   provider.KindChat,
		System: draftSystemInstruction,
		User:   buildExpandPrompt(html, s.opts.MinWords),
	})
	if err != nil {
		logger.Warn("Draft expansion failed, keeping short draft", "error", err.Error())
		return html
	}

	expanded := stripCodeFences(resp.Text)
	if validateStructure(expanded) != nil || countContentWords(expanded) < countContentWords(html) {
		return html
	}
	return expanded
}

// optimizeResponse is the JSON shape the optimize pass requests.
type optimizeResponse struct {
	HTML string `json:"html"`
	TOC  []struct {
		Level  int    `json:"level"`
		Title  string `json:"title"`
		Anchor string `json:"anchor"`
	} `json:"toc"`
}

// Optimize rewrites the article for readability and returns the revised
// HTML plus its table of contents. When the optimize provider is
// unavailable or returns something unusable, the local structural-fix pass
// runs instead; optimization degrades, it never blocks publication.
func (s *Stage) Optimize(ctx context.Context, html string) (string, []core.TOCEntry, error) {
	resp, err := s.gen.Generate(ctx, provider.Request{
		Kind:   provider.KindJSON,
		System: optimizeSystemInstruction,
		User:   buildOptimizePrompt(html),
	})
	if err != nil {
		logger.Warn("Optimize provider unavailable, using structural fix", "error", err.Error())
		return s.structuralFallback(html)
	}

	var parsed optimizeResponse
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Text)), &parsed); err != nil || parsed.HTML == "" {
		logger.Warn("Optimize response unusable, using structural fix")
		return s.structuralFallback(html)
	}

	if err := validateStructure(parsed.HTML); err != nil {
		logger.Warn("Optimized HTML malformed, using structural fix", "error", err.Error())
		return s.structuralFallback(html)
	}

	// The structural fix is idempotent, so running it over the optimizer's
	// output guarantees anchors even when the model skipped them, and its
	// TOC is derived from the document rather than trusted from the model.
	fixed, err := StructuralFix(parsed.HTML, s.opts.ParagraphSplitWords, s.opts.ParagraphChunkWords)
	if err != nil {
		return s.structuralFallback(html)
	}
	return fixed.HTML, fixed.TOC, nil
}

func (s *Stage) structuralFallback(html string) (string, []core.TOCEntry, error) {
	fixed, err := StructuralFix(html, s.opts.ParagraphSplitWords, s.opts.ParagraphChunkWords)
	if err != nil {
		return "", nil, fmt.Errorf("structural fix failed: %w", err)
	}
	return fixed.HTML, fixed.TOC, nil
}

// stripCodeFences removes markdown code fences models like to wrap HTML in.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}

// validateStructure checks that content parses and contains at least one
// paragraph and one heading.
func validateStructure(html string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}
	if doc.Find("p").Length() == 0 {
		return fmt.Errorf("no paragraph elements")
	}
	if doc.Find("h2").Length() == 0 {
		return fmt.Errorf("no section headings")
	}
	return nil
}

// countContentWords counts words in the rendered text of the article.
func countContentWords(html string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return textutil.WordCount(html)
	}
	return textutil.WordCount(doc.Text())
}

// truncateContent drops trailing paragraphs past the word bound, cutting
// the boundary paragraph at a sentence. Headings are kept so the article
// skeleton stays intact.
func truncateContent(html string, maxWords int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	words := 0
	var toRemove []*goquery.Selection

	doc.Find("body").Children().Each(func(_ int, node *goquery.Selection) {
		if goquery.NodeName(node) != "p" {
			return
		}
		n := textutil.WordCount(node.Text())
		switch {
		case words >= maxWords:
			toRemove = append(toRemove, node)
		case words+n > maxWords:
			node.SetText(textutil.TruncateAtSentence(node.Text(), maxWords-words))
			words = maxWords
		default:
			words += n
		}
	})

	for _, node := range toRemove {
		node.Remove()
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return html
	}
	return strings.TrimSpace(out)
}
