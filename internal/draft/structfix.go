package draft

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"inkwell/internal/core"
	"inkwell/internal/textutil"
)

// FixResult is the output of the structural-fix pass.
type FixResult struct {
	HTML string
	TOC  []core.TOCEntry
}

// StructuralFix performs the non-AI readability pass: paragraphs longer
// than splitWords are divided at sentence boundaries into chunks of roughly
// chunkWords, and every h2/h3 receives a deterministic slug-based anchor id.
// Running the pass on already-fixed content produces no further mutation.
func StructuralFix(html string, splitWords, chunkWords int) (*FixResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article HTML: %w", err)
	}

	splitLongParagraphs(doc, splitWords, chunkWords)
	toc := assignHeadingAnchors(doc)

	out, err := doc.Find("body").Html()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize fixed HTML: %w", err)
	}

	return &FixResult{HTML: strings.TrimSpace(out), TOC: toc}, nil
}

// splitLongParagraphs collects oversized paragraphs first and replaces them
// afterwards, so structural edits never run against the selection being
// iterated.
func splitLongParagraphs(doc *goquery.Document, splitWords, chunkWords int) {
	var oversized []*goquery.Selection

	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		// Paragraphs containing anchors are left intact so link positions
		// survive the pass.
		if p.Find("a").Length() > 0 {
			return
		}
		if textutil.WordCount(p.Text()) > splitWords {
			oversized = append(oversized, p)
		}
	})

	for _, p := range oversized {
		chunks := textutil.ChunkByWords(p.Text(), chunkWords)
		if len(chunks) < 2 {
			continue
		}
		var b strings.Builder
		for _, chunk := range chunks {
			// Text() is unescaped; escape before re-injecting so literal
			// angle brackets never re-parse as markup.
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(chunk))
			b.WriteString("</p>")
		}
		p.ReplaceWithHtml(b.String())
	}
}

// assignHeadingAnchors gives every h2/h3 a slug-based id, disambiguating
// collisions with an incrementing suffix, and returns the resulting table
// of contents in document order. Existing ids are kept, which makes the
// pass idempotent.
func assignHeadingAnchors(doc *goquery.Document) []core.TOCEntry {
	used := make(map[string]bool)
	var toc []core.TOCEntry

	doc.Find("h2, h3").Each(func(_ int, h *goquery.Selection) {
		title := textutil.CollapseWhitespace(h.Text())
		level := 2
		if goquery.NodeName(h) == "h3" {
			level = 3
		}

		anchor, exists := h.Attr("id")
		if !exists || anchor == "" {
			base := textutil.Slugify(title)
			anchor = base
			for i := 2; used[anchor]; i++ {
				anchor = base + "-" + strconv.Itoa(i)
			}
			h.SetAttr("id", anchor)
		}
		used[anchor] = true

		toc = append(toc, core.TOCEntry{Level: level, Title: title, Anchor: anchor})
	})

	return toc
}
