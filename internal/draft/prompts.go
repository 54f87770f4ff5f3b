package draft

import (
	"fmt"
	"strings"
)

// draftSystemInstruction is the fixed system prompt for the draft call.
// Structure, heading levels, minimum link counts, and banned punctuation are
// all pinned here so drafts start close to the publishable shape.
const draftSystemInstruction = `You are a professional long-form writer producing publish-ready HTML articles.

Rules:
- Output HTML only: <h2>, <h3>, <p>, <ul>, <li>, <a>. No <html>, <head>, or <body> wrappers, no markdown.
- Structure: an opening section, 4-7 <h2> sections (each may contain <h3> subsections), and a closing section.
- Include at least 2 external links (<a href="https://...">) and at least 2 internal links (<a href="/...">) with natural anchor text.
- Never use em-dashes or semicolons; keep sentences plain.
- Write for a general audience. No meta-commentary about the article itself.`

// buildDraftPrompt assembles the user prompt for the initial draft call.
func buildDraftPrompt(topic, category, researchContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a complete article on the topic: %s\nCategory: %s\n", topic, category)
	if researchContext != "" {
		fmt.Fprintf(&b, "\nUse the following research context where relevant:\n---\n%s\n---\n", researchContext)
	}
	b.WriteString("\nReturn the article HTML only.")
	return b.String()
}

// buildExpandPrompt asks for a longer revision of an under-length draft.
func buildExpandPrompt(html string, minWords int) string {
	return fmt.Sprintf(`The following article is too short. Expand it to at least %d words by deepening existing sections. Keep every heading and link already present. Return the full revised article HTML only.

%s`, minWords, html)
}

// optimizeSystemInstruction is the system prompt for the optimize pass.
const optimizeSystemInstruction = `You are an editor improving article readability for the web.

Rewrite the given HTML article:
- Split paragraphs longer than 80 words into shorter ones at sentence boundaries.
- Remove em-dashes and semicolons, rephrasing as needed.
- Add an id attribute to every <h2> and <h3>, derived from the heading text (lowercase, hyphen-separated).
- Do not add or remove sections, headings, or links.

Respond with a JSON object: {"html": "<the revised article HTML>", "toc": [{"level": 2, "title": "...", "anchor": "..."}]}. The toc lists every h2/h3 in document order.`

// buildOptimizePrompt assembles the user prompt for the optimize call.
func buildOptimizePrompt(html string) string {
	return "Article to optimize:\n\n" + html
}
