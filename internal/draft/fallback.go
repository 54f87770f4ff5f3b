package draft

import (
	"fmt"
	"html"
	"strings"

	"inkwell/internal/textutil"
)

// fallbackSections shape the locally generated article skeleton.
var fallbackSections = []string{
	"Why %s Matters Now",
	"What to Know About %s",
	"Practical Takeaways",
}

// FallbackDraft produces a deterministic local article when every draft
// provider is unavailable. Research excerpts fill the sections when
// present; otherwise generic category copy does. Thin content beats no
// content, and the structural-fix pass and link engine still run over it.
func FallbackDraft(topic, category, researchContext string) string {
	topic = textutil.CollapseWhitespace(topic)
	safeTopic := html.EscapeString(topic)

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>", safeTopic)
	fmt.Fprintf(&b, "<p>%s is drawing attention across the %s space. This overview collects what is currently known and why it is worth following.</p>",
		safeTopic, html.EscapeString(strings.ToLower(category)))

	chunks := textutil.ChunkByWords(textutil.CollapseWhitespace(researchContext), 60)

	for i, section := range fallbackSections {
		title := section
		if strings.Contains(section, "%s") {
			title = fmt.Sprintf(section, topic)
		}
		fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(title))

		if i < len(chunks) {
			fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(strings.TrimSpace(chunks[i])))
		} else {
			fmt.Fprintf(&b, "<p>Coverage of %s is still developing. Revisiting the primary sources as they publish updates remains the most reliable way to stay current.</p>", safeTopic)
		}
	}

	fmt.Fprintf(&b, "<p>As the picture around %s settles, the practical advice is to focus on fundamentals first and adopt changes incrementally.</p>", safeTopic)
	return b.String()
}
