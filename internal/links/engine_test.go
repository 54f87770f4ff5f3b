package links

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"inkwell/internal/core"
	"inkwell/internal/provider"
	"inkwell/internal/search"
)

type allowAllValidator struct{}

func (allowAllValidator) Check(ctx context.Context, rawURL string) bool { return true }

type mapValidator map[string]bool

func (m mapValidator) Check(ctx context.Context, rawURL string) bool { return m[rawURL] }

type fakeRelated struct {
	items []RelatedItem
}

func (f *fakeRelated) Related(ctx context.Context, category string, limit int) ([]RelatedItem, error) {
	return f.items, nil
}

type fakeSearcher struct {
	results []core.SearchResult
}

func (f *fakeSearcher) Search(ctx context.Context, query string, cfg search.Config) ([]core.SearchResult, error) {
	return f.results, nil
}

type fakeScorer struct {
	score     string
	exhausted bool
}

func (f *fakeScorer) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if f.exhausted {
		return nil, &provider.ExhaustedError{Unreachable: true}
	}
	return &provider.Response{Text: f.score}, nil
}

// buildContent produces article HTML with the given number of internal and
// external anchors, all with distinct hrefs.
func buildContent(internal, external int) string {
	var b strings.Builder
	b.WriteString("<h2>Primary Topic Heading</h2>")
	b.WriteString("<p>Opening paragraph with enough text to matter.</p>")
	for i := 0; i < internal; i++ {
		fmt.Fprintf(&b, `<p>Inner text <a href="/posts/article-%d">internal %d</a> continues.</p>`, i, i)
	}
	for i := 0; i < external; i++ {
		fmt.Fprintf(&b, `<p>Outer text <a href="https://ext%d.example.com/page">external %d</a> continues.</p>`, i, i)
	}
	b.WriteString("<p>Closing paragraph wrapping the article up.</p>")
	return b.String()
}

func countKind(t *testing.T, content string, external bool) int {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	n := 0
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if isExternal(href, "") == external {
			n++
		}
	})
	return n
}

func TestProcessQuotaInvariants(t *testing.T) {
	counts := []int{0, 1, 4, 10}
	for _, internal := range counts {
		for _, external := range counts {
			name := fmt.Sprintf("internal=%d external=%d", internal, external)
			t.Run(name, func(t *testing.T) {
				engine := NewEngine(DefaultOptions(), allowAllValidator{}, nil, nil)
				out, stats, err := engine.Process(context.Background(), buildContent(internal, external), "Technology")
				if err != nil {
					t.Fatalf("Process failed: %v", err)
				}

				if got := countKind(t, out, false); got > 4 {
					t.Errorf("internal count %d exceeds 4", got)
				}
				if got := countKind(t, out, true); got > 4 {
					t.Errorf("external count %d exceeds post-validation cap 4", got)
				}
				if stats.Total() > 8 {
					t.Errorf("total %d exceeds bound", stats.Total())
				}
			})
		}
	}
}

func TestProcessDeduplicatesHrefs(t *testing.T) {
	content := `<h2>T</h2>` +
		`<p><a href="https://a.example.com/x">first</a></p>` +
		`<p><a href="https://a.example.com/x">second copy</a></p>` +
		`<p><a href="/inner">inner</a></p>` +
		`<p><a href="/inner">inner copy</a></p>`

	engine := NewEngine(DefaultOptions(), allowAllValidator{}, nil, nil)
	out, _, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(out))
	seen := make(map[string]int)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		seen[href]++
	})
	for href, n := range seen {
		if n > 1 {
			t.Errorf("href %q appears %d times after pass", href, n)
		}
	}
	if !strings.Contains(out, "second copy") || !strings.Contains(out, "inner copy") {
		t.Error("Expected demoted anchors to keep their visible text")
	}
}

func TestProcessDemotesInvalidExternals(t *testing.T) {
	content := `<h2>T</h2>` +
		`<p><a href="https://alive.example.com/">alive link</a></p>` +
		`<p><a href="https://dead.example.com/">dead link</a></p>`

	validator := mapValidator{"https://alive.example.com/": true}
	engine := NewEngine(DefaultOptions(), validator, nil, nil)
	out, stats, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if countKind(t, out, true) != 1 {
		t.Errorf("Expected exactly one surviving external, got %d", countKind(t, out, true))
	}
	if !strings.Contains(out, "dead link") {
		t.Error("Expected demoted link text to remain visible")
	}
	if stats.Demoted != 1 {
		t.Errorf("Expected 1 demotion, got %d", stats.Demoted)
	}
}

func TestProcessAnnotatesFollowLinks(t *testing.T) {
	content := `<h2>T</h2><p><a href="https://alive.example.com/">link</a></p>`

	engine := NewEngine(DefaultOptions(), allowAllValidator{}, nil, nil)
	out, _, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(out))
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !isExternal(href, "") {
			return
		}
		if rel, _ := a.Attr("rel"); rel != "follow" {
			t.Errorf("External anchor %q missing follow annotation, rel=%q", href, rel)
		}
	})
}

func TestDiscoveryAddsLinkWhenNoneValid(t *testing.T) {
	searcher := &fakeSearcher{results: []core.SearchResult{
		{Title: "Background Reference", URL: "https://ref.example.com/a", Snippet: "Relevant background."},
	}}
	discoverer := NewDiscoverer(searcher, nil, &fakeScorer{score: "90"})

	content := "<h2>Primary Topic Heading</h2><p>One.</p><p>Two.</p><p>Three.</p><p>Four.</p>"
	engine := NewEngine(DefaultOptions(), allowAllValidator{}, discoverer, nil)
	out, stats, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if stats.Discovered != 1 {
		t.Fatalf("Expected one discovered link, got %d", stats.Discovered)
	}
	if !strings.Contains(out, "https://ref.example.com/a") {
		t.Error("Expected discovered URL in output")
	}
}

func TestDiscoveryRejectsLowScore(t *testing.T) {
	searcher := &fakeSearcher{results: []core.SearchResult{
		{Title: "Off Topic", URL: "https://junk.example.com/", Snippet: "Unrelated."},
	}}
	discoverer := NewDiscoverer(searcher, nil, &fakeScorer{score: "40"})

	content := "<h2>Primary Topic Heading</h2><p>One.</p><p>Two.</p>"
	engine := NewEngine(DefaultOptions(), allowAllValidator{}, discoverer, nil)
	out, stats, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if stats.Discovered != 0 {
		t.Errorf("Expected low-scoring candidate rejected, got %d discovered", stats.Discovered)
	}
	if strings.Contains(out, "junk.example.com") {
		t.Error("Rejected candidate leaked into output")
	}
}

func TestDiscoveryForcedAcceptanceWhenScorerDown(t *testing.T) {
	searcher := &fakeSearcher{results: []core.SearchResult{
		{Title: "Only Option", URL: "https://only.example.com/", Snippet: "Has a snippet."},
		{Title: "Second", URL: "https://second.example.com/", Snippet: "Also has one."},
	}}
	discoverer := NewDiscoverer(searcher, nil, &fakeScorer{exhausted: true})

	content := "<h2>Primary Topic Heading</h2><p>One.</p><p>Two.</p>"
	engine := NewEngine(DefaultOptions(), allowAllValidator{}, discoverer, nil)
	out, stats, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if stats.Discovered != 1 {
		t.Fatalf("Expected exactly one forced acceptance, got %d", stats.Discovered)
	}
	if !strings.Contains(out, "only.example.com") {
		t.Error("Expected the first snippeted candidate to be forced in")
	}
}

func TestInjectInternalLinks(t *testing.T) {
	related := &fakeRelated{items: []RelatedItem{
		{Title: "Older Post A", Path: "/posts/older-a"},
		{Title: "Older Post B", Path: "/posts/older-b"},
		{Title: "Older Post C", Path: "/posts/older-c"},
	}}

	content := "<h2>T</h2><p>1.</p><p>2.</p><p>3.</p><p>4.</p><p>5.</p><p>6.</p>"
	engine := NewEngine(DefaultOptions(), allowAllValidator{}, nil, related)
	out, stats, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if stats.Injected == 0 {
		t.Fatal("Expected internal links injected into link-free content")
	}
	if stats.Internal > 4 {
		t.Errorf("Injection violated internal quota: %d", stats.Internal)
	}
	if !strings.Contains(out, "/posts/older-a") {
		t.Error("Expected first related item linked")
	}
	if !strings.Contains(out, "You might also like: ") {
		t.Error("Expected a rotation template in injected sentence")
	}
}

func TestInjectSkipsAlreadyLinkedPaths(t *testing.T) {
	related := &fakeRelated{items: []RelatedItem{
		{Title: "Already There", Path: "/posts/existing"},
		{Title: "Fresh", Path: "/posts/fresh"},
	}}

	content := `<h2>T</h2><p>Intro <a href="/posts/existing">existing</a>.</p><p>2.</p><p>3.</p><p>4.</p>`
	engine := NewEngine(DefaultOptions(), allowAllValidator{}, nil, related)
	out, _, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if strings.Count(out, "/posts/existing") != 1 {
		t.Error("Expected already-linked path skipped")
	}
	if !strings.Contains(out, "/posts/fresh") {
		t.Error("Expected unlinked related item injected")
	}
}

func TestInjectRespectsTotalBudget(t *testing.T) {
	related := &fakeRelated{items: []RelatedItem{
		{Title: "A", Path: "/a"}, {Title: "B", Path: "/b"},
		{Title: "C", Path: "/c"}, {Title: "D", Path: "/d"},
	}}

	// 3 internal + 3 external pre-existing: only one slot remains.
	content := buildContent(3, 3)
	engine := NewEngine(DefaultOptions(), allowAllValidator{}, nil, related)
	_, stats, err := engine.Process(context.Background(), content, "Technology")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if stats.Injected > 1 {
		t.Errorf("Expected at most 1 injection with 6 links present, got %d", stats.Injected)
	}
	if stats.Total() > 7 {
		t.Errorf("Total quota violated: %d", stats.Total())
	}
}

func TestRecords(t *testing.T) {
	content := `<p><a href="/in">in</a> and <a href="https://out.example.com/">out</a></p>`
	records, err := Records(content, "")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Kind != core.LinkInternal || records[1].Kind != core.LinkExternal {
		t.Errorf("Unexpected kinds: %+v", records)
	}
	if records[0].Position != 0 || records[1].Position != 1 {
		t.Errorf("Unexpected positions: %+v", records)
	}
}

func TestIsExternalClassification(t *testing.T) {
	tests := []struct {
		href, siteHost string
		want           bool
	}{
		{"/relative/path", "", false},
		{"#anchor", "", false},
		{"https://other.example.com/x", "", true},
		{"https://mysite.example.com/x", "mysite.example.com", false},
		{"https://mysite.example.com/x", "", true},
	}
	for _, tt := range tests {
		if got := isExternal(tt.href, tt.siteHost); got != tt.want {
			t.Errorf("isExternal(%q, %q) = %v, want %v", tt.href, tt.siteHost, got, tt.want)
		}
	}
}
