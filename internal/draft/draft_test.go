package draft

import (
	"context"
	"strings"
	"testing"

	"inkwell/internal/provider"
)

// fakeGenerator returns scripted responses keyed by request kind, in order.
type fakeGenerator struct {
	responses []fakeResponse
	requests  []provider.Request
}

type fakeResponse struct {
	text string
	err  error
}

func (f *fakeGenerator) Generate(ctx context.Context, req provider.Request) (*provider.Response, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return nil, &provider.ExhaustedError{Unreachable: true}
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &provider.Response{Text: r.text, Provider: "fake"}, nil
}

func validDraft(words int) string {
	para := strings.Repeat("Sentence words here now. ", words/4)
	return "<h2>Opening</h2><p>" + para + "</p><h2>Closing</h2><p>Done here.</p>"
}

func TestDraftHappyPath(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{text: validDraft(600)}}}
	stage := NewStage(gen, DefaultOptions())

	html, err := stage.Draft(context.Background(), "topic", "Technology", "")
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if !strings.Contains(html, "<h2>") {
		t.Error("Expected headings in draft output")
	}
	if len(gen.requests) != 1 {
		t.Errorf("Expected a single provider call, got %d", len(gen.requests))
	}
}

func TestDraftExpandsShortContent(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		{text: validDraft(100)}, // Under the minimum
		{text: validDraft(700)}, // Expansion result
	}}
	stage := NewStage(gen, DefaultOptions())

	html, err := stage.Draft(context.Background(), "topic", "Technology", "")
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if len(gen.requests) != 2 {
		t.Fatalf("Expected draft + expand calls, got %d", len(gen.requests))
	}
	if countContentWords(html) < 500 {
		t.Errorf("Expected expanded draft, got %d words", countContentWords(html))
	}
}

func TestDraftExpandFailureKeepsShortDraft(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{
		{text: validDraft(100)},
	}}
	stage := NewStage(gen, DefaultOptions())

	html, err := stage.Draft(context.Background(), "topic", "Technology", "")
	if err != nil {
		t.Fatalf("Expected short draft to survive expansion failure, got %v", err)
	}
	if html == "" {
		t.Error("Expected non-empty draft")
	}
}

func TestDraftTruncatesLongContent(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxWords = 50

	gen := &fakeGenerator{responses: []fakeResponse{{text: validDraft(400)}}}
	stage := NewStage(gen, opts)

	html, err := stage.Draft(context.Background(), "topic", "Technology", "")
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if got := countContentWords(html); got > 55 {
		t.Errorf("Expected truncation near 50 words, got %d", got)
	}
}

func TestDraftRejectsMalformedOutput(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{text: "just some plain text, no structure"}}}
	stage := NewStage(gen, DefaultOptions())

	if _, err := stage.Draft(context.Background(), "topic", "Technology", ""); err == nil {
		t.Fatal("Expected error for draft without structure")
	}
}

func TestDraftStripsCodeFences(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{text: "```html\n" + validDraft(600) + "\n```"}}}
	stage := NewStage(gen, DefaultOptions())

	html, err := stage.Draft(context.Background(), "topic", "Technology", "")
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if strings.Contains(html, "```") {
		t.Error("Expected code fences stripped")
	}
}

func TestOptimizeUsesProviderTOC(t *testing.T) {
	optimized := `{"html": "<h2 id=\"intro\">Intro</h2><p>Short and tidy.</p>", "toc": [{"level":2,"title":"Intro","anchor":"intro"}]}`
	gen := &fakeGenerator{responses: []fakeResponse{{text: optimized}}}
	stage := NewStage(gen, DefaultOptions())

	html, toc, err := stage.Optimize(context.Background(), "<h2>Intro</h2><p>messy</p>")
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if len(toc) != 1 || toc[0].Anchor != "intro" {
		t.Errorf("Unexpected TOC: %+v", toc)
	}
	if !strings.Contains(html, `id="intro"`) {
		t.Errorf("Expected anchor in optimized HTML, got %s", html)
	}
}

func TestOptimizeFallsBackToStructuralFix(t *testing.T) {
	gen := &fakeGenerator{} // Exhausted immediately
	stage := NewStage(gen, DefaultOptions())

	src := "<h2>My Section</h2><p>Some text here.</p>"
	html, toc, err := stage.Optimize(context.Background(), src)
	if err != nil {
		t.Fatalf("Expected graceful degradation, got %v", err)
	}
	if len(toc) != 1 || toc[0].Anchor != "my-section" {
		t.Errorf("Expected structural-fix TOC, got %+v", toc)
	}
	if !strings.Contains(html, `id="my-section"`) {
		t.Error("Expected structural-fix anchors in fallback output")
	}
}

func TestOptimizeGarbageJSONFallsBack(t *testing.T) {
	gen := &fakeGenerator{responses: []fakeResponse{{text: "not json at all"}}}
	stage := NewStage(gen, DefaultOptions())

	_, toc, err := stage.Optimize(context.Background(), "<h2>Header</h2><p>Body text.</p>")
	if err != nil {
		t.Fatalf("Expected fallback, got %v", err)
	}
	if len(toc) != 1 {
		t.Errorf("Expected TOC from structural fix, got %+v", toc)
	}
}
