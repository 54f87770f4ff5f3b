package thumbnail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inkwell/internal/core"
	"inkwell/internal/provider"
)

type fakeGenerator struct {
	responses map[provider.RequestKind]*provider.Response
	errs      map[provider.RequestKind]error
	calls     []provider.RequestKind
}

func (f *fakeGenerator) Generate(_ context.Context, req provider.Request) (*provider.Response, error) {
	f.calls = append(f.calls, req.Kind)
	if err, ok := f.errs[req.Kind]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.Kind]; ok {
		return resp, nil
	}
	return nil, &provider.ExhaustedError{Attempts: 1, Unreachable: true}
}

type memoryStore struct {
	sigs  []core.ThumbnailSignature
	saved int
}

func (m *memoryStore) Signatures(context.Context) ([]core.ThumbnailSignature, error) {
	return m.sigs, nil
}

func (m *memoryStore) SaveSignature(_ context.Context, _ string, sig core.ThumbnailSignature) error {
	m.sigs = append(m.sigs, sig)
	m.saved++
	return nil
}

func testOptions(t *testing.T) Options {
	t.Helper()
	opts := DefaultOptions()
	opts.OutputDir = t.TempDir()
	return opts
}

// fallbackSpecFor mirrors the spec the engine falls back to when no
// provider specification is available.
func fallbackSpecFor(article *core.Article) VisualSpec {
	spec := DefaultSpec(article.Category)
	if _, motifs := Analyze(article.Title, stripTags(article.Content)); len(motifs) > 0 {
		spec.Elements = motifs
	}
	return spec
}

func testArticle() *core.Article {
	return &core.Article{
		ID:       "a1",
		Title:    "How Smartphone Apps Change Health Tracking",
		Slug:     "smartphone-apps-health-tracking",
		Content:  "<h1>How Smartphone Apps Change Health Tracking</h1><p>Phone sensors and fitness data reshape exercise habits.</p>",
		Category: "Health",
	}
}

func TestAnalyzeDetectsMotifs(t *testing.T) {
	excerpt, motifs := Analyze("Smartphone fitness", "Tracking exercise with your phone and heart rate readings over time.")
	if excerpt == "" {
		t.Fatal("expected non-empty excerpt")
	}

	want := map[string]bool{"phone": true, "heart": true, "clock": true}
	for _, m := range motifs {
		if !want[m] {
			t.Errorf("unexpected motif %q", m)
		}
		delete(want, m)
	}
	for m := range want {
		t.Errorf("missing motif %q", m)
	}
}

func TestAnalyzeTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("x", 5000)
	excerpt, _ := Analyze("t", long)
	if len(excerpt) != excerptLimit {
		t.Fatalf("excerpt length = %d, want %d", len(excerpt), excerptLimit)
	}
}

func TestParseSpecValid(t *testing.T) {
	spec := ParseSpec(`{"palette":["#112233","#445566"],"composition":"GRID","mood":"bold","elements":["chart","coin"]}`, "Finance")
	if len(spec.Palette) != 2 || spec.Palette[0] != "#112233" {
		t.Errorf("palette = %v", spec.Palette)
	}
	if spec.Composition != "grid" {
		t.Errorf("composition = %q, want grid", spec.Composition)
	}
	if len(spec.Elements) != 2 {
		t.Errorf("elements = %v", spec.Elements)
	}
}

func TestParseSpecMalformedFallsBack(t *testing.T) {
	for _, input := range []string{"not json", `{"palette":["red","blue"],"composition":"spiral"}`, `{}`} {
		spec := ParseSpec(input, "Finance")
		if len(spec.Palette) != len(categoryPalettes["Finance"]) || spec.Palette[0] != categoryPalettes["Finance"][0] {
			t.Errorf("input %q: palette not defaulted: %v", input, spec.Palette)
		}
		if spec.Composition != "diagonal" {
			t.Errorf("input %q: composition = %q", input, spec.Composition)
		}
	}
}

func TestParseSpecCapsElements(t *testing.T) {
	spec := ParseSpec(`{"elements":["a","b","c","d","e","f","g"]}`, "Technology")
	if len(spec.Elements) != 5 {
		t.Fatalf("elements capped at %d, want 5", len(spec.Elements))
	}
}

func TestRenderDeterministic(t *testing.T) {
	spec := DefaultSpec("Technology")
	spec.Elements = []string{"phone", "cloud"}
	if Render(spec, 1200, 630) != Render(spec, 1200, 630) {
		t.Fatal("same spec produced different renders")
	}
}

func TestRenderUsesShapeLibrary(t *testing.T) {
	spec := DefaultSpec("Technology")
	spec.Elements = []string{"chart", "unknown-motif"}
	svg := Render(spec, 1200, 630)
	if !strings.Contains(svg, `class="shape-chart"`) {
		t.Error("chart motif not rendered from the shape library")
	}
	if !strings.Contains(svg, `class="shape-abstract"`) {
		t.Error("unknown element did not fall back to an abstract shape")
	}
}

func TestSignatureDistinguishesSpecs(t *testing.T) {
	tech := DefaultSpec("Technology")
	tech.Elements = []string{"phone", "cloud"}
	health := DefaultSpec("Health")
	health.Elements = []string{"heart", "leaf"}

	a := Signature(Render(tech, 1200, 630))
	b := Signature(Render(health, 1200, 630))

	if Similarity(a, a) != 100.0 {
		t.Errorf("self-similarity = %f, want 100", Similarity(a, a))
	}
	if score := Similarity(a, b); score > 80.0 {
		t.Errorf("distinct specs scored %f, want <= 80", score)
	}
}

func TestSignatureExtractsFeatures(t *testing.T) {
	spec := DefaultSpec("Finance")
	spec.Elements = []string{"coin", "coin", "chart"}
	sig := Signature(Render(spec, 1200, 630))

	if sig.ShapeCounts["coin"] != 2 {
		t.Errorf("coin count = %d, want 2", sig.ShapeCounts["coin"])
	}
	if sig.ShapeCounts["chart"] != 1 {
		t.Errorf("chart count = %d, want 1", sig.ShapeCounts["chart"])
	}
	if len(sig.Fills) == 0 {
		t.Error("no fills extracted")
	}
	if sig.Positions == 0 {
		t.Error("no positions counted")
	}
}

func TestGenerateFirstAttemptUnique(t *testing.T) {
	store := &memoryStore{}
	gen := &fakeGenerator{responses: map[provider.RequestKind]*provider.Response{
		provider.KindJSON: {Text: `{"palette":["#112233","#445566"],"composition":"radial","elements":["heart"]}`},
	}}
	engine := NewEngine(gen, store, testOptions(t))

	path, err := engine.Generate(context.Background(), testArticle())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Ext(path) != ".svg" {
		t.Errorf("path = %q, want .svg", path)
	}
	if store.saved != 1 {
		t.Errorf("signatures saved = %d, want 1", store.saved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("thumbnail file missing: %v", err)
	}
}

func TestGenerateRetriesOnSimilarity(t *testing.T) {
	article := testArticle()
	spec := fallbackSpecFor(article)

	// Seed the corpus with the exact first-attempt render so attempt 0 is
	// flagged as a duplicate and the varied second attempt lands.
	store := &memoryStore{sigs: []core.ThumbnailSignature{
		Signature(Render(spec, 1200, 630)),
	}}
	engine := NewEngine(nil, store, testOptions(t))

	path, err := engine.Generate(context.Background(), article)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if path == "" {
		t.Fatal("expected a rendered path")
	}

	accepted := store.sigs[len(store.sigs)-1]
	if Similarity(accepted, store.sigs[0]) > 80.0 {
		t.Error("accepted render still too similar to the seeded signature")
	}
}

func TestGenerateImageTierAfterExhaustedRetries(t *testing.T) {
	article := testArticle()
	specJSON := `{"palette":["#112233","#445566"],"composition":"radial","elements":["heart"]}`
	spec := ParseSpec(specJSON, article.Category)

	// Seed every variation the retry loop can produce so the vector tier
	// runs out of distinct renders and the raster tier takes over.
	store := &memoryStore{}
	for attempt := 0; attempt < 3; attempt++ {
		store.sigs = append(store.sigs, Signature(Render(varySpec(spec, attempt), 1200, 630)))
	}

	gen := &fakeGenerator{responses: map[provider.RequestKind]*provider.Response{
		provider.KindJSON:  {Text: specJSON},
		provider.KindImage: {Image: []byte{0x89, 'P', 'N', 'G'}},
	}}
	engine := NewEngine(gen, store, testOptions(t))

	path, err := engine.Generate(context.Background(), article)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Ext(path) != ".png" {
		t.Errorf("path = %q, want .png from the image tier", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || len(data) != 4 {
		t.Errorf("image payload not written: %v", err)
	}
}

func TestGenerateSkipsVectorTierWhenChainExhausted(t *testing.T) {
	article := testArticle()

	store := &memoryStore{}
	gen := &fakeGenerator{
		errs:      map[provider.RequestKind]error{provider.KindJSON: &provider.ExhaustedError{Attempts: 2, Unreachable: true}},
		responses: map[provider.RequestKind]*provider.Response{provider.KindImage: {Image: []byte{0x89, 'P', 'N', 'G'}}},
	}
	engine := NewEngine(gen, store, testOptions(t))

	path, err := engine.Generate(context.Background(), article)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if filepath.Ext(path) != ".png" {
		t.Errorf("path = %q, want the raster tier when the chain is exhausted", path)
	}
	if store.saved != 0 {
		t.Errorf("signatures saved = %d, want 0 when the vector tier is skipped", store.saved)
	}
}

func TestGeneratePlaceholderWhenEverythingFails(t *testing.T) {
	article := testArticle()

	store := &memoryStore{}
	gen := &fakeGenerator{errs: map[provider.RequestKind]error{
		provider.KindJSON:  &provider.ExhaustedError{Attempts: 2, Unreachable: true},
		provider.KindImage: &provider.ExhaustedError{Attempts: 2, Unreachable: true},
	}}
	engine := NewEngine(gen, store, testOptions(t))

	path, err := engine.Generate(context.Background(), article)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("placeholder not written: %v", err)
	}
	if string(data) != Placeholder(article.Category, 1200, 630) {
		t.Error("exhausted chain did not produce the category placeholder")
	}
}

func TestVarySpecChangesRender(t *testing.T) {
	spec := DefaultSpec("Technology")
	spec.Elements = []string{"phone"}

	base := Render(spec, 1200, 630)
	for attempt := 1; attempt < 3; attempt++ {
		if Render(varySpec(spec, attempt), 1200, 630) == base {
			t.Errorf("attempt %d produced an identical render", attempt)
		}
	}
}

func TestPlaceholderDeterministicPerCategory(t *testing.T) {
	if Placeholder("Finance", 1200, 630) != Placeholder("Finance", 1200, 630) {
		t.Error("placeholder not deterministic")
	}
	if Placeholder("Finance", 1200, 630) == Placeholder("Health", 1200, 630) {
		t.Error("categories share a placeholder")
	}
}
