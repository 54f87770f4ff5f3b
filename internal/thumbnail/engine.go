package thumbnail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"inkwell/internal/core"
	"inkwell/internal/logger"
	"inkwell/internal/provider"
)

// SignatureStore is the persistence surface the uniqueness check runs
// against. Signatures of every accepted thumbnail are recorded so later
// runs compare against the full corpus.
type SignatureStore interface {
	Signatures(ctx context.Context) ([]core.ThumbnailSignature, error)
	SaveSignature(ctx context.Context, articleID string, sig core.ThumbnailSignature) error
}

// Options configures the thumbnail engine.
type Options struct {
	OutputDir           string
	MaxAttempts         int     // Render retries before escalating to the image tier
	SimilarityThreshold float64 // Percent above which a render is a duplicate
	Width               int
	Height              int
}

// DefaultOptions returns the standard engine configuration.
func DefaultOptions() Options {
	return Options{
		OutputDir:           "thumbnails",
		MaxAttempts:         3,
		SimilarityThreshold: 80.0,
		Width:               1200,
		Height:              630,
	}
}

// Engine produces one thumbnail per article through a tiered strategy:
// provider-specified vector render, retried with variation when too close
// to a prior thumbnail, then a provider-generated raster image, then a
// deterministic category placeholder. The engine never fails a run; the
// worst case is a placeholder.
type Engine struct {
	gen   provider.Generator
	store SignatureStore
	opts  Options
}

// NewEngine creates a thumbnail engine. gen may be nil, which skips the
// provider tiers and goes straight to deterministic rendering.
func NewEngine(gen provider.Generator, store SignatureStore, opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = 80.0
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1200, 630
	}
	return &Engine{gen: gen, store: store, opts: opts}
}

// Generate produces the thumbnail for an article and returns the file
// path. Errors are confined to filesystem failures on the final tier;
// every upstream failure degrades to the next tier instead.
func (e *Engine) Generate(ctx context.Context, article *core.Article) (string, error) {
	if err := os.MkdirAll(e.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating thumbnail dir: %w", err)
	}

	excerpt, motifs := Analyze(article.Title, stripTags(article.Content))
	spec, specErr := e.buildSpec(ctx, article, excerpt, motifs)

	// An exhausted chain cannot produce varied retries either, so the
	// vector tier is skipped entirely and the raster tier takes over.
	if provider.IsExhausted(specErr) {
		logger.Warn("Provider chain exhausted for thumbnail spec, skipping vector tier", "article", article.ID)
	} else {
		prior, err := e.priorSignatures(ctx)
		if err != nil {
			logger.Warn("Loading prior thumbnail signatures failed, uniqueness check degraded", "error", err.Error())
		}

		if path, ok := e.renderUnique(ctx, article, spec, prior); ok {
			return path, nil
		}
	}

	if path, ok := e.providerImage(ctx, article); ok {
		return path, nil
	}

	logger.Warn("All thumbnail tiers exhausted, using category placeholder", "article", article.ID)
	svg := Placeholder(article.Category, e.opts.Width, e.opts.Height)
	path := filepath.Join(e.opts.OutputDir, article.Slug+".svg")
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return "", fmt.Errorf("writing placeholder thumbnail: %w", err)
	}
	return path, nil
}

// buildSpec asks the provider chain for a visual specification. Malformed
// or partial responses degrade to the category default enriched with the
// analyzed motifs; a chain-exhaustion error is returned alongside the
// default so the caller can skip the vector tier.
func (e *Engine) buildSpec(ctx context.Context, article *core.Article, excerpt string, motifs []string) (VisualSpec, error) {
	fallback := DefaultSpec(article.Category)
	if len(motifs) > 0 {
		fallback.Elements = motifs
	}

	if e.gen == nil {
		return fallback, nil
	}

	resp, err := e.gen.Generate(ctx, provider.Request{
		Kind:   provider.KindJSON,
		System: specSystemInstruction,
		User:   buildSpecPrompt(article.Title, article.Category, excerpt, motifs),
	})
	if provider.IsExhausted(err) {
		return fallback, err
	}
	if err != nil {
		logger.Warn("Thumbnail spec generation failed, using category default", "error", err.Error())
		return fallback, nil
	}

	spec := ParseSpec(resp.Text, article.Category)
	if len(spec.Elements) == 1 && spec.Elements[0] == "abstract" && len(motifs) > 0 {
		spec.Elements = motifs
	}
	return spec, nil
}

// renderUnique renders the spec, comparing each attempt's signature
// against the prior corpus. Retries request a fresh specification so the
// next render actually differs.
func (e *Engine) renderUnique(ctx context.Context, article *core.Article, spec VisualSpec, prior []core.ThumbnailSignature) (string, bool) {
	for attempt := 0; attempt < e.opts.MaxAttempts; attempt++ {
		candidate := spec
		if attempt > 0 {
			candidate = e.respec(ctx, article, spec, attempt)
		}
		svg := Render(candidate, e.opts.Width, e.opts.Height)
		sig := Signature(svg)

		if score, dup := e.tooSimilar(sig, prior); dup {
			logger.Info("Thumbnail too similar to prior render, retrying with variation",
				"article", article.ID, "attempt", attempt+1, "score", score)
			continue
		}

		path := filepath.Join(e.opts.OutputDir, article.Slug+".svg")
		if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
			logger.Error("Writing thumbnail failed", err, "path", path)
			return "", false
		}
		e.recordSignature(ctx, article.ID, sig)
		return path, true
	}
	return "", false
}

// providerImage is the raster fallback tier.
func (e *Engine) providerImage(ctx context.Context, article *core.Article) (string, bool) {
	if e.gen == nil {
		return "", false
	}

	resp, err := e.gen.Generate(ctx, provider.Request{
		Kind: provider.KindImage,
		User: buildImagePrompt(article.Title, article.Category),
		Size: fmt.Sprintf("%dx%d", e.opts.Width, e.opts.Height),
	})
	if err != nil {
		logger.Warn("Provider image tier failed", "article", article.ID, "error", err.Error())
		return "", false
	}

	path := filepath.Join(e.opts.OutputDir, article.Slug+".png")
	if err := os.WriteFile(path, resp.Image, 0o644); err != nil {
		logger.Error("Writing provider image failed", err, "path", path)
		return "", false
	}
	return path, true
}

// tooSimilar reports the highest similarity score against the prior
// corpus and whether it crosses the duplicate threshold.
func (e *Engine) tooSimilar(sig core.ThumbnailSignature, prior []core.ThumbnailSignature) (float64, bool) {
	highest := 0.0
	for _, p := range prior {
		if score := Similarity(sig, p); score > highest {
			highest = score
		}
	}
	return highest, highest > e.opts.SimilarityThreshold
}

func (e *Engine) priorSignatures(ctx context.Context) ([]core.ThumbnailSignature, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.Signatures(ctx)
}

func (e *Engine) recordSignature(ctx context.Context, articleID string, sig core.ThumbnailSignature) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveSignature(ctx, articleID, sig); err != nil {
		logger.Warn("Saving thumbnail signature failed", "article", articleID, "error", err.Error())
	}
}

// respec asks the provider chain for a deliberately different
// specification for a retry attempt. Without a provider, or when the
// provider fails or repeats itself, the base spec is varied
// deterministically instead.
func (e *Engine) respec(ctx context.Context, article *core.Article, base VisualSpec, attempt int) VisualSpec {
	if e.gen != nil {
		resp, err := e.gen.Generate(ctx, provider.Request{
			Kind:   provider.KindJSON,
			System: specSystemInstruction,
			User: fmt.Sprintf("The previous design for the article %q was too similar to an existing thumbnail. Produce a clearly different specification: new palette, different composition, different elements. Category: %s.",
				article.Title, article.Category),
		})
		if err == nil {
			fresh := ParseSpec(resp.Text, article.Category)
			if specKey(fresh) != specKey(base) {
				return fresh
			}
		}
	}
	return varySpec(base, attempt)
}

func specKey(spec VisualSpec) string {
	return strings.Join(spec.Palette, ",") + "/" + spec.Composition + "/" + strings.Join(spec.Elements, ",")
}

var compositionCycle = []string{"diagonal", "radial", "horizontal", "grid"}

// varySpec produces a deterministic variation of the spec for retry
// attempt n. Attempt 0 is the spec itself; later attempts shift the
// palette hues, advance the composition, and swap an element for an
// abstract shape so the signature changes on every axis.
func varySpec(spec VisualSpec, attempt int) VisualSpec {
	if attempt == 0 {
		return spec
	}

	varied := spec
	varied.Palette = make([]string, len(spec.Palette))
	for i, c := range spec.Palette {
		varied.Palette[i] = shiftColor(c, attempt*47)
	}

	base := 0
	for i, c := range compositionCycle {
		if c == spec.Composition {
			base = i
			break
		}
	}
	varied.Composition = compositionCycle[(base+attempt)%len(compositionCycle)]

	if n := len(spec.Elements); n > 0 {
		rotated := make([]string, 0, n)
		for i := 0; i < n; i++ {
			rotated = append(rotated, spec.Elements[(i+attempt)%n])
		}
		rotated[n-1] = "abstract"
		varied.Elements = rotated
	}
	return varied
}

// shiftColor moves each channel of a #rrggbb color by delta, wrapping.
func shiftColor(hex string, delta int) string {
	if len(hex) != 7 || hex[0] != '#' {
		return hex
	}
	var r, g, b int
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return hex
	}
	return fmt.Sprintf("#%02x%02x%02x", (r+delta)%256, (g+delta)%256, (b+delta)%256)
}

const specSystemInstruction = `You design minimal vector thumbnail compositions for articles. Respond with JSON only, no markdown fences, in this shape:
{"palette": ["#0f172a", "#3b82f6", "#22d3ee"], "composition": "diagonal", "mood": "clean", "elements": ["chart", "cloud"]}
palette is 2-4 hex colors with the background first. composition is one of radial, diagonal, horizontal, grid. elements is 1-5 short nouns.`

func buildSpecPrompt(title, category, excerpt string, motifs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Article title: %s\nCategory: %s\n", title, category)
	if len(motifs) > 0 {
		fmt.Fprintf(&b, "Detected motifs: %s\n", strings.Join(motifs, ", "))
	}
	if excerpt != "" {
		fmt.Fprintf(&b, "\nExcerpt:\n%s\n", excerpt)
	}
	b.WriteString("\nDesign the thumbnail specification.")
	return b.String()
}

func buildImagePrompt(title, category string) string {
	return fmt.Sprintf("Minimal flat-design blog thumbnail for an article titled %q in the %s category. Clean geometric shapes, two or three colors, no text.", title, category)
}

var tagRegex = regexp.MustCompile(`<[^>]*>`)

// stripTags flattens HTML to plain text for content analysis. Precise
// extraction is not needed here, keyword presence is.
func stripTags(html string) string {
	return strings.TrimSpace(tagRegex.ReplaceAllString(html, " "))
}
