package thumbnail

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"inkwell/internal/core"
	"inkwell/internal/textutil"
)

var (
	fillRegex   = regexp.MustCompile(`fill="(#[0-9a-fA-F]{6})"`)
	strokeRegex = regexp.MustCompile(`stroke="(#[0-9a-fA-F]{6})"`)
	shapeRegex  = regexp.MustCompile(`class="shape-([a-z]+)"`)
	coordRegex  = regexp.MustCompile(`\b(?:cx|x1|points|x)="`)
)

// Signature extracts the visual features of a rendered SVG for similarity
// comparison. Two renders of the same spec produce identical signatures.
func Signature(svg string) core.ThumbnailSignature {
	sig := core.ThumbnailSignature{
		ShapeCounts: make(map[string]int),
	}

	sig.Fills = uniqueSorted(fillRegex.FindAllStringSubmatch(svg, -1))
	sig.Strokes = uniqueSorted(strokeRegex.FindAllStringSubmatch(svg, -1))

	for _, m := range shapeRegex.FindAllStringSubmatch(svg, -1) {
		sig.ShapeCounts[m[1]]++
	}

	sig.Positions = len(coordRegex.FindAllString(svg, -1))
	return sig
}

// uniqueSorted collapses submatch color captures into a sorted, deduplicated
// list so signature comparison is order-independent.
func uniqueSorted(matches [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		color := strings.ToLower(m[1])
		if !seen[color] {
			seen[color] = true
			out = append(out, color)
		}
	}
	sort.Strings(out)
	return out
}

// shapeHistogram serializes the shape counts into a stable comparable
// string.
func shapeHistogram(sig core.ThumbnailSignature) string {
	shapes := make([]string, 0, len(sig.ShapeCounts))
	for name, count := range sig.ShapeCounts {
		shapes = append(shapes, fmt.Sprintf("%s:%d", name, count))
	}
	sort.Strings(shapes)
	return strings.Join(shapes, ",")
}

// Component weights for the overall similarity score. Colors and shapes
// carry the comparison; stroke palette and layout density refine it.
const (
	weightFills     = 0.35
	weightShapes    = 0.35
	weightStrokes   = 0.15
	weightPositions = 0.15
)

// Similarity scores two signatures on a 0-100 scale. Each feature is
// compared with the same character ratio the topic deduplication pass
// uses, then the components are blended. Comparing features separately
// keeps shared formatting from inflating the score between genuinely
// different renders.
func Similarity(a, b core.ThumbnailSignature) float64 {
	fills := textutil.SimilarityRatio(strings.Join(a.Fills, ","), strings.Join(b.Fills, ","))
	strokes := textutil.SimilarityRatio(strings.Join(a.Strokes, ","), strings.Join(b.Strokes, ","))
	shapes := textutil.SimilarityRatio(shapeHistogram(a), shapeHistogram(b))
	positions := positionRatio(a.Positions, b.Positions)

	return weightFills*fills + weightShapes*shapes + weightStrokes*strokes + weightPositions*positions
}

// positionRatio scores layout density agreement on a 0-100 scale.
func positionRatio(a, b int) float64 {
	if a == b {
		return 100
	}
	if a == 0 || b == 0 {
		return 0
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi) * 100
}
