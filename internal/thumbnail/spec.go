// Package thumbnail derives a visual specification from article content,
// renders a vector composition, and rejects near-duplicate renders against
// the corpus of prior thumbnails.
package thumbnail

import (
	"encoding/json"
	"regexp"
	"strings"
)

// VisualSpec describes one thumbnail composition. Every field has a
// default so a malformed or partial provider response degrades to a
// renderable spec instead of crashing the render stage.
type VisualSpec struct {
	Palette     []string `json:"palette"`     // Hex colors, background first
	Composition string   `json:"composition"` // "radial", "diagonal", "horizontal", "grid"
	Mood        string   `json:"mood"`
	Elements    []string `json:"elements"` // 3-5 topic-relevant visual elements
}

// categoryPalettes seed the default spec per category.
var categoryPalettes = map[string][]string{
	"Technology": {"#0f172a", "#3b82f6", "#22d3ee", "#e2e8f0"},
	"Health":     {"#064e3b", "#34d399", "#a7f3d0", "#f0fdf4"},
	"Finance":    {"#1e1b4b", "#f59e0b", "#fde68a", "#eef2ff"},
	"Lifestyle":  {"#4a044e", "#ec4899", "#f9a8d4", "#fdf4ff"},
}

var validCompositions = map[string]bool{
	"radial": true, "diagonal": true, "horizontal": true, "grid": true,
}

// DefaultSpec returns the fallback specification for a category.
func DefaultSpec(category string) VisualSpec {
	palette, ok := categoryPalettes[category]
	if !ok {
		palette = categoryPalettes["Technology"]
	}
	return VisualSpec{
		Palette:     palette,
		Composition: "diagonal",
		Mood:        "clean",
		Elements:    []string{"abstract"},
	}
}

// ParseSpec decodes a provider JSON response into a VisualSpec, filling
// every missing or invalid field from the category default.
func ParseSpec(text, category string) VisualSpec {
	spec := DefaultSpec(category)

	var parsed VisualSpec
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return spec
	}

	if len(parsed.Palette) >= 2 {
		valid := true
		for _, c := range parsed.Palette {
			if !hexColorRegex.MatchString(c) {
				valid = false
				break
			}
		}
		if valid {
			spec.Palette = parsed.Palette
		}
	}
	if validCompositions[strings.ToLower(parsed.Composition)] {
		spec.Composition = strings.ToLower(parsed.Composition)
	}
	if parsed.Mood != "" {
		spec.Mood = parsed.Mood
	}
	if len(parsed.Elements) > 0 {
		elements := parsed.Elements
		if len(elements) > 5 {
			elements = elements[:5]
		}
		spec.Elements = elements
	}

	return spec
}

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// motifTriggers maps domain keywords in content to visual motifs the shape
// library knows how to draw.
var motifTriggers = []struct {
	pattern *regexp.Regexp
	motif   string
}{
	{regexp.MustCompile(`(?i)\b(phone|smartphone|mobile|app)\b`), "phone"},
	{regexp.MustCompile(`(?i)\b(clock|time|schedule|deadline|hour)\b`), "clock"},
	{regexp.MustCompile(`(?i)\b(scales?|justice|law|legal|balance)\b`), "scales"},
	{regexp.MustCompile(`(?i)\b(money|price|cost|invest|budget|coin)\b`), "coin"},
	{regexp.MustCompile(`(?i)\b(chart|growth|market|trend|data)\b`), "chart"},
	{regexp.MustCompile(`(?i)\b(health|heart|fitness|exercise)\b`), "heart"},
	{regexp.MustCompile(`(?i)\b(plant|garden|nature|green|leaf)\b`), "leaf"},
	{regexp.MustCompile(`(?i)\b(car|vehicle|driving|electric vehicle|ev)\b`), "car"},
	{regexp.MustCompile(`(?i)\b(book|read|learn|study|course)\b`), "book"},
	{regexp.MustCompile(`(?i)\b(cloud|server|network|internet)\b`), "cloud"},
}

const excerptLimit = 2000

// Analyze extracts a plain-text excerpt and the motif elements triggered
// by domain keywords in the content.
func Analyze(title, plainText string) (excerpt string, motifs []string) {
	excerpt = strings.TrimSpace(plainText)
	if len(excerpt) > excerptLimit {
		excerpt = excerpt[:excerptLimit]
	}

	haystack := title + " " + excerpt
	seen := make(map[string]bool)
	for _, trigger := range motifTriggers {
		if trigger.pattern.MatchString(haystack) && !seen[trigger.motif] {
			seen[trigger.motif] = true
			motifs = append(motifs, trigger.motif)
		}
	}
	return excerpt, motifs
}
