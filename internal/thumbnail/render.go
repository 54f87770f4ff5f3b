package thumbnail

import (
	"fmt"
	"strings"
)

// shapeDrawer renders one motif at a canvas position with a fill color.
type shapeDrawer func(x, y, size float64, fill string) string

// shapeLibrary maps motif names to vector shapes. Specification elements
// that match nothing here fall back to abstract shapes keyed by the
// composition style.
var shapeLibrary map[string]shapeDrawer

func init() {
	shapeLibrary = map[string]shapeDrawer{
		"phone": func(x, y, size float64, fill string) string {
			w, h := size*0.55, size
			return fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="%.1f" fill="%s" class="shape-phone"/>`,
				x-w/2, y-h/2, w, h, size*0.08, fill)
		},
		"clock": func(x, y, size float64, fill string) string {
			r := size / 2
			return fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="%s" stroke-width="%.1f" class="shape-clock"/><line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>`,
				x, y, r, fill, size*0.06, x, y, x, y-r*0.6, fill, size*0.06)
		},
		"scales": func(x, y, size float64, fill string) string {
			return fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f" class="shape-scales"/><line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="%.1f"/>`,
				x, y-size/2, x, y+size/2, fill, size*0.05, x-size/2, y-size/3, x+size/2, y-size/3, fill, size*0.05)
		},
		"coin": func(x, y, size float64, fill string) string {
			return fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" class="shape-coin"/><circle cx="%.1f" cy="%.1f" r="%.1f" fill="none" stroke="#ffffff" stroke-width="%.1f"/>`,
				x, y, size/2, fill, x, y, size*0.32, size*0.04)
		},
		"chart": func(x, y, size float64, fill string) string {
			return fmt.Sprintf(`<polyline points="%.1f,%.1f %.1f,%.1f %.1f,%.1f %.1f,%.1f" fill="none" stroke="%s" stroke-width="%.1f" class="shape-chart"/>`,
				x-size/2, y+size/3, x-size/6, y-size/6, x+size/6, y+size/6, x+size/2, y-size/2, fill, size*0.07)
		},
		"heart": func(x, y, size float64, fill string) string {
			s := size / 2
			return fmt.Sprintf(`<path d="M %.1f %.1f a %.1f %.1f 0 0 1 %.1f 0 a %.1f %.1f 0 0 1 %.1f 0 q 0 %.1f %.1f %.1f q %.1f %.1f %.1f %.1f z" fill="%s" class="shape-heart"/>`,
				x-s, y, s/2, s/2, s, s/2, s/2, s, s*0.8, -s, s*1.2, -s, -s*0.4, -s, -s*1.2, fill)
		},
		"leaf": func(x, y, size float64, fill string) string {
			return fmt.Sprintf(`<ellipse cx="%.1f" cy="%.1f" rx="%.1f" ry="%.1f" fill="%s" transform="rotate(40 %.1f %.1f)" class="shape-leaf"/>`,
				x, y, size/2, size/4, fill, x, y)
		},
		"car": func(x, y, size float64, fill string) string {
			return fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="%.1f" fill="%s" class="shape-car"/><circle cx="%.1f" cy="%.1f" r="%.1f" fill="#1f2937"/><circle cx="%.1f" cy="%.1f" r="%.1f" fill="#1f2937"/>`,
				x-size/2, y-size/6, size, size/3, size*0.08, fill, x-size/4, y+size/4, size*0.1, x+size/4, y+size/4, size*0.1)
		},
		"book": func(x, y, size float64, fill string) string {
			return fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" class="shape-book"/><line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#ffffff" stroke-width="%.1f"/>`,
				x-size/2.4, y-size/2, size/1.2, size, fill, x, y-size/2, x, y+size/2, size*0.04)
		},
		"cloud": func(x, y, size float64, fill string) string {
			return fmt.Sprintf(`<ellipse cx="%.1f" cy="%.1f" rx="%.1f" ry="%.1f" fill="%s" class="shape-cloud"/><circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`,
				x, y, size/1.6, size/3, fill, x-size/6, y-size/5, size/4, fill)
		},
	}
}

// abstractShapes provide the fallback for specification elements that
// match no library motif, keyed by composition style.
func abstractShape(composition string, x, y, size float64, fill string) string {
	switch composition {
	case "radial":
		return fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s" opacity="0.85" class="shape-abstract"/>`, x, y, size/2, fill)
	case "grid":
		return fmt.Sprintf(`<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" opacity="0.85" class="shape-abstract"/>`, x-size/2, y-size/2, size, size, fill)
	case "horizontal":
		return fmt.Sprintf(`<ellipse cx="%.1f" cy="%.1f" rx="%.1f" ry="%.1f" fill="%s" opacity="0.85" class="shape-abstract"/>`, x, y, size/1.5, size/3, fill)
	default: // diagonal
		return fmt.Sprintf(`<polygon points="%.1f,%.1f %.1f,%.1f %.1f,%.1f" fill="%s" opacity="0.85" class="shape-abstract"/>`,
			x, y-size/2, x+size/2, y+size/2, x-size/2, y+size/2, fill)
	}
}

// gradientAngle orients the background gradient per composition style.
func gradientVector(composition string) (x1, y1, x2, y2 string) {
	switch composition {
	case "radial", "grid":
		return "0%", "0%", "100%", "100%"
	case "horizontal":
		return "0%", "50%", "100%", "50%"
	default: // diagonal
		return "0%", "100%", "100%", "0%"
	}
}

// Render builds the SVG composition for a specification. The output is
// fully determined by the spec and dimensions.
func Render(spec VisualSpec, width, height int) string {
	bg1 := spec.Palette[0]
	bg2 := spec.Palette[len(spec.Palette)-1]
	accents := spec.Palette[1:]
	if len(accents) == 0 {
		accents = spec.Palette
	}

	x1, y1, x2, y2 := gradientVector(spec.Composition)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	fmt.Fprintf(&b, `<defs><linearGradient id="bg" x1="%s" y1="%s" x2="%s" y2="%s"><stop offset="0%%" stop-color="%s"/><stop offset="100%%" stop-color="%s"/></linearGradient></defs>`,
		x1, y1, x2, y2, bg1, bg2)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="url(#bg)"/>`, width, height)

	positions := elementPositions(spec.Composition, len(spec.Elements), float64(width), float64(height))
	size := float64(height) * 0.28

	for i, element := range spec.Elements {
		fill := accents[i%len(accents)]
		x, y := positions[i][0], positions[i][1]

		if drawer, ok := shapeLibrary[strings.ToLower(strings.TrimSpace(element))]; ok {
			b.WriteString(drawer(x, y, size, fill))
		} else {
			b.WriteString(abstractShape(spec.Composition, x, y, size, fill))
		}
	}

	b.WriteString(`</svg>`)
	return b.String()
}

// elementPositions lays out n elements across the canvas per composition.
func elementPositions(composition string, n int, w, h float64) [][2]float64 {
	if n == 0 {
		return nil
	}
	positions := make([][2]float64, n)
	for i := 0; i < n; i++ {
		frac := (float64(i) + 1) / (float64(n) + 1)
		switch composition {
		case "radial":
			positions[i] = [2]float64{w / 2, h * frac}
		case "horizontal":
			positions[i] = [2]float64{w * frac, h / 2}
		case "grid":
			col := i % 2
			row := i / 2
			positions[i] = [2]float64{w * (0.33 + 0.34*float64(col)), h * (0.3 + 0.25*float64(row))}
		default: // diagonal
			positions[i] = [2]float64{w * frac, h * (1 - frac)}
		}
	}
	return positions
}

// Placeholder renders the deterministic category-colored fallback tier.
// It carries no uniqueness guarantee beyond category-level distinctness.
func Placeholder(category string, width, height int) string {
	spec := DefaultSpec(category)
	initial := "?"
	if category != "" {
		initial = strings.ToUpper(category[:1])
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="%s"/>`, width, height, spec.Palette[0])
	fmt.Fprintf(&b, `<circle cx="%d" cy="%d" r="%d" fill="%s"/>`, width/2, height/2, height/3, spec.Palette[1])
	fmt.Fprintf(&b, `<text x="%d" y="%d" font-family="sans-serif" font-size="%d" fill="#ffffff" text-anchor="middle" dominant-baseline="central">%s</text>`,
		width/2, height/2, height/4, initial)
	b.WriteString(`</svg>`)
	return b.String()
}
