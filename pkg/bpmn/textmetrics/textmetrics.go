// Package textmetrics estimates how tall a task box must be to hold its label.
//
// The estimate is a word-wrap approximation on character counts, not real
// text shaping: it only drives box sizing. [CharWidthFor] calibrates the
// average character width against the Go Regular font so the estimate tracks
// what BPMN viewers render at a given font size.
package textmetrics

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// DefaultCharWidth is the average character width in pixels used when no
// calibrated width is available. It matches a 12px sans-serif label.
const DefaultCharWidth = 6.5

// Metrics configures [EstimateHeight].
type Metrics struct {
	CharsPerLine      int     `toml:"chars_per_line" json:"chars_per_line"` // upper bound on characters per line
	LineHeight        float64 `toml:"line_height" json:"line_height"`       // pixels per wrapped line
	PaddingVertical   float64 `toml:"padding_vertical" json:"padding_vertical"`
	PaddingHorizontal float64 `toml:"padding_horizontal" json:"padding_horizontal"`
	CharWidth         float64 `toml:"char_width" json:"char_width"` // average character advance in pixels
	MinHeight         float64 `toml:"min_height" json:"min_height"`
	MaxHeight         float64 `toml:"max_height" json:"max_height"`
}

// LineBudget returns the number of characters that fit on one line of a box
// of the given width. The result is at least 1.
func (m Metrics) LineBudget(boxWidth float64) int {
	cw := m.CharWidth
	if cw <= 0 {
		cw = DefaultCharWidth
	}
	byWidth := int(math.Floor((boxWidth - 2*m.PaddingHorizontal) / cw))
	budget := byWidth
	if m.CharsPerLine > 0 && m.CharsPerLine < budget {
		budget = m.CharsPerLine
	}
	return max(1, budget)
}

// EstimateHeight returns the box height needed for text at boxWidth, clamped
// to [MinHeight, MaxHeight]. Blank text yields MinHeight.
func EstimateHeight(text string, boxWidth float64, m Metrics) float64 {
	if strings.TrimSpace(text) == "" {
		return m.MinHeight
	}
	lines := CountLines(text, m.LineBudget(boxWidth))
	h := float64(lines)*m.LineHeight + 2*m.PaddingVertical
	if m.MaxHeight > 0 {
		h = min(h, m.MaxHeight)
	}
	return max(h, m.MinHeight)
}

// CountLines greedily wraps text into lines of at most budget characters and
// returns the line count. Explicit newlines start a new line and words longer
// than the budget are broken across as many lines as they need.
func CountLines(text string, budget int) int {
	budget = max(1, budget)
	total := 0
	for _, para := range strings.Split(strings.TrimSpace(text), "\n") {
		lines, cur := 0, 0
		for _, w := range strings.Fields(para) {
			n := utf8.RuneCountInString(w)
			switch {
			case cur > 0 && cur+1+n <= budget:
				cur += 1 + n
			case n <= budget:
				lines++
				cur = n
			default:
				// Hard-break the long word; its tail stays open on the last line.
				full := (n - 1) / budget
				lines += full + 1
				cur = n - full*budget
			}
		}
		total += max(1, lines)
	}
	return total
}

// =============================================================================
// Font calibration
// =============================================================================

// sample mixes lower-case, capitals and digits in roughly label proportions.
const sample = "Valider la demande du client 2024 et Envoyer"

var (
	fontOnce sync.Once
	goFont   *opentype.Font
	fontErr  error
)

// CharWidthFor returns the average character advance of Go Regular at the
// given font size in pixels (72 DPI). It falls back to a proportional
// estimate if the embedded font cannot be parsed.
func CharWidthFor(fontSize float64) float64 {
	if fontSize <= 0 {
		return DefaultCharWidth
	}
	fontOnce.Do(func() {
		goFont, fontErr = opentype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return fontSize * 0.55
	}
	face, err := opentype.NewFace(goFont, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return fontSize * 0.55
	}
	defer face.Close()

	adv := font.MeasureString(face, sample)
	return float64(adv) / 64 / float64(utf8.RuneCountInString(sample))
}
