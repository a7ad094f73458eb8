package classify

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hyperifyio/gorestruct/internal/page"
)

// FontRule maps font properties onto a label. Family matches as a
// case-insensitive substring of the block's font name; Min/MaxSize bound the
// point size inclusively, with zero meaning unbounded. Rules are applied in
// order and the first match wins, so broader rules belong last.
type FontRule struct {
	Family  string  `yaml:"family" json:"family"`
	MinSize float64 `yaml:"minSize" json:"minSize"`
	MaxSize float64 `yaml:"maxSize" json:"maxSize"`
	Label   Label   `yaml:"label" json:"label"`
}

func (r FontRule) matches(b page.Block) bool {
	if r.Family != "" && !strings.Contains(strings.ToLower(b.FontName), strings.ToLower(r.Family)) {
		return false
	}
	if b.FontSize == 0 {
		return r.MinSize == 0 && r.MaxSize == 0 && r.Family != ""
	}
	if r.MinSize > 0 && b.FontSize < r.MinSize {
		return false
	}
	if r.MaxSize > 0 && b.FontSize > r.MaxSize {
		return false
	}
	return true
}

// Heuristic labels blocks with deterministic layout and text rules. It never
// abstains and never fails, which is what makes it a safe floor under the
// model path.
type Heuristic struct {
	// FontRules are publisher-specific absolute rules, tried before any
	// built-in refinement. Usually empty; relative size bands then apply.
	FontRules []FontRule
	// FallbackLabel is reported for blocks without text. Defaults to Body.
	FallbackLabel Label
}

// NewHeuristic returns a heuristic classifier with the built-in rules only.
func NewHeuristic() *Heuristic {
	return &Heuristic{FallbackLabel: Body}
}

// Classify labels every block. Confidence is 1.0 for rule hits, 0.8 for the
// all-caps refinement and 0 for blocks without text.
func (h *Heuristic) Classify(blocks []page.Block) []Prediction {
	body := bodyFontSize(blocks)
	out := make([]Prediction, len(blocks))
	for i, b := range blocks {
		out[i] = h.classifyBlock(b, body)
	}
	return out
}

func (h *Heuristic) classifyBlock(b page.Block, bodySize float64) Prediction {
	text := strings.TrimSpace(b.Text)
	if text == "" {
		return Prediction{Label: h.fallback(), Confidence: 0, Source: SourceHeuristic}
	}
	for _, r := range h.FontRules {
		if r.matches(b) {
			return Prediction{Label: r.Label, Confidence: 1, Source: SourceHeuristic}
		}
	}
	if _, _, ok := ListMarker(text); ok {
		return Prediction{Label: ListItem, Confidence: 1, Source: SourceHeuristic}
	}
	if captionRe.MatchString(text) {
		return Prediction{Label: Caption, Confidence: 1, Source: SourceHeuristic}
	}
	if footnoteRe.MatchString(text) {
		return Prediction{Label: Footnote, Confidence: 1, Source: SourceHeuristic}
	}
	if bodySize > 0 && b.FontSize > 0 {
		switch ratio := b.FontSize / bodySize; {
		case ratio >= 1.7:
			return Prediction{Label: Title, Confidence: 1, Source: SourceHeuristic}
		case ratio >= 1.2:
			return Prediction{Label: Section, Confidence: 1, Source: SourceHeuristic}
		}
	}
	// Short shouted lines at or above the body size read as headings even
	// without font metadata.
	if b.FontSize >= bodySize && isShouted(text) {
		return Prediction{Label: Section, Confidence: 0.8, Source: SourceHeuristic}
	}
	return Prediction{Label: Body, Confidence: 1, Source: SourceHeuristic}
}

func (h *Heuristic) fallback() Label {
	if h.FallbackLabel != "" {
		return h.FallbackLabel
	}
	return Body
}

var (
	captionRe  = regexp.MustCompile(`(?i)^(figure|fig\.|table)\s+\d`)
	footnoteRe = regexp.MustCompile(`^(\[\d+\]|[†‡])\s`)
	bulletsRe  = regexp.MustCompile(`^([-*+•–—])\s+`)
	orderedRe  = regexp.MustCompile(`^(\d{1,3}[.)])\s+`)
)

// ListMarker reports the marker prefix of a list item line and whether it is
// an ordered marker like "3." rather than a bullet.
func ListMarker(text string) (marker string, ordered bool, ok bool) {
	if m := bulletsRe.FindStringSubmatch(text); m != nil {
		return m[1], false, true
	}
	if m := orderedRe.FindStringSubmatch(text); m != nil {
		return m[1], true, true
	}
	return "", false, false
}

// isShouted reports whether more than 80% of the letters are uppercase on a
// line short enough to be a heading.
func isShouted(text string) bool {
	if len(text) > 80 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 2 && float64(upper)/float64(letters) > 0.8
}

// bodyFontSize estimates the running text size as the median of known block
// sizes. Zero when no block carries font metadata.
func bodyFontSize(blocks []page.Block) float64 {
	var sizes []float64
	for _, b := range blocks {
		if b.FontSize > 0 && strings.TrimSpace(b.Text) != "" {
			sizes = append(sizes, b.FontSize)
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	mid := len(sizes) / 2
	if len(sizes)%2 == 1 {
		return sizes[mid]
	}
	return (sizes[mid-1] + sizes[mid]) / 2
}
