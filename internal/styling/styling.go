// Package styling applies line-oriented formatting directives to plain text
// without altering a single character. Directives come from an external
// layout analyzer as JSON; the output is a segmented view of each line that
// renderers turn into runs.
package styling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrMalformedInstruction marks directive payloads that cannot be decoded at
// all. Individually malformed entries are skipped, not fatal.
var ErrMalformedInstruction = errors.New("malformed formatting instruction")

// Instruction is one line directive. Line is 1-based; ranges are half-open
// [start,end) byte offsets into the line's UTF-8 text.
type Instruction struct {
	Line      int      `json:"line"`
	Style     string   `json:"style,omitempty"`
	Alignment string   `json:"alignment,omitempty"`
	Bold      [][2]int `json:"bold,omitempty"`
	Italic    [][2]int `json:"italic,omitempty"`
	Underline [][2]int `json:"underline,omitempty"`
}

// Directives is a decoded analyzer payload.
type Directives struct {
	Paragraphs []Instruction `json:"paragraphs"`
	Notes      []string      `json:"notes,omitempty"`
}

// Segment is a maximal run of uniformly styled text within a line.
type Segment struct {
	Text      string `json:"text"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
}

// StyledLine is one input line with its directive applied. Concatenating
// Segments reproduces Text byte for byte.
type StyledLine struct {
	Text      string    `json:"text"`
	Style     string    `json:"style,omitempty"`
	Alignment string    `json:"alignment,omitempty"`
	Segments  []Segment `json:"segments"`
}

var knownStyles = map[string]bool{
	"Title":       true,
	"Heading 1":   true,
	"Heading 2":   true,
	"Heading 3":   true,
	"Caption":     true,
	"Quote":       true,
	"Normal":      true,
	"List Bullet": true,
	"List Number": true,
}

var knownAlignments = map[string]bool{
	"left":    true,
	"right":   true,
	"center":  true,
	"justify": true,
}

// ParseDirectives decodes an analyzer payload. Unknown fields are ignored.
// An entry whose line is missing, non-integer or below 1, or whose ranges
// are not integer pairs, is skipped with a warning while the rest of the
// payload survives.
func ParseDirectives(data []byte) (*Directives, error) {
	var raw struct {
		Paragraphs []json.RawMessage `json:"paragraphs"`
		Notes      []string          `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInstruction, err)
	}
	d := &Directives{Notes: raw.Notes}
	for i, entry := range raw.Paragraphs {
		var ins Instruction
		if err := json.Unmarshal(entry, &ins); err != nil {
			log.Warn().Err(err).Int("entry", i).Msg("skipping malformed formatting instruction")
			continue
		}
		if ins.Line < 1 {
			log.Warn().Int("entry", i).Int("line", ins.Line).Msg("skipping instruction with invalid line number")
			continue
		}
		d.Paragraphs = append(d.Paragraphs, ins)
	}
	return d, nil
}

// Apply styles lines according to d. Output is 1:1 with input, in order.
// Lines without an instruction become a single plain segment. When several
// instructions target the same line the last one wins.
func Apply(lines []string, d *Directives) []StyledLine {
	byLine := make(map[int]Instruction)
	if d != nil {
		for _, ins := range d.Paragraphs {
			byLine[ins.Line] = ins
		}
	}
	out := make([]StyledLine, len(lines))
	for i, line := range lines {
		ins, ok := byLine[i+1]
		if !ok {
			out[i] = StyledLine{Text: line, Segments: []Segment{{Text: line}}}
			continue
		}
		out[i] = applyInstruction(line, ins)
	}
	return out
}

func applyInstruction(line string, ins Instruction) StyledLine {
	sl := StyledLine{Text: line}
	if ins.Style != "" {
		if knownStyles[ins.Style] {
			sl.Style = ins.Style
		} else {
			log.Debug().Str("style", ins.Style).Msg("unknown paragraph style requested")
		}
	}
	if ins.Alignment != "" {
		a := strings.ToLower(ins.Alignment)
		if knownAlignments[a] {
			sl.Alignment = a
		} else {
			log.Debug().Str("alignment", ins.Alignment).Msg("unsupported alignment requested")
		}
	}
	sl.Segments = segment(line,
		clipRanges(line, ins.Bold),
		clipRanges(line, ins.Italic),
		clipRanges(line, ins.Underline))
	return sl
}

type span struct{ start, end int }

// clipRanges clips each range to the line and drops the ones that end up
// empty or inverted.
func clipRanges(line string, pairs [][2]int) []span {
	spans := make([]span, 0, len(pairs))
	for _, p := range pairs {
		start := clamp(p[0], len(line))
		end := clamp(p[1], len(line))
		if end <= start {
			continue
		}
		spans = append(spans, span{start: start, end: end})
	}
	return spans
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// segment splits the line at every range endpoint. A segment carries a style
// iff it lies fully inside one of that style's ranges.
func segment(text string, bold, italic, underline []span) []Segment {
	if text == "" {
		return []Segment{{}}
	}
	bounds := map[int]struct{}{0: {}, len(text): {}}
	for _, spans := range [][]span{bold, italic, underline} {
		for _, sp := range spans {
			bounds[sp.start] = struct{}{}
			bounds[sp.end] = struct{}{}
		}
	}
	points := make([]int, 0, len(bounds))
	for p := range bounds {
		points = append(points, p)
	}
	sort.Ints(points)

	segs := make([]Segment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		start, end := points[i], points[i+1]
		segs = append(segs, Segment{
			Text:      text[start:end],
			Bold:      covered(bold, start, end),
			Italic:    covered(italic, start, end),
			Underline: covered(underline, start, end),
		})
	}
	return segs
}

func covered(spans []span, start, end int) bool {
	for _, sp := range spans {
		if sp.start <= start && end <= sp.end {
			return true
		}
	}
	return false
}
