// Package page holds the flat text model the rest of the pipeline consumes:
// blocks of source text with optional layout hints, and per-page text records
// with integrity checksums captured at ingest time.
package page

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/zeebo/blake3"
)

// Block is a single unit of source text, usually one paragraph or one line,
// together with whatever layout hints the upstream extractor could provide.
// Zero-valued hints mean "unknown"; classification must tolerate that.
type Block struct {
	Text     string
	Page     int
	FontName string
	FontSize float64
	Left     float64
	Top      float64
	Width    float64
	Height   float64
}

// Text is the reassembled text of one page plus its checksum. Later stages
// compare checksums to prove the text they emitted is the text they were
// given.
type Text struct {
	Page     int    `json:"page"`
	Raw      string `json:"raw"`
	Checksum string `json:"checksum"`
}

// Event records a single normalization applied at ingest time, so that a
// checksum difference between raw and normalized text stays explainable.
type Event struct {
	Page   int    `json:"page"`
	Kind   string `json:"kind"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Checksum returns the hex BLAKE3 digest of s.
func Checksum(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NewText builds the per-page record for the given page number and raw text.
func NewText(page int, raw string) Text {
	return Text{Page: page, Raw: raw, Checksum: Checksum(raw)}
}

// Pages groups blocks by page number, joining block texts with newlines in
// input order. Pages appear in first-seen order, so callers that ingest in
// reading order get reading order back.
func Pages(blocks []Block) []Text {
	var order []int
	joined := make(map[int][]string)
	for _, b := range blocks {
		if _, seen := joined[b.Page]; !seen {
			order = append(order, b.Page)
		}
		joined[b.Page] = append(joined[b.Page], b.Text)
	}
	out := make([]Text, 0, len(order))
	for _, p := range order {
		out = append(out, NewText(p, strings.Join(joined[p], "\n")))
	}
	return out
}

// NormalizeSpace collapses internal whitespace runs to single spaces and
// trims both ends. For display strings such as titles only, never for
// verbatim paragraph content.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Dehyphenate rejoins words broken across line ends by a trailing hyphen.
// A break is only rejoined when the continuation starts with a lowercase
// letter; compounds written as UPPER-UPPER keep their hyphen and their line
// break. Returned events describe each join.
func Dehyphenate(text string) (string, []Event) {
	lines := strings.Split(text, "\n")
	var events []Event
	out := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		line := lines[i]
		for strings.HasSuffix(line, "-") && i+1 < len(lines) {
			next := strings.TrimLeft(lines[i+1], " \t")
			if next == "" {
				break
			}
			head := strings.TrimSuffix(line, "-")
			if endsUpper(head) && startsUpper(next) {
				break
			}
			events = append(events, Event{
				Kind:   "dehyphenate",
				Before: lastWord(head) + "-\n" + firstWord(next),
				After:  lastWord(head) + firstWord(next),
			})
			line = head + next
			i++
		}
		out = append(out, line)
		i++
	}
	return strings.Join(out, "\n"), events
}

func endsUpper(s string) bool {
	rs := []rune(s)
	for i := len(rs) - 1; i >= 0; i-- {
		if unicode.IsLetter(rs[i]) {
			return unicode.IsUpper(rs[i])
		}
	}
	return false
}

func startsUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return unicode.IsUpper(r)
		}
		return false
	}
	return false
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
