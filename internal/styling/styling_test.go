package styling

import (
	"errors"
	"strings"
	"testing"
)

func TestApplyReferenceInstructions(t *testing.T) {
	payload := []byte(`{
		"paragraphs": [
			{"line": 1, "style": "Heading 1", "alignment": "center"},
			{"line": 2, "bold": [[0, 4]], "italic": [[5, 9]]}
		]
	}`)
	d, err := ParseDirectives(payload)
	if err != nil {
		t.Fatalf("ParseDirectives: %v", err)
	}

	styled := Apply([]string{"Heading", "Body text"}, d)
	if len(styled) != 2 {
		t.Fatalf("expected 2 styled lines, got %d", len(styled))
	}

	heading := styled[0]
	if heading.Style != "Heading 1" || heading.Alignment != "center" {
		t.Fatalf("heading style/alignment = %q/%q", heading.Style, heading.Alignment)
	}
	if len(heading.Segments) != 1 || heading.Segments[0].Text != "Heading" || heading.Segments[0].Bold {
		t.Fatalf("heading segments = %+v", heading.Segments)
	}

	body := styled[1]
	want := []Segment{
		{Text: "Body", Bold: true},
		{Text: " "},
		{Text: "text", Italic: true},
	}
	if len(body.Segments) != len(want) {
		t.Fatalf("body segments = %+v", body.Segments)
	}
	for i, seg := range body.Segments {
		if seg != want[i] {
			t.Fatalf("segment %d = %+v, want %+v", i, seg, want[i])
		}
	}
}

func TestApplyPrefixRange(t *testing.T) {
	d := &Directives{Paragraphs: []Instruction{{Line: 1, Bold: [][2]int{{0, 5}}}}}
	styled := Apply([]string{"Hello world", "Second line"}, d)

	first := styled[0].Segments
	if len(first) != 2 || first[0].Text != "Hello" || !first[0].Bold || first[1].Text != " world" || first[1].Bold {
		t.Fatalf("first line segments = %+v", first)
	}
	second := styled[1].Segments
	if len(second) != 1 || second[0].Text != "Second line" || second[0].Bold {
		t.Fatalf("second line segments = %+v", second)
	}
}

func TestApplyWithoutDirectives(t *testing.T) {
	lines := []string{"one", "", "three"}
	styled := Apply(lines, nil)
	if len(styled) != len(lines) {
		t.Fatalf("expected %d lines, got %d", len(lines), len(styled))
	}
	for i, sl := range styled {
		if sl.Text != lines[i] || len(sl.Segments) != 1 || sl.Segments[0].Text != lines[i] {
			t.Fatalf("line %d = %+v", i, sl)
		}
	}
}

func TestApplyEmptyLineSingleSegment(t *testing.T) {
	d := &Directives{Paragraphs: []Instruction{{Line: 1, Bold: [][2]int{{0, 3}}}}}
	styled := Apply([]string{""}, d)
	segs := styled[0].Segments
	if len(segs) != 1 || segs[0].Text != "" || segs[0].Bold {
		t.Fatalf("empty line segments = %+v", segs)
	}
}

func TestApplyClipsAndDiscardsRanges(t *testing.T) {
	d := &Directives{Paragraphs: []Instruction{{
		Line:      1,
		Bold:      [][2]int{{2, 99}},
		Italic:    [][2]int{{4, 2}},
		Underline: [][2]int{{-3, 3}},
	}}}
	segs := Apply([]string{"abcdef"}, d)[0].Segments

	want := []Segment{
		{Text: "ab", Underline: true},
		{Text: "c", Bold: true, Underline: true},
		{Text: "def", Bold: true},
	}
	if len(segs) != len(want) {
		t.Fatalf("segments = %+v", segs)
	}
	for i, seg := range segs {
		if seg != want[i] {
			t.Fatalf("segment %d = %+v, want %+v", i, seg, want[i])
		}
	}
}

func TestApplyLastInstructionWins(t *testing.T) {
	d := &Directives{Paragraphs: []Instruction{
		{Line: 1, Bold: [][2]int{{0, 5}}},
		{Line: 1, Italic: [][2]int{{0, 5}}},
	}}
	segs := Apply([]string{"Hello world"}, d)[0].Segments
	if segs[0].Bold || !segs[0].Italic {
		t.Fatalf("expected last instruction to win, got %+v", segs[0])
	}
}

func TestApplyUnknownStyleAndAlignmentIgnored(t *testing.T) {
	d := &Directives{Paragraphs: []Instruction{{
		Line:      1,
		Style:     "Fancy Nonsense",
		Alignment: "diagonal",
		Bold:      [][2]int{{0, 4}},
	}}}
	sl := Apply([]string{"Body text"}, d)[0]
	if sl.Style != "" || sl.Alignment != "" {
		t.Fatalf("unknown style/alignment not ignored: %q/%q", sl.Style, sl.Alignment)
	}
	if !sl.Segments[0].Bold {
		t.Fatalf("ranges should still apply: %+v", sl.Segments)
	}
}

func TestParseDirectivesSkipsMalformedEntries(t *testing.T) {
	payload := []byte(`{
		"paragraphs": [
			{"line": 1, "style": "Heading 1"},
			{"line": "not a number"},
			{"line": 0},
			{"line": 2, "bold": [[0.5, 3]]},
			{"line": 3, "bold": [[0, 4]]}
		],
		"notes": ["diagnostic"]
	}`)
	d, err := ParseDirectives(payload)
	if err != nil {
		t.Fatalf("ParseDirectives: %v", err)
	}
	if len(d.Paragraphs) != 2 {
		t.Fatalf("expected 2 surviving entries, got %d: %+v", len(d.Paragraphs), d.Paragraphs)
	}
	if d.Paragraphs[0].Line != 1 || d.Paragraphs[1].Line != 3 {
		t.Fatalf("wrong entries survived: %+v", d.Paragraphs)
	}
	if len(d.Notes) != 1 {
		t.Fatalf("notes dropped: %+v", d.Notes)
	}
}

func TestParseDirectivesRejectsGarbage(t *testing.T) {
	_, err := ParseDirectives([]byte("not json"))
	if !errors.Is(err, ErrMalformedInstruction) {
		t.Fatalf("expected ErrMalformedInstruction, got %v", err)
	}
}

func TestSegmentsConcatenateToLine(t *testing.T) {
	lines := []string{
		"plain ascii",
		"naïve — résumé",
		"",
		"tail",
	}
	d := &Directives{Paragraphs: []Instruction{
		{Line: 1, Bold: [][2]int{{2, 7}}, Underline: [][2]int{{5, 11}}},
		{Line: 2, Italic: [][2]int{{0, 3}}},
		{Line: 4, Bold: [][2]int{{-5, 100}}},
	}}
	for i, sl := range Apply(lines, d) {
		var b strings.Builder
		for _, seg := range sl.Segments {
			b.WriteString(seg.Text)
		}
		if b.String() != lines[i] {
			t.Fatalf("line %d: segments %q do not reproduce %q", i, b.String(), lines[i])
		}
	}
}
