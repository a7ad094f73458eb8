// Package render emits final artifacts from the mapped tree or from styled
// lines. Renderers never modify text; the fidelity gate re-reads what they
// wrote where the format allows it.
package render

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/hyperifyio/gorestruct/internal/batch"
	"github.com/hyperifyio/gorestruct/internal/markup"
	"github.com/hyperifyio/gorestruct/internal/styling"
)

// runFormat is the per-run formatting derived from a paragraph style name.
// Sizes are OOXML half-points.
type runFormat struct {
	size   string
	bold   bool
	italic bool
}

func styleFormat(style string) runFormat {
	switch style {
	case "Title":
		return runFormat{size: "36", bold: true}
	case "Heading 1":
		return runFormat{size: "32", bold: true}
	case "Heading 2":
		return runFormat{size: "28", bold: true}
	case "Heading 3":
		return runFormat{size: "24", bold: true}
	case "Caption", "Quote":
		return runFormat{italic: true}
	default:
		return runFormat{}
	}
}

func justification(alignment string) string {
	switch alignment {
	case "center":
		return "center"
	case "right":
		return "right"
	case "justify":
		return "both"
	default:
		return ""
	}
}

// DOCXFromStyledLines builds a document with one paragraph per styled line.
// Segments become runs carrying their own bold/italic/underline bits on top
// of the paragraph style's formatting.
func DOCXFromStyledLines(lines []styling.StyledLine) *docx.Docx {
	w := docx.New().WithDefaultTheme()
	for _, line := range lines {
		p := w.AddParagraph()
		if j := justification(line.Alignment); j != "" {
			p.Justification(j)
		}
		base := styleFormat(line.Style)
		for _, seg := range line.Segments {
			if seg.Text == "" {
				continue
			}
			run := p.AddText(seg.Text)
			if base.size != "" {
				run.Size(base.size)
			}
			if base.bold || seg.Bold {
				run.Bold()
			}
			if base.italic || seg.Italic {
				run.Italic()
			}
			if seg.Underline {
				run.Underline("single")
			}
		}
	}
	return w
}

// DOCXFromTree builds a document from the mapped tree. Titles center at
// 18pt bold, section paragraphs get 14pt bold, captions italic, footnotes
// small; list items carry their markers in the text already.
func DOCXFromTree(root *markup.Node) *docx.Docx {
	w := docx.New().WithDefaultTheme()
	for _, n := range root.Children {
		appendDOCXNode(w, n)
	}
	return w
}

func appendDOCXNode(w *docx.Docx, n *markup.Node) {
	switch n.Tag {
	case "title":
		p := w.AddParagraph().Justification("center")
		if n.Text != "" {
			p.AddText(n.Text).Size("36").Bold()
		}
	case "caption":
		p := w.AddParagraph()
		if n.Text != "" {
			p.AddText(n.Text).Italic()
		}
	case "footnote":
		for _, child := range n.Children {
			p := w.AddParagraph()
			if child.Text != "" {
				p.AddText(child.Text).Size("18")
			}
		}
	case "itemizedlist", "orderedlist":
		for _, item := range n.Children {
			for _, para := range item.Children {
				p := w.AddParagraph()
				if para.Text != "" {
					p.AddText(para.Text)
				}
			}
		}
	default:
		p := w.AddParagraph()
		if n.Role == "section" {
			if n.Text != "" {
				p.AddText(n.Text).Size("28").Bold()
			}
			return
		}
		if n.Text != "" {
			p.AddText(n.Text)
		}
	}
}

// WriteDOCX marshals the document and writes it atomically.
func WriteDOCX(path string, doc *docx.Docx) error {
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return fmt.Errorf("marshal docx: %w", err)
	}
	return batch.WriteAtomic(path, buf.Bytes(), 0o644)
}

// DOCXText re-reads a written document and returns its paragraph text, one
// line per non-empty paragraph, for the fidelity gate.
func DOCXText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat docx: %w", err)
	}
	doc, err := docx.Parse(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var lines []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		if text := paragraphText(para); text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func paragraphText(para *docx.Paragraph) string {
	var b strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				b.WriteString(t.Text)
			}
		}
	}
	return b.String()
}
