package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/gorestruct/internal/batch"
	"github.com/hyperifyio/gorestruct/internal/markup"
	"github.com/hyperifyio/gorestruct/internal/styling"
)

// pdfFont pairs a font spec with the line height used for it.
type pdfFont struct {
	style  string
	size   float64
	height float64
}

func pdfStyleFont(style string) pdfFont {
	switch style {
	case "Title":
		return pdfFont{style: "B", size: 18, height: 9}
	case "Heading 1":
		return pdfFont{style: "B", size: 16, height: 8}
	case "Heading 2":
		return pdfFont{style: "B", size: 14, height: 7}
	case "Heading 3":
		return pdfFont{style: "B", size: 12, height: 6}
	case "Caption", "Quote":
		return pdfFont{style: "I", size: 11, height: 5}
	default:
		return pdfFont{style: "", size: 11, height: 5}
	}
}

func pdfAlign(alignment string) string {
	switch alignment {
	case "center":
		return "C"
	case "right":
		return "R"
	case "justify":
		return "J"
	default:
		return "L"
	}
}

func segmentStyle(base string, seg styling.Segment) string {
	s := base
	if seg.Bold && !strings.Contains(s, "B") {
		s += "B"
	}
	if seg.Italic && !strings.Contains(s, "I") {
		s += "I"
	}
	if seg.Underline {
		s += "U"
	}
	return s
}

func newPDF(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	if title != "" {
		pdf.SetTitle(title, true)
	}
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()
	return pdf
}

// plainSegments reports whether the line carries no inline formatting, in
// which case it can be laid out as a single aligned cell.
func plainSegments(line styling.StyledLine) bool {
	for _, seg := range line.Segments {
		if seg.Bold || seg.Italic || seg.Underline {
			return false
		}
	}
	return true
}

// PDFFromStyledLines renders one paragraph per styled line. Lines without
// inline formatting honor their alignment; mixed runs flow left to right
// with per-run font styles.
func PDFFromStyledLines(title string, lines []styling.StyledLine) *gofpdf.Fpdf {
	pdf := newPDF(title)
	for _, line := range lines {
		font := pdfStyleFont(line.Style)
		if line.Text == "" {
			pdf.Ln(font.height)
			continue
		}
		if plainSegments(line) {
			pdf.SetFont("Helvetica", font.style, font.size)
			pdf.MultiCell(0, font.height, line.Text, "", pdfAlign(line.Alignment), false)
			continue
		}
		for _, seg := range line.Segments {
			if seg.Text == "" {
				continue
			}
			pdf.SetFont("Helvetica", segmentStyle(font.style, seg), font.size)
			pdf.Write(font.height, seg.Text)
		}
		pdf.Ln(font.height)
	}
	return pdf
}

// PDFFromTree renders the mapped tree with the same block layout the DOCX
// renderer uses.
func PDFFromTree(title string, root *markup.Node) *gofpdf.Fpdf {
	pdf := newPDF(title)
	for _, n := range root.Children {
		appendPDFNode(pdf, n)
	}
	return pdf
}

func appendPDFNode(pdf *gofpdf.Fpdf, n *markup.Node) {
	switch n.Tag {
	case "title":
		pdf.SetFont("Helvetica", "B", 18)
		pdf.MultiCell(0, 9, n.Text, "", "C", false)
		pdf.Ln(2)
	case "caption":
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 5, n.Text, "", "L", false)
	case "footnote":
		pdf.SetFont("Helvetica", "", 9)
		for _, child := range n.Children {
			pdf.MultiCell(0, 4, child.Text, "", "L", false)
		}
	case "itemizedlist", "orderedlist":
		pdf.SetFont("Helvetica", "", 11)
		for _, item := range n.Children {
			for _, para := range item.Children {
				pdf.MultiCell(0, 5, para.Text, "", "L", false)
			}
		}
		pdf.Ln(2)
	default:
		if n.Role == "section" {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.CellFormat(0, 8, n.Text, "", 1, "L", false, 0, "")
			return
		}
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 5, n.Text, "", "L", false)
		pdf.Ln(2)
	}
}

// WritePDF serializes the document and writes it atomically.
func WritePDF(path string, pdf *gofpdf.Fpdf) error {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return fmt.Errorf("marshal pdf: %w", err)
	}
	return batch.WriteAtomic(path, buf.Bytes(), 0o644)
}
