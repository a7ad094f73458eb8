package ingest

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/hyperifyio/gorestruct/internal/page"
)

// Font size hints attached to parsed blocks, so the classifier's ratio
// bands see Markdown and HTML structure the way they see PDF layout.
const (
	bodyFontHint    = 10
	sectionFontHint = 14
	titleFontHint   = 20
)

// FromMarkdown parses Markdown and emits one block per heading, paragraph,
// list item and code block. Block text comes straight from the source
// segments; the only addition is each list item's own marker, reattached so
// list structure survives as text.
func FromMarkdown(src []byte) []page.Block {
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(src))
	return appendMarkdown(nil, doc, src)
}

func appendMarkdown(blocks []page.Block, n ast.Node, src []byte) []page.Block {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Heading:
			text := rawLines(node, src)
			if text == "" {
				continue
			}
			size := float64(sectionFontHint)
			if node.Level == 1 {
				size = titleFontHint
			}
			blocks = append(blocks, page.Block{Text: text, Page: 1, FontSize: size})
		case *ast.List:
			blocks = appendListItems(blocks, node, src)
		case *ast.Blockquote:
			blocks = appendMarkdown(blocks, node, src)
		default:
			if text := rawLines(child, src); text != "" {
				blocks = append(blocks, page.Block{Text: text, Page: 1, FontSize: bodyFontHint})
			}
		}
	}
	return blocks
}

func appendListItems(blocks []page.Block, list *ast.List, src []byte) []page.Block {
	number := list.Start
	if number == 0 {
		number = 1
	}
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := fmt.Sprintf("%c ", list.Marker)
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d%c ", number, list.Marker)
			number++
		}

		var content []string
		var nested []*ast.List
		for part := item.FirstChild(); part != nil; part = part.NextSibling() {
			if sub, ok := part.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if text := rawLines(part, src); text != "" {
				content = append(content, text)
			}
		}
		if len(content) > 0 {
			blocks = append(blocks, page.Block{
				Text:     marker + strings.Join(content, "\n"),
				Page:     1,
				FontSize: bodyFontHint,
			})
		}
		for _, sub := range nested {
			blocks = appendListItems(blocks, sub, src)
		}
	}
	return blocks
}

// rawLines concatenates a block node's source segments, dropping only the
// final newline.
func rawLines(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}
