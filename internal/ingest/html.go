package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/gorestruct/internal/page"
)

// FromHTML extracts blocks from an HTML document, preferring <main> or
// <article> over <body>. Headings carry font size hints and their element
// name; list items get a synthesized marker so list structure survives as
// plain text.
func FromHTML(src []byte) ([]page.Block, error) {
	root, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	content := findElement(root, "main")
	if content == nil {
		content = findElement(root, "article")
	}
	if content == nil {
		content = findElement(root, "body")
	}
	if content == nil {
		content = root
	}
	return collectBlocks(nil, content, listState{}), nil
}

// listState tracks the innermost enclosing list while walking.
type listState struct {
	ordered bool
	counter *int
}

func collectBlocks(blocks []page.Block, n *html.Node, list listState) []page.Block {
	if n.Type == html.ElementNode {
		name := strings.ToLower(n.Data)
		switch name {
		case "script", "style", "noscript", "nav", "footer", "aside", "iframe":
			return blocks
		case "h1", "h2", "h3", "h4", "h5", "h6":
			if text := inlineText(n); text != "" {
				size := float64(sectionFontHint)
				if name == "h1" {
					size = titleFontHint
				}
				blocks = append(blocks, page.Block{Text: text, Page: 1, FontName: name, FontSize: size})
			}
			return blocks
		case "p", "figcaption", "pre":
			if text := inlineText(n); text != "" {
				blocks = append(blocks, page.Block{Text: text, Page: 1, FontName: name, FontSize: bodyFontHint})
			}
			return blocks
		case "ul":
			list = listState{}
		case "ol":
			counter := 0
			list = listState{ordered: true, counter: &counter}
		case "li":
			marker := "- "
			if list.ordered && list.counter != nil {
				*list.counter++
				marker = fmt.Sprintf("%d. ", *list.counter)
			}
			if text := inlineText(n); text != "" {
				blocks = append(blocks, page.Block{Text: marker + text, Page: 1, FontName: name, FontSize: bodyFontHint})
			}
			// Nested lists inside the item become their own blocks.
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode {
					continue
				}
				switch strings.ToLower(c.Data) {
				case "ul", "ol":
					blocks = collectBlocks(blocks, c, list)
				}
			}
			return blocks
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		blocks = collectBlocks(blocks, c, list)
	}
	return blocks
}

// inlineText gathers the text of n's subtree, skipping script-like elements
// and nested lists, trimming only the block ends.
func inlineText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			return
		case html.ElementNode:
			switch strings.ToLower(c.Data) {
			case "script", "style", "noscript", "ul", "ol":
				return
			case "br":
				b.WriteString("\n")
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	for k := n.FirstChild; k != nil; k = k.NextSibling {
		walk(k)
	}
	return strings.TrimSpace(b.String())
}

func findElement(n *html.Node, tag string) *html.Node {
	var found *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if found != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			found = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if found != nil {
				return
			}
		}
	}
	dfs(n)
	return found
}
