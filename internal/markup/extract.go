package markup

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// textLeaves selects every element whose text participates in the fidelity
// comparison. Lists and footnotes contribute through their nested para
// elements, so the union stays flat.
var textLeaves = xpath.MustCompile("//title|//para|//caption")

// ExtractText parses a serialized document and returns the text of each
// content-bearing element in document order. Entity references are not
// resolved, so this operates on single-file documents only.
func ExtractText(doc string) ([]string, error) {
	root, err := xmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	nodes := xmlquery.QuerySelectorAll(root, textLeaves)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.InnerText())
	}
	return out, nil
}

// Texts walks the in-memory tree and returns the same leaf texts ExtractText
// would recover from its serialized form, one entry per mapped source block.
func Texts(root *Node) []string {
	var out []string
	var walk func(*Node)
	walk = func(n *Node) {
		if len(n.Children) == 0 {
			switch n.Tag {
			case "title", "para", "caption":
				out = append(out, n.Text)
			}
			return
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	for _, child := range root.Children {
		walk(child)
	}
	return out
}
