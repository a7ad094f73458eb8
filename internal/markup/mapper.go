package markup

import (
	"strings"

	"github.com/hyperifyio/gorestruct/internal/classify"
	"github.com/hyperifyio/gorestruct/internal/page"
)

// Labeled pairs a source block with its classification.
type Labeled struct {
	Block      page.Block          `json:"block"`
	Prediction classify.Prediction `json:"prediction"`
}

// Mapper folds labeled blocks into a document tree. The fold keeps one open
// list as its accumulator state: contiguous list items collapse into a single
// list positioned where the first item appeared, and any other label closes
// it.
type Mapper struct {
	// RootTag is the document element, "book" when empty.
	RootTag string
}

// Map builds the tree. Unknown labels and abstentions degrade to verbatim
// paragraphs so no text is ever dropped.
func (m *Mapper) Map(labeled []Labeled) *Node {
	root := &Node{Tag: m.rootTag()}

	var openList *Node
	allOrdered := false
	closeList := func() {
		if openList != nil && allOrdered {
			openList.Tag = "orderedlist"
		}
		openList = nil
	}

	for _, lb := range labeled {
		text := lb.Block.Text
		switch lb.Prediction.Label {
		case classify.Title:
			closeList()
			root.append(&Node{Tag: "title", Text: page.NormalizeSpace(text)})
		case classify.Section:
			closeList()
			root.append(&Node{Tag: "para", Role: "section", Text: text})
		case classify.ListItem:
			_, ordered, marked := classify.ListMarker(strings.TrimSpace(text))
			if openList == nil {
				openList = root.append(&Node{Tag: "itemizedlist"})
				allOrdered = marked && ordered
			} else {
				allOrdered = allOrdered && marked && ordered
			}
			openList.append(&Node{Tag: "listitem"}).append(para(text))
		case classify.Caption:
			closeList()
			root.append(&Node{Tag: "caption", Text: text})
		case classify.Footnote:
			closeList()
			root.append(&Node{Tag: "footnote"}).append(para(text))
		default:
			closeList()
			root.append(para(text))
		}
	}
	closeList()
	return root
}

func (m *Mapper) rootTag() string {
	if m == nil || strings.TrimSpace(m.RootTag) == "" {
		return "book"
	}
	return m.RootTag
}
