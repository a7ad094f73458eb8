// Package markup folds classified blocks into a DocBook-style tree and
// serializes it. Paragraph content passes through verbatim; only title text
// is whitespace-normalized for display.
package markup

// Node is one element of the output tree. Text is rendered only on leaves;
// container nodes carry children instead. Role becomes a role attribute.
type Node struct {
	Tag      string  `json:"tag"`
	Role     string  `json:"role,omitempty"`
	Text     string  `json:"text,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

func (n *Node) append(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// para wraps verbatim text in a paragraph node.
func para(text string) *Node {
	return &Node{Tag: "para", Text: text}
}
