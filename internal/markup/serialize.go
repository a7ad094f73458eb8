package markup

import (
	"fmt"
	"strings"
)

// DocBook 4.5 DTD identifiers, the default document type for emitted files.
const (
	DocBookPublicID = "-//OASIS//DTD DocBook XML V4.5//EN"
	DocBookSystemID = "http://www.oasis-open.org/docbook/xml/4.5/docbookx.dtd"
)

// Serializer renders a node tree as XML. Leaf text is written inline between
// the tags so that the serialized form round-trips to the exact source text
// with no indentation bleeding into content.
type Serializer struct {
	// DTDPublic and DTDSystem select the DOCTYPE. A public identifier needs a
	// system identifier beside it; a system identifier alone emits the SYSTEM
	// form; both empty omits the DOCTYPE.
	DTDPublic string
	DTDSystem string
}

// Serialize renders root with an XML declaration and two-space indentation.
func (s *Serializer) Serialize(root *Node) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	if s != nil {
		switch {
		case s.DTDPublic != "":
			fmt.Fprintf(&b, "<!DOCTYPE %s PUBLIC %q %q>\n", root.Tag, s.DTDPublic, s.DTDSystem)
		case s.DTDSystem != "":
			fmt.Fprintf(&b, "<!DOCTYPE %s SYSTEM %q>\n", root.Tag, s.DTDSystem)
		}
	}
	writeNode(&b, root, 0)
	b.WriteString("\n")
	return b.String()
}

// SerializeNode renders a single subtree at the given indent depth, without
// declaration or DOCTYPE. Callers stitching fragments into a master document
// use this for the parts that stay inline.
func (s *Serializer) SerializeNode(n *Node, depth int) string {
	var b strings.Builder
	writeNode(&b, n, depth)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteString("<")
	b.WriteString(n.Tag)
	if n.Role != "" {
		b.WriteString(` role="`)
		b.WriteString(escapeAttr(n.Role))
		b.WriteString(`"`)
	}
	if len(n.Children) == 0 {
		if n.Text == "" {
			b.WriteString("/>")
			return
		}
		b.WriteString(">")
		b.WriteString(escapeText(n.Text))
		b.WriteString("</")
		b.WriteString(n.Tag)
		b.WriteString(">")
		return
	}
	b.WriteString(">\n")
	for _, child := range n.Children {
		writeNode(b, child, depth+1)
		b.WriteString("\n")
	}
	b.WriteString(indent)
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteString(">")
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(escapeText(s), `"`, "&quot;")
}
