// Package bundle carves a mapped tree into chapter fragments joined by a
// master document with external entity references, and packs the result
// into a tar.xz archive with per-file checksums.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperifyio/gorestruct/internal/batch"
	"github.com/hyperifyio/gorestruct/internal/markup"
	"github.com/hyperifyio/gorestruct/internal/page"
)

// Fragment is one externalized piece of the book. Entity is the reference
// name declared in the master DOCTYPE, Name the file it resolves to.
type Fragment struct {
	Entity string
	Name   string
	Title  string
	Root   *markup.Node
}

// Split carves chapter fragments out of the tree. A top-level section
// paragraph opens a new chapter and becomes its title; everything before
// the first one stays in the master document as front matter. Text moves
// between nodes unaltered; only the display title is normalized, with
// hyphen-broken line pairs rejoined before whitespace collapses.
func Split(root *markup.Node) (*markup.Node, []Fragment) {
	book := &markup.Node{Tag: root.Tag, Role: root.Role}
	var fragments []Fragment
	var current *markup.Node
	for _, n := range root.Children {
		if n.Tag == "para" && n.Role == "section" {
			entity := fmt.Sprintf("Ch%03d", len(fragments)+1)
			current = &markup.Node{Tag: "chapter"}
			current.Children = append(current.Children, &markup.Node{Tag: "title", Text: n.Text})
			joined, _ := page.Dehyphenate(n.Text)
			fragments = append(fragments, Fragment{
				Entity: entity,
				Name:   entity + ".xml",
				Title:  page.NormalizeSpace(joined),
				Root:   current,
			})
			continue
		}
		if current != nil {
			current.Children = append(current.Children, n)
			continue
		}
		book.Children = append(book.Children, n)
	}
	return book, fragments
}

// TOC synthesizes a table-of-contents fragment listing the given chapters.
// Callers prepend it to the fragment list so it lands before the chapters
// in the master document.
func TOC(chapters []Fragment) Fragment {
	list := &markup.Node{Tag: "itemizedlist"}
	for _, ch := range chapters {
		item := &markup.Node{Tag: "listitem"}
		item.Children = append(item.Children, &markup.Node{
			Tag:  "para",
			Text: fmt.Sprintf("%s (%s)", ch.Title, ch.Name),
		})
		list.Children = append(list.Children, item)
	}
	root := &markup.Node{Tag: "chapter"}
	root.Children = append(root.Children,
		&markup.Node{Tag: "title", Text: "Table of Contents"},
		list,
	)
	return Fragment{Entity: "toc", Name: "TableOfContents.xml", Title: "Table of Contents", Root: root}
}

// WriteBook writes Book.xml plus one file per fragment into dir. The master
// document declares each fragment as an external entity and references it
// in place; fragments carry their own declaration and DOCTYPE so they stay
// individually parseable.
func WriteBook(dir string, book *markup.Node, fragments []Fragment, dtdPublic, dtdSystem string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	s := markup.Serializer{DTDPublic: dtdPublic, DTDSystem: dtdSystem}
	for _, frag := range fragments {
		path := filepath.Join(dir, frag.Name)
		if err := batch.WriteAtomic(path, []byte(s.Serialize(frag.Root)), 0o644); err != nil {
			return fmt.Errorf("write fragment %s: %w", frag.Name, err)
		}
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	if dtdPublic != "" || dtdSystem != "" || len(fragments) > 0 {
		b.WriteString("<!DOCTYPE " + book.Tag)
		switch {
		case dtdPublic != "":
			fmt.Fprintf(&b, " PUBLIC %q %q", dtdPublic, dtdSystem)
		case dtdSystem != "":
			fmt.Fprintf(&b, " SYSTEM %q", dtdSystem)
		}
		if len(fragments) > 0 {
			b.WriteString(" [\n")
			for _, frag := range fragments {
				fmt.Fprintf(&b, "  <!ENTITY %s SYSTEM %q>\n", frag.Entity, frag.Name)
			}
			b.WriteString("]")
		}
		b.WriteString(">\n")
	}
	fmt.Fprintf(&b, "<%s>\n", book.Tag)
	for _, child := range book.Children {
		b.WriteString(s.SerializeNode(child, 1))
		b.WriteString("\n")
	}
	for _, frag := range fragments {
		fmt.Fprintf(&b, "  &%s;\n", frag.Entity)
	}
	fmt.Fprintf(&b, "</%s>\n", book.Tag)

	if err := batch.WriteAtomic(filepath.Join(dir, "Book.xml"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write master document: %w", err)
	}
	return nil
}
