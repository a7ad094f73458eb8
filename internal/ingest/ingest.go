// Package ingest turns supported input formats into the flat block sequence
// the classifier consumes. Readers preserve source characters; the only
// synthesis is a list marker prefix where the source format carries list
// structure without printable markers.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperifyio/gorestruct/internal/page"
)

// Input formats accepted by Read.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// ErrUnknownFormat is returned for format names outside the accepted set.
var ErrUnknownFormat = errors.New("unknown input format")

// Read loads path and parses it according to format. An empty format is
// resolved from the file extension, defaulting to plain text.
func Read(path, format string) ([]page.Block, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	resolved, err := ResolveFormat(path, format)
	if err != nil {
		return nil, err
	}
	switch resolved {
	case FormatMarkdown:
		return FromMarkdown(src), nil
	case FormatHTML:
		return FromHTML(src)
	default:
		return FromText(src), nil
	}
}

// ResolveFormat validates an explicit format name or infers one from the
// path's extension.
func ResolveFormat(path, format string) (string, error) {
	switch format {
	case FormatText, FormatMarkdown, FormatHTML:
		return format, nil
	case "":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdown":
		return FormatMarkdown, nil
	case ".html", ".htm", ".xhtml":
		return FormatHTML, nil
	default:
		return FormatText, nil
	}
}

// FromText splits plain text into blocks. Blank lines separate paragraphs;
// a form feed starts the next page. Line content is kept verbatim.
func FromText(src []byte) []page.Block {
	var blocks []page.Block
	for i, pageText := range strings.Split(string(src), "\f") {
		pageNum := i + 1
		var para []string
		flush := func() {
			if len(para) > 0 {
				blocks = append(blocks, page.Block{Text: strings.Join(para, "\n"), Page: pageNum})
				para = nil
			}
		}
		for _, line := range strings.Split(pageText, "\n") {
			if strings.TrimSpace(line) == "" {
				flush()
				continue
			}
			para = append(para, line)
		}
		flush()
	}
	return blocks
}
