package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/gorestruct/internal/classify"
	"github.com/hyperifyio/gorestruct/internal/fidelity"
	"github.com/hyperifyio/gorestruct/internal/markup"
	"github.com/hyperifyio/gorestruct/internal/render"
)

const sampleText = `INTRODUCTION

The opening paragraph spans
two source lines without alteration.

- first entry

- second entry

Figure 1: an annotated diagram

[1] A note at the foot of the page.
`

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// TestIntegration_TextToDocBook runs the whole chain on plain text: ingest,
// heuristic classification, mapping, serialization and the read-back gate.
func TestIntegration_TextToDocBook(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	in := writeTestFile(t, tmp, "report.txt", sampleText)
	out := filepath.Join(tmp, "report.xml")

	app, err := New(context.Background(), Config{
		InputPath:     in,
		OutputPath:    out,
		BatchParallel: 1,
		RootTag:       "book",
		DTDSystem:     "docbook.dtd",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()
	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read out: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		`<!DOCTYPE book SYSTEM "docbook.dtd">`,
		`<para role="section">INTRODUCTION</para>`,
		"<itemizedlist>",
		"<caption>Figure 1: an annotated diagram</caption>",
		"<footnote>",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("output missing %q\n---\n%s", want, content)
		}
	}
	if n := strings.Count(content, "<listitem>"); n != 2 {
		t.Fatalf("got %d list items, want 2\n---\n%s", n, content)
	}

	// Independent round trip: extracting text from the emitted document must
	// reproduce the source token for token.
	texts, err := markup.ExtractText(content)
	if err != nil {
		t.Fatalf("extract text: %v", err)
	}
	if err := fidelity.CheckTokens(sampleText, strings.Join(texts, "\n")); err != nil {
		t.Fatalf("round trip diverged: %v", err)
	}
}

// TestIntegration_BatchManifest runs two jobs where one cannot read its
// input. The good job must complete and the error must report the count.
func TestIntegration_BatchManifest(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	good := writeTestFile(t, tmp, "good.txt", "A single paragraph of text.\n")
	man := writeTestFile(t, tmp, "jobs.yaml", fmt.Sprintf(`
jobs:
  - input: %s
    output: %s
  - input: %s
    output: %s
`, good, filepath.Join(tmp, "good.xml"), filepath.Join(tmp, "missing.txt"), filepath.Join(tmp, "missing.xml")))

	app, err := New(context.Background(), Config{BatchManifest: man, BatchParallel: 2})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()

	err = app.Run(context.Background())
	if err == nil {
		t.Fatal("expected batch error")
	}
	if !strings.Contains(err.Error(), "1 of 2 jobs failed") {
		t.Fatalf("error = %v, want failure count", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "good.xml")); err != nil {
		t.Fatalf("good job output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmp, "missing.xml")); err == nil {
		t.Fatal("failed job left an output file")
	}
}

// TestIntegration_DocxDirectives styles a line through analyzer directives
// and checks the written DOCX still carries the exact source tokens.
func TestIntegration_DocxDirectives(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	in := writeTestFile(t, tmp, "memo.txt", "Hello brave new world.\n")
	directives := writeTestFile(t, tmp, "layout.json",
		`{"paragraphs":[{"line":1,"style":"Title","bold":[[0,5]]}]}`)
	out := filepath.Join(tmp, "memo.docx")

	app, err := New(context.Background(), Config{
		InputPath:      in,
		OutputPath:     out,
		DirectivesPath: directives,
		BatchParallel:  1,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()
	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	got, err := render.DOCXText(out)
	if err != nil {
		t.Fatalf("read docx text: %v", err)
	}
	if err := fidelity.CheckTokens("Hello brave new world.", got); err != nil {
		t.Fatalf("docx text diverged: %v", err)
	}
}

// TestIntegration_Artifacts checks the audit trail of a job: input copy,
// predictions, tree, report, output copy, and the checksum file over them.
func TestIntegration_Artifacts(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	in := writeTestFile(t, tmp, "notes.txt", "OVERVIEW\n\nPlain body text follows the heading.\n")
	out := filepath.Join(tmp, "notes.xml")
	artRoot := filepath.Join(tmp, "artifacts")

	app, err := New(context.Background(), Config{
		InputPath:     in,
		OutputPath:    out,
		ArtifactsDir:  artRoot,
		BatchParallel: 1,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()
	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	dir := deriveArtifactsDir(artRoot, in)
	for _, name := range []string{"input.txt", "labels.json", "tree.json", "report.json", "SHA256SUMS", "notes.xml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("artifact %s: %v", name, err)
		}
	}

	b, err := os.ReadFile(filepath.Join(dir, "labels.json"))
	if err != nil {
		t.Fatalf("read labels: %v", err)
	}
	var preds []classify.Prediction
	if err := json.Unmarshal(b, &preds); err != nil {
		t.Fatalf("parse labels: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	if preds[0].Label != classify.Section || preds[0].Source != classify.SourceHeuristic {
		t.Fatalf("unexpected first prediction: %+v", preds[0])
	}

	sums, err := os.ReadFile(filepath.Join(dir, "SHA256SUMS"))
	if err != nil {
		t.Fatalf("read checksums: %v", err)
	}
	for _, name := range []string{"labels.json", "tree.json", "report.json", "input.txt"} {
		if !strings.Contains(string(sums), name) {
			t.Fatalf("SHA256SUMS missing %s:\n%s", name, sums)
		}
	}
}

// TestIntegration_Bundle splits a two-heading document into chapter
// fragments with a master document and a packed archive.
func TestIntegration_Bundle(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	in := writeTestFile(t, tmp, "story.txt",
		"CHAPTER ONE\n\nThe first chapter text.\n\nCHAPTER TWO\n\nThe second chapter text.\n")
	out := filepath.Join(tmp, "story.xml")

	app, err := New(context.Background(), Config{
		InputPath:     in,
		OutputPath:    out,
		Bundle:        true,
		BundleTOC:     true,
		BatchParallel: 1,
		DTDSystem:     "docbook.dtd",
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer app.Close()
	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	bundleDir := filepath.Join(tmp, "story-bundle")
	master, err := os.ReadFile(filepath.Join(bundleDir, "Book.xml"))
	if err != nil {
		t.Fatalf("read master document: %v", err)
	}
	for _, want := range []string{
		`<!ENTITY Ch001 SYSTEM "Ch001.xml">`,
		`<!ENTITY Ch002 SYSTEM "Ch002.xml">`,
		"&toc;",
		"&Ch001;",
		"&Ch002;",
	} {
		if !strings.Contains(string(master), want) {
			t.Fatalf("master missing %q\n---\n%s", want, master)
		}
	}
	for _, name := range []string{"Ch001.xml", "Ch002.xml", "TableOfContents.xml"} {
		if _, err := os.Stat(filepath.Join(bundleDir, name)); err != nil {
			t.Fatalf("fragment %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(tmp, "story.tar.xz")); err != nil {
		t.Fatalf("archive: %v", err)
	}
}
