package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperifyio/gorestruct/internal/bundle"
	"github.com/hyperifyio/gorestruct/internal/classify"
	"github.com/hyperifyio/gorestruct/internal/fidelity"
	"github.com/hyperifyio/gorestruct/internal/markup"
	"github.com/hyperifyio/gorestruct/internal/styling"
)

// exportArtifacts writes an auditable copy of one job's inputs, intermediate
// state and outputs under ArtifactsDir/<slug>-<hash>/, with a SHA256SUMS
// over the directory and optionally a tar.xz of the whole set.
func (a *App) exportArtifacts(spec jobSpec, preds []classify.Prediction, root *markup.Node, styled []styling.StyledLine, report fidelity.Report) error {
	dir := deriveArtifactsDir(a.cfg.ArtifactsDir, spec.Input)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir artifacts dir: %w", err)
	}

	// 1) verbatim input copy
	if data, err := os.ReadFile(spec.Input); err == nil {
		name := "input" + filepath.Ext(spec.Input)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write input copy: %w", err)
		}
	}

	// 2) intermediate state
	if err := writeJSON(filepath.Join(dir, "labels.json"), preds); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "tree.json"), root); err != nil {
		return err
	}
	if styled != nil {
		if err := writeJSON(filepath.Join(dir, "styled.json"), styled); err != nil {
			return err
		}
	}
	if err := writeJSON(filepath.Join(dir, "report.json"), report); err != nil {
		return err
	}

	// 3) final output copy
	if data, err := os.ReadFile(spec.Output); err == nil {
		if err := os.WriteFile(filepath.Join(dir, filepath.Base(spec.Output)), data, 0o644); err != nil {
			return fmt.Errorf("write output copy: %w", err)
		}
	}

	// 4) SHA256SUMS for all files in the directory
	if err := writeSHA256SUMS(dir); err != nil {
		return err
	}

	// 5) optional tar.xz of the directory
	if a.cfg.ArtifactsTar {
		archive := filepath.Join(a.cfg.ArtifactsDir, filepath.Base(dir)+".tar.xz")
		if err := bundle.Pack(dir, archive); err != nil {
			return fmt.Errorf("pack artifacts: %w", err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeSHA256SUMS(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "SHA256SUMS" || strings.HasSuffix(name, ".tar.xz") {
			continue
		}
		sum, err := sha256File(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		b.WriteString(sum)
		b.WriteString("  ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	return os.WriteFile(filepath.Join(dir, "SHA256SUMS"), []byte(b.String()), 0o644)
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
