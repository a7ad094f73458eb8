package bundle

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/hyperifyio/gorestruct/internal/batch"
)

type manifestFile struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	SHA256    string `json:"sha256"`
	BLAKE3    string `json:"blake3"`
}

type manifest struct {
	Generator string         `json:"generator"`
	Files     []manifestFile `json:"files"`
}

// Pack archives the bundle directory as a tar.xz. A manifest with per-file
// checksums goes into the archive first; a SHA256SUMS file over the bundle
// contents is written into the directory and archived with it.
func Pack(dir, outPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read bundle dir: %w", err)
	}

	type packed struct {
		name string
		data []byte
	}
	var files []packed
	var sums strings.Builder
	man := manifest{Generator: "gorestruct"}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name() == "SHA256SUMS" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		sha := sha256.Sum256(data)
		b3 := blake3.Sum256(data)
		fmt.Fprintf(&sums, "%x  %s\n", sha, entry.Name())
		man.Files = append(man.Files, manifestFile{
			Name:      entry.Name(),
			SizeBytes: int64(len(data)),
			SHA256:    hex.EncodeToString(sha[:]),
			BLAKE3:    hex.EncodeToString(b3[:]),
		})
		files = append(files, packed{name: entry.Name(), data: data})
	}

	if err := batch.WriteAtomic(filepath.Join(dir, "SHA256SUMS"), []byte(sums.String()), 0o644); err != nil {
		return fmt.Errorf("write checksums: %w", err)
	}
	manData, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	xzw, err := xz.NewWriter(out)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}
	tw := tar.NewWriter(xzw)

	if err := writeToTar(tw, "manifest.json", manData); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := writeToTar(tw, "SHA256SUMS", []byte(sums.String())); err != nil {
		return fmt.Errorf("write checksums entry: %w", err)
	}
	for _, f := range files {
		if err := writeToTar(tw, f.name, f.data); err != nil {
			return fmt.Errorf("write %s entry: %w", f.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return fmt.Errorf("close xz writer: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func writeToTar(tw *tar.Writer, name string, data []byte) error {
	header := &tar.Header{
		Name: name,
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}
