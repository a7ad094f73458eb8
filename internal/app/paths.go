package app

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowers s and replaces every non-alphanumeric run with a hyphen.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "document"
	}
	return s
}

// shortHash returns a stable 12-hex-digit digest of s, used to keep derived
// directory names collision-free when two inputs share a slug.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])[:12]
}

// deriveArtifactsDir returns the per-job artifacts directory for the given
// input path.
func deriveArtifactsDir(root, inputPath string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(root, slugify(base)+"-"+shortHash(inputPath))
}

// deriveBundlePaths returns the fragment directory and archive path for a
// bundled document, both named from the document title.
func deriveBundlePaths(outputPath, title string) (dir, archive string) {
	root := filepath.Dir(outputPath)
	slug := slugify(title)
	return filepath.Join(root, slug+"-bundle"), filepath.Join(root, slug+".tar.xz")
}
