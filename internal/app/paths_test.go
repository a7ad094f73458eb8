package app

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Annual Report 2024", "annual-report-2024"},
		{"  --Weird__Name--  ", "weird-name"},
		{"", "document"},
		{"///", "document"},
	}
	for _, tc := range cases {
		if got := slugify(tc.in); got != tc.want {
			t.Fatalf("slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeriveArtifactsDirStableAndDistinct(t *testing.T) {
	a := deriveArtifactsDir("art", "/data/report.txt")
	if a != deriveArtifactsDir("art", "/data/report.txt") {
		t.Fatal("derived dir not stable")
	}
	if b := deriveArtifactsDir("art", "/other/report.txt"); a == b {
		t.Fatal("same basename from different inputs must not collide")
	}
	if !strings.HasPrefix(filepath.Base(a), "report-") {
		t.Fatalf("dir %q not named from the input", a)
	}
}

func TestDeriveBundlePaths(t *testing.T) {
	dir, archive := deriveBundlePaths(filepath.Join("out", "final.xml"), "My Book")
	if dir != filepath.Join("out", "my-book-bundle") {
		t.Fatalf("dir = %q", dir)
	}
	if archive != filepath.Join("out", "my-book.tar.xz") {
		t.Fatalf("archive = %q", archive)
	}
}
