package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents. It recreates the directory
// afterwards to leave a valid empty cache location.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeByAge removes prediction cache entries older than maxAge based on file
// modification time. Cache files use the .json extension and are leaf files.
func PurgeByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if now.Sub(info.ModTime().UTC()) <= maxAge {
			return nil
		}
		removed++
		_ = os.Remove(path)
		return nil
	})
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return removed, nil
	}
	return removed, err
}

// EnforceLimits prunes prediction cache entries least-recently-used first
// until the cache fits within maxBytes and maxCount. A zero limit disables
// that dimension.
func EnforceLimits(dir string, maxBytes int64, maxCount int) (int, error) {
	type entry struct {
		path string
		size int64
		mod  time.Time
	}
	var entries []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, entry{path: path, size: info.Size(), mod: info.ModTime()})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mod.Before(entries[j].mod) })
	var total int64
	for _, e := range entries {
		total += e.size
	}
	removed := 0
	for i := range entries {
		over := (maxCount > 0 && len(entries)-i > maxCount) || (maxBytes > 0 && total > maxBytes)
		if !over {
			break
		}
		_ = os.Remove(entries[i].path)
		total -= entries[i].size
		removed++
	}
	return removed, nil
}
