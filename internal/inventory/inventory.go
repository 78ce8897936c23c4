// Package inventory scans and prunes the fixtures directory for the goldtape
// CLI. It treats every regular file carrying the configured extension as one
// fixture, mirroring the store's path layout.
package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Entry describes one fixture file on disk.
type Entry struct {
	Identifier string
	Path       string
	Size       int64
	ModTime    time.Time
}

// Scan lists the fixtures under dir, sorted by identifier. A missing
// directory yields an empty inventory rather than an error.
func Scan(dir, ext string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan fixtures dir %s: %w", dir, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if ext != "" && !strings.HasSuffix(name, ext) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("stat fixture %s: %w", name, err)
		}
		entries = append(entries, Entry{
			Identifier: strings.TrimSuffix(name, ext),
			Path:       filepath.Join(dir, name),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Identifier < entries[j].Identifier
	})
	return entries, nil
}

// Prune deletes fixtures whose modification time is older than the cutoff and
// returns the removed entries. A zero cutoff removes everything.
func Prune(dir, ext string, olderThan time.Duration, now time.Time) ([]Entry, error) {
	entries, err := Scan(dir, ext)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-olderThan)
	var removed []Entry
	for _, entry := range entries {
		if olderThan > 0 && entry.ModTime.After(cutoff) {
			continue
		}
		if err := os.Remove(entry.Path); err != nil {
			return removed, fmt.Errorf("remove fixture %s: %w", entry.Identifier, err)
		}
		removed = append(removed, entry)
	}
	return removed, nil
}
