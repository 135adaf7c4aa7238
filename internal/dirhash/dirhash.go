// Package dirhash computes the canonical content hash of a directory tree
// for verifying build outputs.
//
// The walk is deliberately simple and format-free: entries are visited in
// lexicographic order by full path, and only basenames, file contents, and
// symlink targets are written into the hash — no separators or type tags.
// This means a file named "ab" followed by a directory "c" hashes
// identically to a directory "a" containing a file "bc"; the ambiguity is
// inherited from the system this package reimplements and is left
// unresolved intentionally rather than patched over here.
package dirhash

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/iohannesarnold/yafpm/internal/pkghash"
)

// Calculate writes the canonical hash of the directory tree rooted at dir
// into d, recursing into subdirectories. It returns an error if any path
// under dir cannot be read.
func Calculate(dir string, d *pkghash.Digest) (struct{}, error) {
	return struct{}{}, calculate(dir, d)
}

func calculate(dir string, d *pkghash.Digest) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("dirhash: read %s: %w", dir, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return filepath.Join(dir, entries[i].Name()) < filepath.Join(dir, entries[j].Name())
	})

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if _, err := d.Write([]byte(entry.Name())); err != nil {
			return fmt.Errorf("dirhash: write name for %s: %w", path, err)
		}

		info, err := os.Lstat(path)
		if err != nil {
			return fmt.Errorf("dirhash: lstat %s: %w", path, err)
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return fmt.Errorf("dirhash: readlink %s: %w", path, err)
			}
			if _, err := d.Write([]byte(target)); err != nil {
				return fmt.Errorf("dirhash: write symlink target for %s: %w", path, err)
			}
		case info.IsDir():
			if err := calculate(path, d); err != nil {
				return err
			}
		default:
			if err := hashFile(path, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func hashFile(path string, d *pkghash.Digest) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dirhash: open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(d, f); err != nil {
		return fmt.Errorf("dirhash: hash %s: %w", path, err)
	}
	return nil
}
