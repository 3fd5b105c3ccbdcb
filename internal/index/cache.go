package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// The snapshot is one gob blob holding the full item slice, vectors
// included. It is read once at construction and rewritten after every
// successful embedding batch.

// loadSnapshot restores items from path. Missing or corrupt snapshots yield
// an empty collection; corruption is noted on stderr but never fatal.
func loadSnapshot(path string) []*Item {
	f, err := os.Open(path)
	if err != nil {
		return nil // no cache yet
	}
	defer f.Close()

	var items []*Item
	if err := gob.NewDecoder(f).Decode(&items); err != nil {
		fmt.Fprintf(os.Stderr, "arbor: index cache %s unreadable, starting empty: %v\n", path, err)
		return nil
	}
	return items
}

// saveSnapshot writes items to path via a temp file and rename, so a crash
// mid-write never corrupts the previous snapshot.
func saveSnapshot(path string, items []*Item) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(items); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
