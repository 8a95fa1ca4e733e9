// Package dedup implements the Deduplication Index: a digest-to-path
// map that is consulted at Initiate and updated on a successful
// finalization, so identical content is stored once. It is intentionally a thin, pluggable contract (Lookup/Register)
// so a real key-value store can replace the JSON-file implementation
// without touching the Session Manager.
package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Existence is used by Lookup to validate that an indexed path still
// has a backing object, so stale entries left behind by out-of-band
// deletion are treated as absent rather than surfaced as errors.
type Existence interface {
	Exists(relativePath string) bool
}

// Index is a JSON-file-backed digest -> relative path map.
type Index struct {
	path string
	mu   sync.Mutex
}

// New returns an Index persisted at path. The file is created lazily on
// first Register; a missing file is equivalent to an empty index.
func New(path string) *Index {
	return &Index{path: path}
}

func (idx *Index) load() (map[string]string, error) {
	data, err := os.ReadFile(idx.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dedup: read index: %w", err)
	}

	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("dedup: decode index: %w", err)
	}
	return entries, nil
}

func (idx *Index) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("dedup: encode index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(idx.path), 0o755); err != nil {
		return fmt.Errorf("dedup: create index dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(idx.path), "dedup_*.tmp")
	if err != nil {
		return fmt.Errorf("dedup: create temp index: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("dedup: write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dedup: close index: %w", err)
	}

	if err := os.Rename(tmpPath, idx.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("dedup: rename index: %w", err)
	}
	return nil
}

// Lookup returns the relative path previously registered for digest, and
// whether a usable entry was found. An entry whose backing object no
// longer exists per store is treated as absent, not as an error.
func (idx *Index) Lookup(digest string, store Existence) (string, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries, err := idx.load()
	if err != nil {
		return "", false, err
	}

	relPath, ok := entries[digest]
	if !ok {
		return "", false, nil
	}
	if !store.Exists(relPath) {
		return "", false, nil
	}
	return relPath, true, nil
}

// Register upserts digest -> relativePath, persisting the full index.
func (idx *Index) Register(digest, relativePath string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	entries, err := idx.load()
	if err != nil {
		return err
	}

	entries[digest] = relativePath
	return idx.save(entries)
}
