package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"
)

// Entry is one playable asset in the shared catalog, keyed by title.
// A title doubles as the asset's directory name, so the manifest and
// thumbnail paths always contain it verbatim.
type Entry struct {
	Title         string `json:"title"`
	ManifestPath  string `json:"videoPath"`
	ThumbnailPath string `json:"thumbPath"`
}

// WriteError reports a catalog store that is unavailable or rejected a
// write. It never implies the transcode itself failed.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("catalog write: %v", e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// Store is the persistence abstraction for the catalog.
// Implementations can be file-based, in-memory, or remote. Readers only
// ever see a stable snapshot; Upsert is idempotent per title.
type Store interface {
	// Upsert records the entry, replacing any existing entry with the same
	// title. Concurrent upserts are serialized; an upsert for one title
	// never loses another title's entry.
	Upsert(e Entry) error

	// Get returns the entry for title, if present.
	Get(title string) (Entry, bool, error)

	// List returns a snapshot of all entries in insertion order.
	List() ([]Entry, error)
}

// FileStore keeps the catalog as a single JSON document rewritten atomically
// on every change: read the current snapshot, apply the upsert, then replace
// the file via rename so readers never observe a partial write.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore persisting to path. The file is created
// on first Upsert; a missing file reads as an empty catalog.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Upsert implements Store.Upsert.
func (s *FileStore) Upsert(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return &WriteError{Err: err}
	}

	replaced := false
	for i := range entries {
		if entries[i].Title == e.Title {
			entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, e)
	}

	if err := s.write(entries); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

// Get implements Store.Get.
func (s *FileStore) Get(title string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.Title == title {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// List implements Store.List.
func (s *FileStore) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// load reads the current snapshot. Caller must hold s.mu.
func (s *FileStore) load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", s.path, err)
	}
	return entries, nil
}

// write atomically replaces the catalog document. Caller must hold s.mu.
func (s *FileStore) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return renameio.WriteFile(s.path, data, 0o644)
}
