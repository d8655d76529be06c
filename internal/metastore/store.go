// Package metastore persists per-document layout metadata and identity
// exports across editor reloads. Payloads live under the user cache
// dir keyed by a digest of the document URI and are encoded with
// msgpack behind a schema version gate.
package metastore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"glint/internal/diagram"
	"glint/internal/identity"
)

// Bump when the payload format changes; older payloads are discarded,
// the diagram just lays itself out again.
const schemaVersion uint16 = 1

// Payload is the serialized layout state of one document.
type Payload struct {
	Schema    uint16                                `msgpack:"schema"`
	URI       string                                `msgpack:"uri"`
	Positions map[diagram.ElementID]diagram.Point   `msgpack:"positions"`
	Sizes     map[diagram.ElementID]diagram.Size    `msgpack:"sizes"`
	Routes    map[diagram.ElementID][]diagram.Point `msgpack:"routes"`
	Collapsed map[diagram.ElementID]bool            `msgpack:"collapsed"`
	Identity  []identity.LayoutEntry                `msgpack:"identity"`
}

// Store reads and writes payloads on disk. Safe for concurrent use.
type Store struct {
	mu  sync.RWMutex
	dir string
}

// Open initializes a store rooted at the standard cache location.
func Open(app string) (*Store, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir initializes a store at an explicit directory, used by tests
// and the --cache-dir flag.
func OpenDir(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) pathFor(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".layout")
}

// Save writes the document's metadata and identity export.
func (s *Store) Save(uri string, meta *diagram.Metadata, entries []identity.LayoutEntry) error {
	payload := Payload{
		Schema:    schemaVersion,
		URI:       uri,
		Positions: meta.Positions,
		Sizes:     meta.Sizes,
		Routes:    meta.Routes,
		Collapsed: meta.Collapsed,
		Identity:  entries,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.dir, "layout-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := msgpack.NewEncoder(tmp)
	if err := enc.Encode(&payload); err != nil {
		tmp.Close()
		return fmt.Errorf("encode layout payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.pathFor(uri))
}

// Load reads a document's persisted layout. A missing file or a
// payload from another schema version yields (nil, nil): stale layout
// is not an error.
func (s *Store) Load(uri string) (*Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, err := os.Open(s.pathFor(uri))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var payload Payload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode layout payload: %w", err)
	}
	if payload.Schema != schemaVersion {
		return nil, nil
	}
	return &payload, nil
}

// Restore merges a loaded payload into fresh metadata and returns the
// identity entries to seed the registry with.
func (p *Payload) Restore(meta *diagram.Metadata) []identity.LayoutEntry {
	if p == nil {
		return nil
	}
	for id, pos := range p.Positions {
		meta.Positions[id] = pos
	}
	for id, size := range p.Sizes {
		meta.Sizes[id] = size
	}
	for id, route := range p.Routes {
		meta.Routes[id] = route
	}
	for id, collapsed := range p.Collapsed {
		meta.Collapsed[id] = collapsed
	}
	return p.Identity
}

// Delete removes the persisted layout for a URI if present.
func (s *Store) Delete(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.pathFor(uri))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
