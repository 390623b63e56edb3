// internal/hostmap/hostmap.go
//
// Durable hostname → database-name registry.
//
// Context
// -------
// The registry is the single source of truth the request-time resolver
// depends on: every provisioned hostname maps to the database that holds
// its tables.  It is persisted as one pretty-printed JSON snapshot under
// the platform content directory, shared with the PHP side (the
// wp-config bootstrap snippet reads the same file).
//
// Writes are read-modify-write over the whole snapshot, guarded by a
// process mutex and committed via temp-file + atomic rename so a lost
// concurrent write cannot silently misroute traffic.
//
// Notes
// -----
// • A missing snapshot file is an empty map, never an error.
// • Entries for deleted sites are left in place; no garbage collection.
package hostmap

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the snapshot file created under the content directory.
const FileName = "db-map.json"

// Registry serialises access to one snapshot file.
type Registry struct {
	mu   sync.Mutex
	path string
}

// New returns a Registry persisting to `<contentDir>/db-map.json`.
func New(contentDir string) *Registry {
	return &Registry{path: filepath.Join(contentDir, FileName)}
}

// Path exposes the snapshot location, needed by the wp-config patcher.
func (r *Registry) Path() string { return r.path }

// Get returns the database name mapped to host.  ok is false when the
// host is unknown or the snapshot does not exist yet.
func (r *Registry) Get(host string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.load()
	if err != nil {
		return "", false, err
	}
	db, ok := m[host]
	return db, ok, nil
}

// Put sets or overwrites the entry for host and persists the snapshot.
func (r *Registry) Put(host, dbName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, err := r.load()
	if err != nil {
		return err
	}
	m[host] = dbName
	return r.store(m)
}

// All returns a copy of the whole mapping, for admin listings.
func (r *Registry) All() (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// load reads the snapshot; a missing file yields an empty map.
func (r *Registry) load() (map[string]string, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	m := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// store writes the full map to a temp file in the same directory, then
// renames it over the snapshot.  Rename is atomic on POSIX filesystems,
// so readers never observe a torn file.
func (r *Registry) store(m map[string]string) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, FileName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, r.path)
}
