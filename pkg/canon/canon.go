// Package canon derives canon identifiers and provides the pluggable canon
// lookup used by Zones.
//
// A canon is a named verification methodology; its ID is the SHA-256 of
// "name:version". There is deliberately no central canon registry: the core
// calls through the Directory interface and never assumes a canon is known
// in advance. StaticDirectory is one in-process implementation, seeded with
// the protocol's well-known canons.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
)

// Canon describes one verification methodology a Zone supports.
type Canon struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ID      string `json:"canon_id"`
}

// ComputeID derives a canon ID: SHA-256("name:version") as lowercase hex.
func ComputeID(name, version string) string {
	sum := sha256.Sum256([]byte(name + ":" + version))
	return hex.EncodeToString(sum[:])
}

// Directory is the pluggable canon lookup. Implementations may be static,
// backed by a store, or delegate to a remote service.
type Directory interface {
	Lookup(canonID string) (Canon, bool)
	List() []Canon
}

// StaticDirectory is a thread-safe in-process Directory.
type StaticDirectory struct {
	mu     sync.RWMutex
	byID   map[string]Canon
	defID  string
}

// NewStaticDirectory creates an empty StaticDirectory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{byID: make(map[string]Canon)}
}

// DefaultDirectory returns a StaticDirectory seeded with the protocol's
// well-known canons. "timestamp:1.0" is the default canon for submissions
// that name none.
func DefaultDirectory() *StaticDirectory {
	d := NewStaticDirectory()
	for _, c := range [][2]string{
		{"timestamp", "1.0"},
		{"lean", "4.x"},
		{"coq", "8.x"},
		{"test-result", "1.0"},
		{"livelihoods", "1.0"},
		{"medical", "1.0"},
	} {
		d.Register(c[0], c[1])
	}
	d.defID = ComputeID("timestamp", "1.0")
	return d
}

// Register adds a canon and returns its ID.
func (d *StaticDirectory) Register(name, version string) string {
	id := ComputeID(name, version)
	d.mu.Lock()
	d.byID[id] = Canon{Name: name, Version: version, ID: id}
	d.mu.Unlock()
	return id
}

// Lookup implements Directory.
func (d *StaticDirectory) Lookup(canonID string) (Canon, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byID[strings.ToLower(canonID)]
	return c, ok
}

// List implements Directory. Canons are returned sorted by name:version.
func (d *StaticDirectory) List() []Canon {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Canon, 0, len(d.byID))
	for _, c := range d.byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name+":"+out[i].Version < out[j].Name+":"+out[j].Version
	})
	return out
}

// DefaultID returns the default canon ID, or "" when none was seeded.
func (d *StaticDirectory) DefaultID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defID
}
