// Package processes holds the geoprocess catalogue: each process binds a
// typed descriptor to an execution routine producing file artifacts.
package processes

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"hydroproc/internal/schema"
)

// Run carries one invocation's resolved inputs and collects its outputs.
// Workdir is a private scratch directory; output files are expected to be
// written beneath it.
type Run struct {
	Workdir  string
	Literals map[string]string // resolved literal inputs, defaults applied
	Files    map[string]string // input name to local path
	outputs  []OutputFile
}

// OutputFile is one produced artifact.
type OutputFile struct {
	Name      string
	Path      string
	MediaType string
}

// Path returns an output file path inside the scratch directory.
func (r *Run) Path(name string) string { return filepath.Join(r.Workdir, name) }

// AddOutput records a produced artifact.
func (r *Run) AddOutput(name, path, mediaType string) {
	r.outputs = append(r.outputs, OutputFile{Name: name, Path: path, MediaType: mediaType})
}

// Outputs lists the artifacts recorded so far.
func (r *Run) Outputs() []OutputFile { return r.outputs }

// Process is one entry of the catalogue.
type Process interface {
	Descriptor() *schema.Descriptor
	Execute(ctx context.Context, r *Run) error
}

var (
	regMu    sync.RWMutex
	registry = map[string]Process{}
)

// Register adds a process to the catalogue. Duplicate identifiers panic at
// startup.
func Register(p Process) {
	regMu.Lock()
	defer regMu.Unlock()
	id := p.Descriptor().ID
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("process %q registered twice", id))
	}
	registry[id] = p
}

// Get returns the named process.
func Get(id string) (Process, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	p, ok := registry[id]
	return p, ok
}

// All returns the catalogue ordered by identifier.
func All() []Process {
	regMu.RLock()
	defer regMu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Process, len(ids))
	for i, id := range ids {
		out[i] = registry[id]
	}
	return out
}
