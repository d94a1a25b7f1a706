package dexmodel

import (
	"fmt"
	"sync"
)

// Registry interns Classes by name so that repeated lookups return the
// same pointer, making pointer equality a valid identity check everywhere
// else in the packer. It is the only place that constructs a Class; the
// mutable fields (PerfSensitive, Renameable) are set by its callers, such
// as the universe loader and the orchestrator.
type Registry struct {
	mu      sync.Mutex
	classes map[string]*Class
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classes: make(map[string]*Class)}
}

// NewClass interns and returns the Class named name, creating it on first
// use. Subsequent calls with the same name return the same pointer.
func (r *Registry) NewClass(name string) *Class {
	r.mu.Lock()
	defer r.mu.Unlock()

	cls, ok := r.classes[name]
	if ok {
		return cls
	}

	cls = &Class{Name: name, Renameable: true, InterdexSubgroup: NoSubgroup}
	r.classes[name] = cls

	return cls
}

// Lookup returns the interned Class named name, if any.
func (r *Registry) Lookup(name string) (*Class, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cls, ok := r.classes[name]

	return cls, ok
}

// All returns every interned Class, in no particular order. Callers that
// need determinism should sort by Name.
func (r *Registry) All() []*Class {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Class, 0, len(r.classes))
	for _, cls := range r.classes {
		out = append(out, cls)
	}

	return out
}

// Len reports how many classes are interned.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.classes)
}

// CanaryClassFormat is the printf pattern classic dex packers use to mint
// a per-container marker interface: a zero-method, zero-field interface
// named after its container ordinal, kept unrenamed so tooling downstream
// can identify which container a class landed in.
const CanaryClassFormat = "Lsecondary/dex%02d/Canary;"

// Canary mints (or returns, if already minted) the canary interface class
// for container ordinal n, interning it the same as any other class.
func (r *Registry) Canary(n int) *Class {
	name := fmt.Sprintf(CanaryClassFormat, n)

	r.mu.Lock()
	defer r.mu.Unlock()

	cls, ok := r.classes[name]
	if ok {
		return cls
	}

	cls = &Class{
		Name:             name,
		IsInterface:      true,
		Renameable:       false,
		InterdexSubgroup: NoSubgroup,
		Canary:           true,
	}
	r.classes[name] = cls

	return cls
}
