// Package checkpoint provides content-addressed run-cache persistence for
// the interdex packer: since a pack run has no partial-progress resume
// (spec: no partial-success mode), what gets cached is a *complete* prior
// run, keyed by a hash of its inputs, so an unchanged rerun can be served
// from disk instead of recomputed.
package checkpoint

// RunState summarizes a completed orchestrator run, persisted alongside
// its metadata so a cache hit can report what it is returning without
// re-reading the cached container sequence.
type RunState struct {
	ClassesTotal      int    `json:"classes_total"`
	ClassesEmitted    int    `json:"classes_emitted"`
	ContainersEmitted int    `json:"containers_emitted"`
	LastContainer     int    `json:"last_container"`
	LastClassName     string `json:"last_class_name"`
}

// Metadata holds run-cache metadata for validation and reuse: which inputs
// produced the cached entry, and a summary of what it contains.
type Metadata struct {
	Version    int               `json:"version"`
	RunKey     string            `json:"run_key"`
	RunHash    string            `json:"run_hash"`
	CreatedAt  string            `json:"created_at"`
	Components []string          `json:"components"`
	RunState   RunState          `json:"run_state"`
	Checksums  map[string]string `json:"checksums"`
}
