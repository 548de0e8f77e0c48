// Package node defines the dependency-graph data model shared by the
// Mach-O Node Processor, the Concurrent Traversal Engine, and the
// Satisfiability & Exclusion Pass, and the claim-based cache that
// coordinates deduplication across traversal workers.
package node

// Node represents one Mach-O file resolved in one context: the same
// path with a different RestrictArch, ExecutablePath, or
// ParentRpathStack is a distinct Node (see internal/cachekey).
type Node struct {
	Path    string
	Root    bool
	Package string

	RestrictArch      string
	ExecutablePath    string
	HasExecutablePath bool
	ParentRpathStack  []string

	LoaderPath string
	Exists     bool
	Parsed     bool
	System     bool

	// Arch maps architecture name to its slice record. Populated by the
	// Processor; nil/empty means either the file failed to parse or no
	// slice matched RestrictArch (the latter is still Parsed = true and
	// vacuously satisfied).
	Arch map[string]*ArchSlice

	// Fields below are set by the Satisfiability & Exclusion pass only.
	// Whether Satisfied has been computed yet is tracked separately by
	// the pass itself (a visited-set keyed by cache key), not on Node,
	// so that the zero value of Satisfied is never mistaken for "false
	// because computed."
	Satisfied   bool
	Missing     []*MissingEntry
	Excluded    bool
	Pattern     string
	ExclusionID string
}

// ArchSlice is one architecture's load-command-derived data: its own
// declared rpaths (substitution-resolved, not merged with or
// deduplicated against the parent stack) and its dependency
// descriptors, both in load-command order.
type ArchSlice struct {
	Arch         string
	Rpaths       []string
	Dependencies []*Dependency
}

// Dependency is one dynamic-library reference as it appeared in a
// Mach-O load command, plus, if it resolved, the identifying fields of
// the child Node it resolves to.
type Dependency struct {
	Name string

	Resolved          bool
	Path              string
	RestrictArch      string
	ExecutablePath    string
	HasExecutablePath bool
	ParentRpathStack  []string
	System            bool

	// Excluded/Pattern/ExclusionID are set by the Satisfiability pass
	// when evaluating this descriptor's own ancestry-joined match.
	Excluded    bool
	Pattern     string
	ExclusionID string
}

// MissingEntry is a dependency descriptor that the Satisfiability pass
// could not confirm as satisfied, together with the nested missing
// subtree of the Node it resolved to (if any), so a report consumer can
// see the full diagnostic chain without re-walking the cache.
type MissingEntry struct {
	Dependency *Dependency
	Nested     []*MissingEntry
}

// CacheKeyIdentity extracts the fields that determine n's cache key.
func (n *Node) CacheKeyIdentity() (path, restrictArch, executablePath string, parentRpathStack []string) {
	return n.Path, n.RestrictArch, n.ExecutablePath, n.ParentRpathStack
}
