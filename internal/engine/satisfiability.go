package engine

import (
	"sort"

	"github.com/smarttechnologies/macho-report/internal/cachekey"
	"github.com/smarttechnologies/macho-report/internal/exclude"
	"github.com/smarttechnologies/macho-report/internal/node"
)

// Satisfiability runs the single-threaded recursive satisfiability and
// exclusion pass over cache, after the traversal has fully quiesced. It
// mutates every reachable Node's Satisfied, Missing, Excluded, Pattern,
// and ExclusionID fields.
//
// Each node's verdict is memoized at entry, so a node reached through a
// second edge returns the cached result instead of recomputing, and a
// cycle back-edge terminates instead of recursing forever.
func Satisfiability(cache *node.Cache, exclusions []*exclude.Exclusion) {
	s := &satisfier{cache: cache, exclusions: exclusions, computed: make(map[string]bool)}
	for _, n := range cache.Roots() {
		s.visit(n, nil)
	}
}

type satisfier struct {
	cache      *node.Cache
	exclusions []*exclude.Exclusion
	// computed tracks which cache keys have been visited, so a node
	// reached by more than one path is only computed once and a cycle
	// back-edge short-circuits instead of recursing forever.
	computed map[string]bool
}

// visit computes n's Satisfied/Missing/Excluded fields. ancestry is the
// list of path values from the root down to (but not including) n,
// copied at the extension point so sibling branches never observe each
// other's mutations.
func (s *satisfier) visit(n *node.Node, ancestry []string) {
	key := s.keyOf(n)

	if s.computed[key] {
		return
	}
	// Mark computed, and optimistically satisfied, before recursing: a
	// cycle back-edge (the same node reached again while still on the
	// stack) short-circuits above and reads Satisfied, so a cycle
	// participant counts as satisfied for that edge rather than
	// poisoning every node on the cycle. The bottom of this call
	// overwrites Satisfied with the real verdict.
	s.computed[key] = true
	n.Satisfied = true

	matched, pattern, subject := exclude.Match(s.exclusions, ancestry, n.Path)
	n.Excluded = matched
	n.Pattern = pattern
	n.ExclusionID = subject

	if !n.Parsed {
		n.Satisfied = n.Excluded
		n.Missing = nil
		return
	}

	satisfied := true
	var missing []*node.MissingEntry
	childAncestry := append(append([]string{}, ancestry...), n.Path)

	for _, archName := range sortedArchNames(n.Arch) {
		slice := n.Arch[archName]
		for _, dep := range slice.Dependencies {
			depMatched, depPattern, depSubject := exclude.Match(s.exclusions, childAncestry, dependencySubject(dep))
			dep.Excluded = depMatched
			dep.Pattern = depPattern
			dep.ExclusionID = depSubject

			if !dep.Resolved {
				missing = append(missing, &node.MissingEntry{Dependency: dep})
				if !dep.Excluded {
					satisfied = false
				}
				continue
			}

			if dep.System {
				continue
			}

			childKey := cachekey.Derive(cachekey.Identity{
				Path:             dep.Path,
				RestrictArch:     dep.RestrictArch,
				ExecutablePath:   dep.ExecutablePath,
				ParentRpathStack: dep.ParentRpathStack,
			})
			child, ok := s.cache.Get(childKey)
			if !ok {
				// No processed node under this key, so nothing can
				// vouch for the reference; it counts as missing.
				missing = append(missing, &node.MissingEntry{Dependency: dep})
				if !dep.Excluded {
					satisfied = false
				}
				continue
			}

			s.visit(child, childAncestry)

			if !child.Satisfied {
				missing = append(missing, &node.MissingEntry{Dependency: dep, Nested: child.Missing})
				if !dep.Excluded {
					satisfied = false
				}
			}
		}
	}

	n.Satisfied = satisfied
	n.Missing = missing

	if n.Excluded {
		n.Satisfied = true
	}
}

func (s *satisfier) keyOf(n *node.Node) string {
	return cachekey.Derive(cachekey.Identity{
		Path:             n.Path,
		RestrictArch:     n.RestrictArch,
		ExecutablePath:   n.ExecutablePath,
		ParentRpathStack: n.ParentRpathStack,
	})
}

// dependencySubject is the ancestry-joined leaf for a dependency
// descriptor: its resolved path if it resolved, otherwise its raw name.
func dependencySubject(dep *node.Dependency) string {
	if dep.Resolved {
		return dep.Path
	}
	return dep.Name
}

func sortedArchNames(arch map[string]*node.ArchSlice) []string {
	names := make([]string, 0, len(arch))
	for name := range arch {
		names = append(names, name)
	}
	// Deterministic iteration order over Go's randomized map order;
	// each slice's own Dependencies list is already ordered by
	// load-command order, so this affects only report stability.
	sort.Strings(names)
	return names
}
