// Package cachekey derives the context-sensitive identity that the
// Concurrent Traversal Engine uses to deduplicate equivalent resolution
// contexts: the same file resolved under different architecture
// restrictions, executable_path anchors, or rpath stacks is a distinct
// node.
package cachekey

import (
	"encoding/json"
	"strings"
)

// separator cannot appear in any of the joined fields: a path can't
// contain NUL, and neither can an architecture name or a JSON array.
const separator = "\x00"

// Identity is the subset of a node's fields that determine its cache
// key: the path itself plus the resolution context it was reached
// under.
type Identity struct {
	Path             string
	RestrictArch     string
	ExecutablePath   string
	ParentRpathStack []string
}

// Derive computes a canonical, order-sensitive string key for id. Two
// identities that differ only in the order of ParentRpathStack produce
// different keys, because the loader's first-match semantics make
// differently-ordered stacks semantically distinct.
func Derive(id Identity) string {
	stack := id.ParentRpathStack
	if stack == nil {
		stack = []string{}
	}

	// encoding/json arrays are order-preserving and their encoding is
	// deterministic for a []string input, which is all a canonical key
	// needs.
	encoded, err := json.Marshal(stack)
	if err != nil {
		// []string can never fail to marshal.
		panic(err)
	}

	return strings.Join([]string{
		id.Path,
		id.RestrictArch,
		id.ExecutablePath,
		string(encoded),
	}, separator)
}
