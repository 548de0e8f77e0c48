package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/smarttechnologies/macho-report/internal/machofile"
	"github.com/smarttechnologies/macho-report/internal/node"
	"github.com/smarttechnologies/macho-report/internal/resolve"
)

// systemPrefixes are the install locations the loader assumes are
// always present.
var systemPrefixes = []string{"/usr/lib", "/System/Library"}

// MachoProcessor implements Processor by parsing one Mach-O file per
// architecture slice, resolving its rpaths and dylib references, and
// producing child candidate Nodes.
type MachoProcessor struct {
	// IgnoreSystem suppresses enqueuing (but not recording) children
	// whose resolved path is under a system prefix.
	IgnoreSystem bool
}

// Process implements Processor.
func (p *MachoProcessor) Process(_ context.Context, n *node.Node) ([]*node.Node, error) {
	n.LoaderPath = filepath.Dir(n.Path)

	if _, err := os.Stat(n.Path); err == nil {
		n.Exists = true
	}

	bin, err := machofile.Parse(n.Path)
	if err != nil {
		n.Parsed = false
		return nil, nil
	}
	n.Parsed = true
	n.Arch = make(map[string]*node.ArchSlice)

	var children []*node.Node

	for _, slice := range bin.Slices {
		if n.RestrictArch != "" && slice.Arch != n.RestrictArch {
			continue
		}

		if slice.IsExecutable() && !n.HasExecutablePath {
			n.ExecutablePath = n.LoaderPath
			n.HasExecutablePath = true
		}

		as := &node.ArchSlice{Arch: slice.Arch}

		declared := substituteRpaths(n, slice.Rpaths)
		as.Rpaths = declared

		effectiveStack := effectiveRpathStack(n.ParentRpathStack, declared)

		for _, ref := range slice.Dylibs {
			dep, child := p.resolveDependency(n, slice.Arch, effectiveStack, ref)
			as.Dependencies = append(as.Dependencies, dep)
			if child != nil {
				children = append(children, child)
			}
		}

		n.Arch[slice.Arch] = as
	}

	return children, nil
}

// substituteRpaths turns one slice's declared rpath strings into their
// absolute post-substitution forms, in load-command order. An rpath
// that fails to substitute cleanly (an @executable_path with no
// ancestor executable context) keeps its literal form; resolution
// against it simply reports non-existence.
func substituteRpaths(n *node.Node, declared []string) []string {
	ctx := resolve.Context{
		LoaderPath:        n.LoaderPath,
		ExecutablePath:    n.ExecutablePath,
		HasExecutablePath: n.HasExecutablePath,
	}

	out := make([]string, 0, len(declared))
	for _, raw := range declared {
		_, abs := resolve.Resolve(ctx, raw)
		out = append(out, abs)
	}
	return out
}

// effectiveRpathStack computes the rpath stack a slice's dependencies
// resolve @rpath against: the parent's stack, extended with the slice's
// own substituted rpaths, deduplicated by absolute path. Order is
// preserved because the loader tries entries in order and the first
// match wins.
func effectiveRpathStack(parent, declared []string) []string {
	seen := make(map[string]struct{}, len(parent)+len(declared))
	stack := make([]string, 0, len(parent)+len(declared))

	for _, r := range parent {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			stack = append(stack, r)
		}
	}
	for _, r := range declared {
		if _, ok := seen[r]; !ok {
			seen[r] = struct{}{}
			stack = append(stack, r)
		}
	}

	return stack
}

// resolveDependency resolves one dynamic-library reference. It returns
// the dependency descriptor to attach to the slice and, if the
// reference resolved to a child worth traversing, the candidate Node to
// enqueue.
func (p *MachoProcessor) resolveDependency(n *node.Node, sliceArch string, effectiveStack []string, raw string) (*node.Dependency, *node.Node) {
	dep := &node.Dependency{Name: raw}

	ctx := resolve.Context{
		LoaderPath:        n.LoaderPath,
		ExecutablePath:    n.ExecutablePath,
		HasExecutablePath: n.HasExecutablePath,
	}

	var exists bool
	var abs string

	if strings.HasPrefix(raw, "@rpath") {
		for _, entry := range effectiveStack {
			candidate := strings.Replace(raw, "@rpath", entry, 1)
			if e, a := resolve.Resolve(ctx, candidate); e {
				exists, abs = true, a
				break
			} else if abs == "" {
				abs = a
			}
		}
	} else {
		exists, abs = resolve.Resolve(ctx, raw)
	}

	if !exists {
		return dep, nil
	}

	system := isSystemPath(abs)

	dep.Resolved = true
	dep.Path = abs
	dep.RestrictArch = sliceArch
	dep.ExecutablePath = n.ExecutablePath
	dep.HasExecutablePath = n.HasExecutablePath
	dep.ParentRpathStack = effectiveStack
	dep.System = system

	child := &node.Node{
		Path:              abs,
		RestrictArch:      sliceArch,
		ExecutablePath:    n.ExecutablePath,
		HasExecutablePath: n.HasExecutablePath,
		ParentRpathStack:  effectiveStack,
		System:            system,
	}

	if system && p.IgnoreSystem {
		return dep, nil
	}

	return dep, child
}

// isSystemPath reports whether path is under one of the loader-provided
// system locations.
func isSystemPath(path string) bool {
	for _, prefix := range systemPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
