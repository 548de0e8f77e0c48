// Package discover turns target groups, named packages or explicit
// file lists, into root *node.Node values for the traversal engine: a
// recursive walk skipping .dSYM bundles, a Mach-O probe filtering out
// non-Mach-O files, and (for named packages) shelling out to the host
// package manager.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/smarttechnologies/macho-report/internal/machofile"
	"github.com/smarttechnologies/macho-report/internal/node"
)

// TargetGroup is a (package-identifier, explicit file paths) pair.
// Package may be empty, in which case Paths alone are enumerated and
// the resulting roots carry no package identifier.
type TargetGroup struct {
	Package string
	Paths   []string
}

// Roots expands every target group into root Nodes, walking each group
// concurrently. A root path that doesn't exist, or a file that isn't
// Mach-O, is silently skipped; neither is an error.
func Roots(ctx context.Context, groups []TargetGroup) ([]*node.Node, error) {
	results := make([][]*node.Node, len(groups))

	eg, ctx := errgroup.WithContext(ctx)
	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			roots, err := expandGroup(ctx, g)
			if err != nil {
				return err
			}
			results[i] = roots
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []*node.Node
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// expandGroup resolves one target group's paths (merging in the
// package's installed file list, if any) and walks each recursively.
func expandGroup(ctx context.Context, g TargetGroup) ([]*node.Node, error) {
	paths := append([]string{}, g.Paths...)

	if g.Package != "" {
		pkgFiles, err := packageFiles(ctx, g.Package)
		if err != nil {
			return nil, fmt.Errorf("enumerating package %s: %w", g.Package, err)
		}
		paths = append(paths, pkgFiles...)
	}

	var roots []*node.Node
	for _, p := range paths {
		found, err := walkOne(p)
		if err != nil {
			continue // root path does not exist: silently skipped
		}
		for _, f := range found {
			roots = append(roots, &node.Node{
				Path:    f,
				Root:    true,
				Package: g.Package,
			})
		}
	}

	return roots, nil
}

// walkOne recursively enumerates every Mach-O file under root,
// skipping .dSYM bundles entirely and filtering out non-Mach-O files.
func walkOne(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A broken entry partway through a walk is skipped, not
			// fatal; only a root that cannot be opened at all surfaces.
			if d == nil {
				return err
			}
			return nil
		}

		if d.IsDir() {
			if strings.HasSuffix(path, ".dSYM") {
				return filepath.SkipDir
			}
			return nil
		}

		if isMachO(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// isMachO attempts a Mach-O parse and reports success, reusing
// internal/machofile rather than a magic-number sniff that would just
// reimplement the front of debug/macho's own Open.
func isMachO(path string) bool {
	_, err := machofile.Parse(path)
	return err == nil
}

// packageFiles shells out to pkgutil to list the files a macOS package
// receipt installed, rooted against the receipt's install prefix.
func packageFiles(ctx context.Context, pkgID string) ([]string, error) {
	out, err := exec.CommandContext(ctx, "pkgutil", "--files", pkgID).Output()
	if err != nil {
		return nil, fmt.Errorf("pkgutil --files %s: %w", pkgID, err)
	}

	volume, err := packageInstallPrefix(ctx, pkgID)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, filepath.Join(volume, line))
	}
	return files, nil
}

// packageInstallPrefix shells out to pkgutil --pkg-info to find the
// volume/location a package receipt was installed under, so relative
// entries from --files can be rooted correctly.
func packageInstallPrefix(ctx context.Context, pkgID string) (string, error) {
	out, err := exec.CommandContext(ctx, "pkgutil", "--pkg-info", pkgID).Output()
	if err != nil {
		return "", fmt.Errorf("pkgutil --pkg-info %s: %w", pkgID, err)
	}

	volume, location := "/", ""
	for _, line := range strings.Split(string(out), "\n") {
		switch {
		case strings.HasPrefix(line, "volume: "):
			volume = strings.TrimPrefix(line, "volume: ")
		case strings.HasPrefix(line, "location: "):
			location = strings.TrimPrefix(line, "location: ")
		}
	}

	return filepath.Join(volume, location), nil
}
