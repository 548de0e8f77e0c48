package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smarttechnologies/macho-report/internal/exclude"
	"github.com/smarttechnologies/macho-report/internal/node"
)

// End-to-end tests over real on-disk fixtures: traversal,
// satisfiability, and projection together.

func TestScenarioPlainResolution(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "opt", "x", "bin", "a")
	libzPath := filepath.Join(dir, "opt", "x", "lib", "libz.dylib")

	writeMachO(t, aPath, machTypeExec, cpuAmd64, nil, []string{"@loader_path/../lib/libz.dylib"})
	writeMachO(t, libzPath, machTypeDylib, cpuAmd64, nil, nil)

	cache := node.NewCache()
	root := &node.Node{Path: aPath, Root: true}
	require.NoError(t, Run(context.Background(), []*node.Node{root}, 4, cache, &MachoProcessor{}))
	Satisfiability(cache, nil)

	require.Equal(t, 2, cache.Len())
	require.True(t, root.Satisfied)
	require.Empty(t, root.Missing)

	report := Project(cache)
	require.Len(t, report.Groups, 1)
	rr := report.Groups[0].Roots[0]
	require.True(t, rr.Satisfied)
	dep := rr.Arch["x86_64"].Dependencies[0]
	require.Equal(t, libzPath, dep.Path)
	require.False(t, dep.System)
}

func TestScenarioMissingDependency(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "bin", "a")
	libDir := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(libDir, 0o755))

	writeMachO(t, aPath, machTypeExec, cpuAmd64,
		[]string{"@loader_path/../lib"},
		[]string{"@rpath/libmissing.dylib"})

	cache := node.NewCache()
	root := &node.Node{Path: aPath, Root: true}
	require.NoError(t, Run(context.Background(), []*node.Node{root}, 4, cache, &MachoProcessor{}))
	Satisfiability(cache, nil)

	require.False(t, root.Satisfied)
	require.Len(t, root.Missing, 1)
	require.Equal(t, "@rpath/libmissing.dylib", root.Missing[0].Dependency.Name)
	require.Empty(t, root.Missing[0].Dependency.Path)
}

func TestScenarioExclusionOverridesMissing(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "bin", "a")
	libDir := filepath.Join(dir, "lib")
	require.NoError(t, os.MkdirAll(libDir, 0o755))

	writeMachO(t, aPath, machTypeExec, cpuAmd64,
		[]string{"@loader_path/../lib"},
		[]string{"@rpath/libmissing.dylib"})

	exclPath := filepath.Join(dir, "exclusions.txt")
	require.NoError(t, os.WriteFile(exclPath,
		[]byte(`.* : @rpath/libmissing\.dylib`+"\n"), 0o644))
	exclusions, err := exclude.Load(exclPath)
	require.NoError(t, err)

	cache := node.NewCache()
	root := &node.Node{Path: aPath, Root: true}
	require.NoError(t, Run(context.Background(), []*node.Node{root}, 4, cache, &MachoProcessor{}))
	Satisfiability(cache, exclusions)

	require.True(t, root.Satisfied)
	require.Len(t, root.Missing, 1)
	require.True(t, root.Missing[0].Dependency.Excluded)
}

func TestScenarioRpathCascade(t *testing.T) {
	rootDir := t.TempDir()
	a := t.TempDir() // stands in for "/A"
	c := t.TempDir() // stands in for "/C"

	aPath := filepath.Join(rootDir, "root")
	bPath := filepath.Join(a, "B.dylib")
	dPath := filepath.Join(a, "D.dylib") // D exists only under A, not C

	writeMachO(t, aPath, machTypeExec, cpuAmd64, []string{a}, []string{"@rpath/B.dylib"})
	writeMachO(t, bPath, machTypeDylib, cpuAmd64, []string{c}, []string{"@rpath/D.dylib"})
	writeMachO(t, dPath, machTypeDylib, cpuAmd64, nil, nil)

	cache := node.NewCache()
	root := &node.Node{Path: aPath, Root: true}
	require.NoError(t, Run(context.Background(), []*node.Node{root}, 4, cache, &MachoProcessor{}))
	Satisfiability(cache, nil)

	var dNode *node.Node
	for _, n := range cache.Nodes() {
		if n.Path == dPath {
			dNode = n
		}
	}
	require.NotNil(t, dNode)
	require.Equal(t, []string{a, c}, dNode.ParentRpathStack)
	require.True(t, dNode.Satisfied)
	require.True(t, root.Satisfied)

	// Each slice records only its own declared rpaths; the inherited
	// stack travels on the child nodes instead.
	require.Equal(t, []string{a}, root.Arch["x86_64"].Rpaths)
}

func TestScenarioCyclicDependencies(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "libA.dylib")
	bPath := filepath.Join(dir, "libB.dylib")

	writeMachO(t, aPath, machTypeDylib, cpuAmd64, nil, []string{"@loader_path/libB.dylib"})
	writeMachO(t, bPath, machTypeDylib, cpuAmd64, nil, []string{"@loader_path/libA.dylib"})

	cache := node.NewCache()
	root := &node.Node{Path: aPath, Root: true}
	require.NoError(t, Run(context.Background(), []*node.Node{root}, 4, cache, &MachoProcessor{}))
	Satisfiability(cache, nil)

	require.True(t, root.Satisfied)
	require.Empty(t, root.Missing)
	for _, n := range cache.Nodes() {
		if n.Root {
			continue
		}
		require.True(t, n.Satisfied, "node %s (%s)", n.Path, n.RestrictArch)
	}
}

func TestScenarioArchitectureRestriction(t *testing.T) {
	fatDir := t.TempDir()
	rootPath := filepath.Join(fatDir, "root")
	fooX86 := filepath.Join(fatDir, "x86", "libfoo.dylib")
	fooArm := filepath.Join(fatDir, "arm", "libfoo.dylib")

	writeMachO(t, fooX86, machTypeDylib, cpuAmd64, nil, nil)
	writeMachO(t, fooArm, machTypeDylib, cpuArm64, nil, nil)

	thinX86 := buildThinMachO(t, machTypeExec, cpuAmd64, nil, []string{"@loader_path/x86/libfoo.dylib"})
	thinArm := buildThinMachO(t, machTypeExec, cpuArm64, nil, []string{"@loader_path/arm/libfoo.dylib"})
	writeFatMachO(t, rootPath, map[int32][]byte{cpuAmd64: thinX86, cpuArm64: thinArm})

	cache := node.NewCache()
	root := &node.Node{Path: rootPath, Root: true}
	require.NoError(t, Run(context.Background(), []*node.Node{root}, 4, cache, &MachoProcessor{}))
	Satisfiability(cache, nil)

	require.True(t, root.Parsed)
	require.Len(t, root.Arch, 2)
	require.True(t, root.Satisfied)

	var x86Child, armChild *node.Node
	for _, n := range cache.Nodes() {
		switch n.Path {
		case fooX86:
			x86Child = n
		case fooArm:
			armChild = n
		}
	}
	require.NotNil(t, x86Child)
	require.NotNil(t, armChild)
	require.Equal(t, "x86_64", x86Child.RestrictArch)
	require.Equal(t, "arm64", armChild.RestrictArch)
}

func TestScenarioSystemSuppression(t *testing.T) {
	origPrefixes := systemPrefixes
	fakeSystemDir := t.TempDir()
	systemPrefixes = []string{fakeSystemDir}
	defer func() { systemPrefixes = origPrefixes }()

	rootDir := t.TempDir()
	aPath := filepath.Join(rootDir, "a")
	sysLib := filepath.Join(fakeSystemDir, "libSystem.B.dylib")

	writeMachO(t, sysLib, machTypeDylib, cpuAmd64, nil, nil)
	writeMachO(t, aPath, machTypeExec, cpuAmd64, nil, []string{sysLib})

	cache := node.NewCache()
	root := &node.Node{Path: aPath, Root: true}
	require.NoError(t, Run(context.Background(), []*node.Node{root}, 4, cache, &MachoProcessor{IgnoreSystem: true}))
	Satisfiability(cache, nil)

	// Only the root itself was processed; the system child was recorded
	// in the descriptor but never enqueued.
	require.Equal(t, 1, cache.Len())

	dep := root.Arch["x86_64"].Dependencies[0]
	require.True(t, dep.Resolved)
	require.True(t, dep.System)
	require.Equal(t, sysLib, dep.Path)

	require.True(t, root.Satisfied)
	require.Empty(t, root.Missing)
}
