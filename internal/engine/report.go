package engine

import "github.com/smarttechnologies/macho-report/internal/node"

// Report is the read-only projection over a quiesced, satisfiability-
// computed Cache. Internal bookkeeping used only for logging
// (ExclusionID, Pattern) is stripped.
//
// Groups orders packaged roots before the unlabeled, explicit-file
// section; within a group, roots appear in the order the traversal
// claimed them, which can differ from discovery order when several
// workers run.
type Report struct {
	Groups []Group
}

// Group is every root discovered under one package identifier, or the
// trailing unlabeled group for roots supplied as explicit files.
type Group struct {
	Package string
	Roots   []RootReport
}

// RootReport is one root Node projected for reporting.
type RootReport struct {
	Path      string
	Package   string
	Exists    bool
	Parsed    bool
	Satisfied bool
	Arch      map[string]ArchReport
	Missing   []MissingReport
}

// ArchReport is one architecture slice projected for reporting.
type ArchReport struct {
	Arch         string
	Rpaths       []string
	Dependencies []DependencyReport
}

// DependencyReport is one dependency descriptor projected for
// reporting, with exclusion bookkeeping stripped.
type DependencyReport struct {
	Name   string
	Path   string
	System bool
}

// MissingReport is one unsatisfied dependency chain entry.
type MissingReport struct {
	Dependency DependencyReport
	Nested     []MissingReport
}

// Project walks cache's roots and builds a Report. It must be called
// only after Satisfiability has run; Satisfied/Missing reflect whatever
// state the Nodes happen to carry otherwise.
func Project(cache *node.Cache) *Report {
	order := []string{}
	byPackage := map[string][]RootReport{}

	for _, n := range cache.Roots() {
		if _, ok := byPackage[n.Package]; !ok {
			order = append(order, n.Package)
		}
		byPackage[n.Package] = append(byPackage[n.Package], projectRoot(n))
	}

	r := &Report{}
	for _, pkg := range order {
		if pkg == "" {
			continue
		}
		r.Groups = append(r.Groups, Group{Package: pkg, Roots: byPackage[pkg]})
	}
	if roots, ok := byPackage[""]; ok {
		r.Groups = append(r.Groups, Group{Package: "", Roots: roots})
	}

	return r
}

func projectRoot(n *node.Node) RootReport {
	rr := RootReport{
		Path:      n.Path,
		Package:   n.Package,
		Exists:    n.Exists,
		Parsed:    n.Parsed,
		Satisfied: n.Satisfied,
	}

	if len(n.Arch) > 0 {
		rr.Arch = make(map[string]ArchReport, len(n.Arch))
		for name, slice := range n.Arch {
			rr.Arch[name] = projectArch(slice)
		}
	}

	for _, m := range n.Missing {
		rr.Missing = append(rr.Missing, projectMissing(m))
	}

	return rr
}

func projectArch(slice *node.ArchSlice) ArchReport {
	ar := ArchReport{Arch: slice.Arch, Rpaths: slice.Rpaths}
	for _, dep := range slice.Dependencies {
		ar.Dependencies = append(ar.Dependencies, projectDependency(dep))
	}
	return ar
}

func projectDependency(dep *node.Dependency) DependencyReport {
	return DependencyReport{Name: dep.Name, Path: dep.Path, System: dep.System}
}

func projectMissing(m *node.MissingEntry) MissingReport {
	mr := MissingReport{Dependency: projectDependency(m.Dependency)}
	for _, nested := range m.Nested {
		mr.Nested = append(mr.Nested, projectMissing(nested))
	}
	return mr
}
