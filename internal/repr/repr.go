// Package repr serializes an engine.Report to and from JSON: a
// dedicated translation layer between the engine's Go-shaped domain
// structs and the wire format, rather than json tags bolted directly
// onto engine.Report itself.
package repr

import (
	"encoding/json"
	"fmt"

	"github.com/smarttechnologies/macho-report/internal/engine"
)

// wireReport mirrors engine.Report for JSON purposes.
type wireReport struct {
	Groups []wireGroup `json:"groups"`
}

type wireGroup struct {
	Package string     `json:"package"`
	Roots   []wireRoot `json:"roots"`
}

type wireRoot struct {
	Path      string              `json:"path"`
	Package   string              `json:"package"`
	Exists    bool                `json:"exists"`
	Parsed    bool                `json:"parsed"`
	Satisfied bool                `json:"satisfied"`
	Arch      map[string]wireArch `json:"arch,omitempty"`
	Missing   []wireMissing       `json:"missing,omitempty"`
}

type wireArch struct {
	Arch         string    `json:"arch"`
	Rpaths       []string  `json:"rpaths,omitempty"`
	Dependencies []wireDep `json:"dependencies,omitempty"`
}

type wireDep struct {
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	System bool   `json:"system,omitempty"`
}

type wireMissing struct {
	Dependency wireDep       `json:"dependency"`
	Nested     []wireMissing `json:"nested,omitempty"`
}

// Marshal renders r as indented JSON.
func Marshal(r *engine.Report) ([]byte, error) {
	out, err := json.MarshalIndent(toWire(r), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}
	return out, nil
}

// Unmarshal parses JSON previously produced by Marshal back into an
// engine.Report (used by the round-trip test and by any downstream
// tooling that re-reads a saved report).
func Unmarshal(data []byte) (*engine.Report, error) {
	var w wireReport
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}
	return fromWire(&w), nil
}

func toWire(r *engine.Report) *wireReport {
	w := &wireReport{}
	for _, g := range r.Groups {
		wg := wireGroup{Package: g.Package}
		for _, root := range g.Roots {
			wg.Roots = append(wg.Roots, toWireRoot(root))
		}
		w.Groups = append(w.Groups, wg)
	}
	return w
}

func toWireRoot(rr engine.RootReport) wireRoot {
	wr := wireRoot{
		Path:      rr.Path,
		Package:   rr.Package,
		Exists:    rr.Exists,
		Parsed:    rr.Parsed,
		Satisfied: rr.Satisfied,
	}
	if len(rr.Arch) > 0 {
		wr.Arch = make(map[string]wireArch, len(rr.Arch))
		for name, a := range rr.Arch {
			wr.Arch[name] = toWireArch(a)
		}
	}
	for _, m := range rr.Missing {
		wr.Missing = append(wr.Missing, toWireMissing(m))
	}
	return wr
}

func toWireArch(a engine.ArchReport) wireArch {
	wa := wireArch{Arch: a.Arch, Rpaths: a.Rpaths}
	for _, d := range a.Dependencies {
		wa.Dependencies = append(wa.Dependencies, toWireDep(d))
	}
	return wa
}

func toWireDep(d engine.DependencyReport) wireDep {
	return wireDep{Name: d.Name, Path: d.Path, System: d.System}
}

func toWireMissing(m engine.MissingReport) wireMissing {
	wm := wireMissing{Dependency: toWireDep(m.Dependency)}
	for _, n := range m.Nested {
		wm.Nested = append(wm.Nested, toWireMissing(n))
	}
	return wm
}

func fromWire(w *wireReport) *engine.Report {
	r := &engine.Report{}
	for _, wg := range w.Groups {
		g := engine.Group{Package: wg.Package}
		for _, wr := range wg.Roots {
			g.Roots = append(g.Roots, fromWireRoot(wr))
		}
		r.Groups = append(r.Groups, g)
	}
	return r
}

func fromWireRoot(wr wireRoot) engine.RootReport {
	rr := engine.RootReport{
		Path:      wr.Path,
		Package:   wr.Package,
		Exists:    wr.Exists,
		Parsed:    wr.Parsed,
		Satisfied: wr.Satisfied,
	}
	if len(wr.Arch) > 0 {
		rr.Arch = make(map[string]engine.ArchReport, len(wr.Arch))
		for name, a := range wr.Arch {
			rr.Arch[name] = fromWireArch(a)
		}
	}
	for _, m := range wr.Missing {
		rr.Missing = append(rr.Missing, fromWireMissing(m))
	}
	return rr
}

func fromWireArch(wa wireArch) engine.ArchReport {
	a := engine.ArchReport{Arch: wa.Arch, Rpaths: wa.Rpaths}
	for _, d := range wa.Dependencies {
		a.Dependencies = append(a.Dependencies, fromWireDep(d))
	}
	return a
}

func fromWireDep(wd wireDep) engine.DependencyReport {
	return engine.DependencyReport{Name: wd.Name, Path: wd.Path, System: wd.System}
}

func fromWireMissing(wm wireMissing) engine.MissingReport {
	m := engine.MissingReport{Dependency: fromWireDep(wm.Dependency)}
	for _, n := range wm.Nested {
		m.Nested = append(m.Nested, fromWireMissing(n))
	}
	return m
}
