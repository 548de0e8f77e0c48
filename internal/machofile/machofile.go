// Package machofile wraps the standard library's debug/macho package,
// presenting a single architecture-slice view over both thin and fat
// (universal) Mach-O binaries.
package machofile

import (
	"debug/macho"
	"fmt"
)

// Slice is one architecture's worth of a Mach-O binary: its declared
// rpaths and dynamic-library references, in load-command order.
type Slice struct {
	Arch   string
	Type   macho.Type
	Rpaths []string
	Dylibs []string
}

// Binary is a parsed Mach-O file, thin or fat, as a list of Slices.
type Binary struct {
	Slices []Slice
}

// Parse opens path and extracts every architecture slice's rpaths and
// dylib references. It first attempts a fat (universal) parse, falling
// back to a single-architecture parse, mirroring the standard library's
// own OpenFat/Open split.
func Parse(path string) (*Binary, error) {
	if ff, err := macho.OpenFat(path); err == nil {
		defer ff.Close()

		b := &Binary{}
		for _, arch := range ff.Arches {
			slice, err := sliceFromFile(arch.File)
			if err != nil {
				return nil, fmt.Errorf("parsing fat arch %s of %s: %w", archName(arch.Cpu), path, err)
			}
			b.Slices = append(b.Slices, slice)
		}
		return b, nil
	} else if err != macho.ErrNotFat {
		return nil, fmt.Errorf("probing %s as fat Mach-O: %w", path, err)
	}

	f, err := macho.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	slice, err := sliceFromFile(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &Binary{Slices: []Slice{slice}}, nil
}

func sliceFromFile(f *macho.File) (Slice, error) {
	s := Slice{
		Arch: archName(f.Cpu),
		Type: f.Type,
	}

	for _, l := range f.Loads {
		switch lc := l.(type) {
		case *macho.Rpath:
			s.Rpaths = append(s.Rpaths, lc.Path)
		case *macho.Dylib:
			s.Dylibs = append(s.Dylibs, lc.Name)
		}
	}

	return s, nil
}

// archName maps a Mach-O CPU type to the architecture name used
// throughout node keys and @rpath/restrict_arch bookkeeping.
func archName(cpu macho.Cpu) string {
	switch cpu {
	case macho.CpuAmd64:
		return "x86_64"
	case macho.CpuArm64:
		return "arm64"
	case macho.Cpu386:
		return "i386"
	case macho.CpuArm:
		return "arm"
	case macho.CpuPpc:
		return "ppc"
	case macho.CpuPpc64:
		return "ppc64"
	default:
		return fmt.Sprintf("cpu-%#x", uint32(cpu))
	}
}

// IsExecutable reports whether a slice's load type is a main executable.
func (s Slice) IsExecutable() bool {
	return s.Type == macho.TypeExec
}
