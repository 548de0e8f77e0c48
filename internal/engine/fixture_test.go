package engine

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// Mach-O load command / file type constants mirrored from debug/macho,
// kept local so these fixtures don't need to import that package just
// to write a handful of integer literals.
const (
	lcRpath       = 0x8000001c
	lcLoadDylib   = 0xc
	machTypeExec  = 2
	machTypeDylib = 6

	magic64  = 0xfeedfacf
	magicFat = 0xcafebabe

	cpuAmd64 = 0x01000007
	cpuArm64 = 0x0100000c
)

// buildThinMachO assembles a minimal little-endian 64-bit Mach-O file
// with one LC_RPATH per entry in rpaths and one LC_LOAD_DYLIB per entry
// in dylibs, in order, sufficient to exercise the full engine pipeline
// without a checked-in binary fixture (mirrors internal/machofile's own
// test builder, generalized to multiple commands and a caller-supplied
// CPU type for the architecture-restriction scenario).
func buildThinMachO(t *testing.T, filetype uint32, cputype int32, rpaths, dylibs []string) []byte {
	t.Helper()

	var cmds bytes.Buffer
	var ncmds uint32
	for _, r := range rpaths {
		cmds.Write(packRpath(r))
		ncmds++
	}
	for _, d := range dylibs {
		cmds.Write(packDylib(d))
		ncmds++
	}

	var buf bytes.Buffer
	hdr := struct {
		Magic      uint32
		CPUType    int32
		CPUSubtype int32
		FileType   uint32
		NCmds      uint32
		SizeCmds   uint32
		Flags      uint32
		Reserved   uint32
	}{
		Magic:      magic64,
		CPUType:    cputype,
		CPUSubtype: 3,
		FileType:   filetype,
		NCmds:      ncmds,
		SizeCmds:   uint32(cmds.Len()),
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))
	buf.Write(cmds.Bytes())

	return buf.Bytes()
}

func packRpath(path string) []byte {
	const headerSize = 12
	body := append([]byte(path), 0)
	total := align8(headerSize + len(body))
	body = append(body, make([]byte, total-headerSize-len(body))...)

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(lcRpath))
	binary.Write(&b, binary.LittleEndian, uint32(total))
	binary.Write(&b, binary.LittleEndian, uint32(headerSize))
	b.Write(body)
	return b.Bytes()
}

func packDylib(name string) []byte {
	const headerSize = 24
	body := append([]byte(name), 0)
	total := align8(headerSize + len(body))
	body = append(body, make([]byte, total-headerSize-len(body))...)

	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(lcLoadDylib))
	binary.Write(&b, binary.LittleEndian, uint32(total))
	binary.Write(&b, binary.LittleEndian, uint32(headerSize))
	binary.Write(&b, binary.LittleEndian, uint32(0))
	binary.Write(&b, binary.LittleEndian, uint32(0))
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.Write(body)
	return b.Bytes()
}

func align8(n int) int {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}

// writeMachO writes a thin Mach-O built by buildThinMachO to path.
func writeMachO(t *testing.T, path string, filetype uint32, cputype int32, rpaths, dylibs []string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buildThinMachO(t, filetype, cputype, rpaths, dylibs), 0o755))
}

// writeFatMachO writes a fat (universal) Mach-O combining one thin
// slice per entry in slices, keyed by CPU type, for the
// architecture-restriction scenario.
func writeFatMachO(t *testing.T, path string, slices map[int32][]byte) {
	t.Helper()

	const fatHeaderSize = 8
	const fatArchSize = 20

	cputypes := make([]int32, 0, len(slices))
	for cpu := range slices {
		cputypes = append(cputypes, cpu)
	}
	// Deterministic order for reproducible fixtures.
	sort.Slice(cputypes, func(i, j int) bool { return cputypes[i] < cputypes[j] })

	offset := uint32(fatHeaderSize + fatArchSize*len(cputypes))
	var archHeaders bytes.Buffer
	var bodies bytes.Buffer
	for _, cpu := range cputypes {
		data := slices[cpu]
		binary.Write(&archHeaders, binary.BigEndian, cpu)
		binary.Write(&archHeaders, binary.BigEndian, int32(3)) // cpusubtype
		binary.Write(&archHeaders, binary.BigEndian, offset)
		binary.Write(&archHeaders, binary.BigEndian, uint32(len(data)))
		binary.Write(&archHeaders, binary.BigEndian, uint32(0)) // align
		bodies.Write(data)
		offset += uint32(len(data))
	}

	var out bytes.Buffer
	binary.Write(&out, binary.BigEndian, uint32(magicFat))
	binary.Write(&out, binary.BigEndian, uint32(len(cputypes)))
	out.Write(archHeaders.Bytes())
	out.Write(bodies.Bytes())

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o755))
}
