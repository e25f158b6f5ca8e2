// Package dwarfidx indexes the DWARF debug sections of a target executable
// and answers address↔line, name→function, and DIE-traversal queries. It
// is built once from a mapped executable and is immutable thereafter.
package dwarfidx

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"os"
)

// Location is a resolved source position.
type Location struct {
	File   string
	Line   int
	Column int
}

// FunctionMeta describes one DW_TAG_subprogram DIE.
type FunctionMeta struct {
	Name        string
	LowPC       uint64
	HighPC      uint64 // size, not end address (DWARF 4+ form)
	ReturnAddr  uint64
	hasLowPC    bool
	hasHighPC   bool
}

// HasPC reports whether low_pc/high_pc were both present on the DIE.
func (f FunctionMeta) HasPC() bool { return f.hasLowPC && f.hasHighPC }

// Contains reports whether pc falls in [LowPC, LowPC+HighPC).
func (f FunctionMeta) Contains(pc uint64) bool {
	return f.HasPC() && pc >= f.LowPC && pc < f.LowPC+f.HighPC
}

// DebugMeta summarizes the loaded binary.
type DebugMeta struct {
	BinaryName string
	FileType   string
	Files      []string
	Functions  int
	Vars       int
}

var (
	// ErrNoSourceUnitForPC is returned by FindLocation when no line-table
	// row's address exactly equals pc. This evaluator only recognizes exact
	// matches; nearest-row search is a known, intentional limitation.
	ErrNoSourceUnitForPC = errors.New("no source unit for pc")

	// ErrFunctionNotFound is returned by FindFunction on a name miss.
	ErrFunctionNotFound = errors.New("function not found")

	// ErrNoFunctionAtPC is returned by FunctionAt when no subprogram DIE
	// contains pc.
	ErrNoFunctionAtPC = errors.New("no function at pc")

	// ErrAddressNotFound is returned by FindAddress when no line-table row
	// matches the requested file/line.
	ErrAddressNotFound = errors.New("address not found for file/line")
)

// Index holds the parsed debug sections of one executable.
type Index struct {
	binaryName string
	fileType   string
	dwarfData  *dwarf.Data
	addrSection []byte // .debug_addr, for indexed-address location pieces

	units []*dwarf.Entry // one per DW_TAG_compile_unit

	typeDecoder *typeDecoder
}

// Load parses the DWARF sections of the ELF executable at path.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dwarfidx: open %s: %w", path, err)
	}
	defer f.Close()

	elfFile, err := elf.NewFile(f)
	if err != nil {
		return nil, fmt.Errorf("dwarfidx: parse ELF: %w", err)
	}

	data, err := elfFile.DWARF()
	if err != nil {
		return nil, fmt.Errorf("dwarfidx: parse DWARF: %w", err)
	}

	idx := &Index{
		binaryName: path,
		fileType:   elfFile.Type.String(),
		dwarfData:  data,
	}
	if sec := elfFile.Section(".debug_addr"); sec != nil {
		if b, err := sec.Data(); err == nil {
			idx.addrSection = b
		}
	}
	idx.typeDecoder = newTypeDecoder(data)

	if err := idx.indexCompileUnits(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) indexCompileUnits() error {
	r := idx.dwarfData.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return fmt.Errorf("dwarfidx: reading DIEs: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag == dwarf.TagCompileUnit {
			idx.units = append(idx.units, entry)
		}
	}
	return nil
}

// FindLocation scans every unit's line program for a row whose address
// equals pc exactly.
func (idx *Index) FindLocation(pc uint64) (Location, error) {
	for _, cu := range idx.units {
		lr, err := idx.dwarfData.LineReader(cu)
		if err != nil || lr == nil {
			continue
		}
		var entry dwarf.LineEntry
		for lr.Next(&entry) == nil {
			if entry.Address == pc && !entry.EndSequence {
				file := ""
				if entry.File != nil {
					file = entry.File.Name
				}
				return Location{File: file, Line: entry.Line, Column: entry.Column}, nil
			}
		}
	}
	return Location{}, ErrNoSourceUnitForPC
}

// FindAddress scans line programs for the first row matching (file, line);
// ties are broken by iteration order across units.
func (idx *Index) FindAddress(file string, line int) (uint64, error) {
	for _, cu := range idx.units {
		lr, err := idx.dwarfData.LineReader(cu)
		if err != nil || lr == nil {
			continue
		}
		var entry dwarf.LineEntry
		for lr.Next(&entry) == nil {
			if entry.EndSequence {
				continue
			}
			if entry.Line == line && entry.File != nil && (entry.File.Name == file || baseName(entry.File.Name) == baseName(file)) {
				return entry.Address, nil
			}
		}
	}
	return 0, ErrAddressNotFound
}

// FindFunction scans every DW_TAG_subprogram DIE for a DW_AT_name match.
func (idx *Index) FindFunction(name string) (FunctionMeta, error) {
	r := idx.dwarfData.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return FunctionMeta{}, fmt.Errorf("dwarfidx: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		n, _ := entry.Val(dwarf.AttrName).(string)
		if n != name {
			continue
		}
		return subprogramMeta(entry), nil
	}
	return FunctionMeta{}, ErrFunctionNotFound
}

// FunctionAt returns the subprogram whose [low_pc, low_pc+high_pc) contains pc.
func (idx *Index) FunctionAt(pc uint64) (FunctionMeta, error) {
	r := idx.dwarfData.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return FunctionMeta{}, fmt.Errorf("dwarfidx: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		meta := subprogramMeta(entry)
		if meta.Contains(pc) {
			return meta, nil
		}
	}
	return FunctionMeta{}, ErrNoFunctionAtPC
}

// AllFunctions returns every DW_TAG_subprogram DIE as a FunctionMeta,
// sorted by low_pc, for deterministic scripting.
func (idx *Index) AllFunctions() []FunctionMeta {
	var out []FunctionMeta
	r := idx.dwarfData.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag != dwarf.TagSubprogram {
			continue
		}
		out = append(out, subprogramMeta(entry))
	}
	sortFunctionsByLowPC(out)
	return out
}

func sortFunctionsByLowPC(fns []FunctionMeta) {
	for i := 1; i < len(fns); i++ {
		for j := i; j > 0 && fns[j].LowPC < fns[j-1].LowPC; j-- {
			fns[j], fns[j-1] = fns[j-1], fns[j]
		}
	}
}

// DebugMeta returns counts of variables and functions, the unique unit
// names, and the file type of the object.
func (idx *Index) DebugMeta() DebugMeta {
	var (
		vars, fns int
		seen      = map[string]bool{}
		files     []string
	)
	r := idx.dwarfData.Reader()
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		switch entry.Tag {
		case dwarf.TagVariable:
			vars++
		case dwarf.TagSubprogram:
			fns++
		case dwarf.TagCompileUnit:
			if n, ok := entry.Val(dwarf.AttrName).(string); ok && !seen[n] {
				seen[n] = true
				files = append(files, n)
			}
		}
	}
	return DebugMeta{
		BinaryName: idx.binaryName,
		FileType:   idx.fileType,
		Files:      files,
		Functions:  fns,
		Vars:       vars,
	}
}

// Reader returns a fresh DIE reader over the whole debug_info section, for
// DumpDwarf and for callers (variable.Resolver) that need raw DIE traversal.
func (idx *Index) Reader() *dwarf.Reader { return idx.dwarfData.Reader() }

// Data exposes the underlying *dwarf.Data for callers that need
// location-list or type lookups beyond this package's surface.
func (idx *Index) Data() *dwarf.Data { return idx.dwarfData }

// DecodeType resolves the DW_AT_type reference on entry, memoized by DIE
// offset (see types.go).
func (idx *Index) DecodeType(entry *dwarf.Entry) (TypeName, error) {
	return idx.typeDecoder.decodeFromEntry(entry)
}

// DecodeTypeOffset resolves a type by its DIE offset directly.
func (idx *Index) DecodeTypeOffset(off dwarf.Offset) (TypeName, error) {
	return idx.typeDecoder.decodeOffset(off)
}

// DecodeTypeIndex resolves entry's DW_AT_type and returns both its index in
// TypeTable() and the decoded TypeName, for callers (variable discovery)
// that need to keep walking the flat type graph by index.
func (idx *Index) DecodeTypeIndex(entry *dwarf.Entry) (int, TypeName, error) {
	return idx.typeDecoder.decodeIndexFromEntry(entry)
}

func subprogramMeta(entry *dwarf.Entry) FunctionMeta {
	meta := FunctionMeta{}
	if n, ok := entry.Val(dwarf.AttrName).(string); ok {
		meta.Name = n
	}
	if lp, ok := entry.Val(dwarf.AttrLowpc).(uint64); ok {
		meta.LowPC = lp
		meta.hasLowPC = true
	}
	// DWARF 4+ encodes high_pc as a size (Udata/Uconst) relative to
	// low_pc; the Addr (absolute end PC) form is not recognized.
	// debug/dwarf returns the size forms as int64 and the Addr form as uint64.
	if hp, ok := entry.Val(dwarf.AttrHighpc).(int64); ok {
		meta.HighPC = uint64(hp)
		meta.hasHighPC = true
	}
	return meta
}

// AddrIndexForUnit resolves a DW_OP_addrx operand against cu's
// DW_AT_addr_base within the .debug_addr section.
func (idx *Index) AddrIndexForUnit(cu *dwarf.Entry, index uint64) (uint64, error) {
	if idx.addrSection == nil {
		return 0, fmt.Errorf("dwarfidx: no .debug_addr section")
	}
	base, _ := cu.Val(dwarf.AttrAddrBase).(int64)
	off := uint64(base) + index*8
	if off+8 > uint64(len(idx.addrSection)) {
		return 0, fmt.Errorf("dwarfidx: addr index %d out of range", index)
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(idx.addrSection[off+uint64(i)])
	}
	return v, nil
}

// CompileUnitFor returns the compile-unit DIE enclosing the DIE at off, used
// to resolve that DIE's unit-relative constructs (indexed addresses).
func (idx *Index) CompileUnitFor(off dwarf.Offset) (*dwarf.Entry, error) {
	for i, cu := range idx.units {
		lowBound := cu.Offset
		var highBound dwarf.Offset
		if i+1 < len(idx.units) {
			highBound = idx.units[i+1].Offset
		} else {
			highBound = dwarf.Offset(1<<63 - 1)
		}
		if off >= lowBound && off < highBound {
			return cu, nil
		}
	}
	return nil, fmt.Errorf("dwarfidx: no compile unit contains offset %v", off)
}

// Units returns every indexed compile unit DIE.
func (idx *Index) Units() []*dwarf.Entry { return idx.units }

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
