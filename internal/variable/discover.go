package variable

import (
	"github.com/tracewell/godbg/internal/dwarfidx"
)

// memWindowPad is the small constant of context bytes read on either side
// of a discovered variable's address.
const memWindowPad = 8

// DiscoveredVariable is one record produced by recursive discovery,
// decorated with a raw-memory window for display.
type DiscoveredVariable struct {
	Path    string // e.g. "p", "p.a", "p.b", "*p.b"
	Address uint64
	HasAddr bool
	Type    dwarfidx.TypeName

	WindowStart uint64
	Window      []byte
	WindowOK    bool
}

// Discover walks the type graph reachable from root, emitting one record per
// reachable sub-variable inside mapped memory: named leaves emit directly;
// arrays recurse per element then emit an aggregate; structs recurse per
// member then emit an aggregate; references are dereferenced and, if the
// pointee is mapped, recursed into.
func (r *Resolver) Discover(root Variable, maps []MemoryMap) []DiscoveredVariable {
	return DiscoverWithTable(root, maps, r.idx.TypeTable(), r.mem)
}

// DiscoverWithTable is the table-driven core of Discover, factored out so
// it can be exercised without a real DWARF index.
func DiscoverWithTable(root Variable, maps []MemoryMap, table []dwarfidx.TypeName, mem MemReader) []DiscoveredVariable {
	d := &discoverer{mem: mem, table: table, maps: maps}
	d.walk(root.Path(), root.Address, root.HasAddr, root.TypeIndex, emitMode)
	return d.out
}

// Path returns the display name for the root of a discovery walk.
func (v Variable) Path() string {
	if v.Name != "" {
		return v.Name
	}
	return "<anonymous>"
}

type walkMode int

const (
	emitMode walkMode = iota
	searchMode
)

type discoverer struct {
	mem   MemReader
	table []dwarfidx.TypeName
	maps  []MemoryMap
	out   []DiscoveredVariable
}

func (d *discoverer) walk(path string, addr uint64, hasAddr bool, typeIndex int, mode walkMode) {
	if !hasAddr {
		return
	}
	if _, ok := ContainingMap(d.maps, addr); !ok {
		// Discovery stops if the current address is not contained in
		// any mapped range.
		return
	}
	if typeIndex < 0 || typeIndex >= len(d.table) {
		d.emit(path, addr, hasAddr, dwarfidx.TypeName{}, mode)
		return
	}
	t := d.table[typeIndex]

	switch t.Kind {
	case dwarfidx.KindName:
		d.emit(path, addr, hasAddr, t, mode)

	case dwarfidx.KindArray:
		elemSize := d.sizeOf(t.ElemTypeIndex)
		n := totalCount(t.Counts)
		for i := int64(0); i < n; i++ {
			elemAddr := addr + uint64(i)*uint64(elemSize)
			d.walk(indexPath(path, i), elemAddr, true, t.ElemTypeIndex, emitMode)
		}
		d.emit(path, addr, hasAddr, t, mode)

	case dwarfidx.KindProduct:
		for _, m := range t.Members {
			memberAddr := addr + uint64(m.ByteOffset)
			d.walk(memberPath(path, m.FieldName), memberAddr, true, m.FieldTypeIndex, emitMode)
		}
		d.emit(path, addr, hasAddr, t, mode)

	case dwarfidx.KindRef:
		d.emit(path, addr, hasAddr, t, mode)
		word, err := d.mem.ReadWord(addr)
		if err != nil {
			return
		}
		if t.PointeeIndex == nil {
			return // void pointer: nothing to recurse into
		}
		if _, ok := ContainingMap(d.maps, word); !ok {
			return
		}
		d.walk(derefPath(path), word, true, *t.PointeeIndex, emitMode)
	}
}

func (d *discoverer) emit(path string, addr uint64, hasAddr bool, t dwarfidx.TypeName, mode walkMode) {
	if mode == searchMode {
		return
	}
	rec := DiscoveredVariable{Path: path, Address: addr, HasAddr: hasAddr, Type: t}
	d.decorateWindow(&rec, d.sizeOfType(t))
	d.out = append(d.out, rec)
}

// decorateWindow reads a small memory window around addr for display. A
// failed read is recorded as absent memory, never as an error.
func (d *discoverer) decorateWindow(rec *DiscoveredVariable, size int64) {
	if !rec.HasAddr || rec.Address < memWindowPad {
		return
	}
	if size <= 0 {
		size = 8
	}
	start := rec.Address - memWindowPad
	window, err := d.mem.ReadBytes(start, int(size)+2*memWindowPad)
	if err != nil {
		return
	}
	rec.WindowStart = start
	rec.Window = window
	rec.WindowOK = true
}

func (d *discoverer) sizeOf(typeIndex int) int64 {
	if typeIndex < 0 || typeIndex >= len(d.table) {
		return 8
	}
	return d.sizeOfType(d.table[typeIndex])
}

func (d *discoverer) sizeOfType(t dwarfidx.TypeName) int64 {
	switch t.Kind {
	case dwarfidx.KindName:
		if t.ByteSize > 0 {
			return t.ByteSize
		}
		return 8
	case dwarfidx.KindProduct:
		if t.ByteSize > 0 {
			return t.ByteSize
		}
		return 8
	case dwarfidx.KindRef:
		return 8
	case dwarfidx.KindArray:
		return d.sizeOf(t.ElemTypeIndex) * totalCount(t.Counts)
	default:
		return 8
	}
}

func totalCount(counts []int64) int64 {
	if len(counts) == 0 {
		return 0
	}
	n := int64(1)
	for _, c := range counts {
		n *= c
	}
	return n
}

func indexPath(base string, i int64) string {
	return base + "[" + itoa(i) + "]"
}

func memberPath(base, field string) string {
	return base + "." + field
}

func derefPath(base string) string {
	return "*" + base
}

func itoa(i int64) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
