// Package variable evaluates DWARF location expressions against a live
// register set and memory image to produce variable addresses and values,
// and recursively walks the type graph to discover sub-variables.
package variable

import (
	"debug/dwarf"
	"fmt"

	"github.com/tracewell/godbg/internal/dwarfidx"
	"github.com/tracewell/godbg/internal/locexpr"
)

// Variable is one resolved DWARF variable.
type Variable struct {
	Name      string
	Type      dwarfidx.TypeName
	TypeIndex int
	Address   uint64
	HasAddr   bool
	Value     uint64 // dereferenced word at Address, or sum of words for a multi-piece location
	File      string
	Line      int
}

// MemReader is the memory-access capability the resolver needs from the
// traced child.
type MemReader interface {
	ReadWord(addr uint64) (uint64, error)
	ReadBytes(addr uint64, size int) ([]byte, error)
}

// RegisterSource is the live-register capability the resolver needs.
type RegisterSource interface {
	FrameBase() (uint64, error)
	DwarfRegister(n int) (uint64, error)
}

// Resolver evaluates DWARF variable DIEs against live state.
type Resolver struct {
	idx  *dwarfidx.Index
	mem  MemReader
	regs RegisterSource
}

// New builds a Resolver bound to one DWARF index, memory reader, and
// register source.
func New(idx *dwarfidx.Index, mem MemReader, regs RegisterSource) *Resolver {
	return &Resolver{idx: idx, mem: mem, regs: regs}
}

// ResolveEntry evaluates one DW_TAG_variable (or DW_TAG_formal_parameter)
// DIE's DW_AT_location against live state.
func (r *Resolver) ResolveEntry(entry *dwarf.Entry) (Variable, error) {
	v := Variable{}
	if n, ok := entry.Val(dwarf.AttrName).(string); ok {
		v.Name = n
	}

	if idx, typ, err := r.idx.DecodeTypeIndex(entry); err == nil {
		v.Type = typ
		v.TypeIndex = idx
	}

	if decl, ok := entry.Val(dwarf.AttrDeclFile).(int64); ok {
		_ = decl // the decl-file index is not resolved to a name; File stays empty
	}
	if line, ok := entry.Val(dwarf.AttrDeclLine).(int64); ok {
		v.Line = int(line)
	}

	loc, ok := entry.Val(dwarf.AttrLocation).([]byte)
	if !ok {
		return v, nil // no location: address stays unresolved
	}

	pieces, err := r.evaluateLocation(entry.Offset, loc)
	if err != nil {
		return v, nil // unresolvable locations appear with address=None, not an error
	}

	// The variable's address is the first piece's raw address; its value is
	// the dereferenced sum of every piece. These are independent reads of
	// the same piece list, not one derived from the other — a multi-piece
	// (DW_OP_piece) location has one address but a value assembled from all
	// of its pieces.
	if addr, ok := locexpr.PieceAddress(pieces); ok {
		v.Address = addr
		v.HasAddr = true
	}
	if value, ok, err := locexpr.SumValue(pieces, r.mem.ReadWord); err == nil && ok {
		v.Value = value
	}
	return v, nil
}

func (r *Resolver) evaluateLocation(dieOffset dwarf.Offset, loc []byte) ([]locexpr.Piece, error) {
	cu, cuErr := r.idx.CompileUnitFor(dieOffset)

	cb := locexpr.Callbacks{
		FrameBase: r.regs.FrameBase,
		Register:  r.regs.DwarfRegister,
	}
	if cuErr == nil {
		cb.AddrIndex = func(index uint64) (uint64, error) {
			return r.idx.AddrIndexForUnit(cu, index)
		}
	}

	return locexpr.Evaluate(loc, cb)
}

// EnumerateVariables iterates every DW_TAG_variable DIE in the index,
// evaluating each one's location.
func (r *Resolver) EnumerateVariables() ([]Variable, error) {
	var out []Variable
	reader := r.idx.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, fmt.Errorf("variable: reading DIEs: %w", err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagVariable {
			continue
		}
		v, err := r.ResolveEntry(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
