// Package locexpr implements a DWARF location-expression evaluator: a small
// stack machine over the opcodes compilers commonly emit for local/global
// variables (DW_OP_addr, DW_OP_fbreg, DW_OP_bregN, DW_OP_addrx), yielding a
// list of Pieces. Only Address pieces are summed into a result; anything
// else makes the resolution give up rather than guess.
package locexpr

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PieceKind distinguishes what an evaluated stack value represents.
type PieceKind int

const (
	// KindAddress is a machine address contributing to the variable's
	// storage location.
	KindAddress PieceKind = iota
	// KindUnsupported covers every DWARF piece kind this evaluator does
	// not implement (register-direct values, implicit values, TLS,
	// entry values); callers get ErrUnsupportedPiece rather than a guess.
	KindUnsupported
)

// Piece is one output of evaluating a location expression.
type Piece struct {
	Kind    PieceKind
	Address uint64
}

// ErrUnsupportedPiece is returned when the expression resolves to a piece
// kind this evaluator does not implement (register, implicit value, TLS,
// entry value, CFA). Callers treat this as "no value" for the variable,
// not a hard failure of the whole enumeration.
var ErrUnsupportedPiece = errors.New("locexpr: unsupported piece kind")

// Callbacks supplies the live state the evaluator needs to resolve
// register, frame-base, and indexed-address requests.
type Callbacks struct {
	// Register returns the live value of DWARF register regNum.
	Register func(regNum int) (uint64, error)
	// FrameBase returns the current frame base (RBP/x29 projection).
	FrameBase func() (uint64, error)
	// AddrIndex resolves an index into the unit's debug-address section
	// using the unit's address base.
	AddrIndex func(index uint64) (uint64, error)
}

// DWARF expression opcodes used by the common compiler output this
// evaluator targets: register, frame base, and indexed address forms
// resolve; others yield an unresolved variable rather than aborting.
const (
	opAddr       = 0x03
	opDeref      = 0x06
	opConst1u    = 0x08
	opConst1s    = 0x09
	opConst2u    = 0x0a
	opConst2s    = 0x0b
	opConst4u    = 0x0c
	opConst4s    = 0x0d
	opConstu     = 0x10
	opConsts     = 0x11
	opPlus       = 0x22
	opPlusUconst = 0x23
	opLit0       = 0x30
	opLit31      = 0x4f
	opReg0       = 0x50
	opReg31      = 0x6f
	opBreg0      = 0x70
	opBreg31     = 0x8f
	opRegx       = 0x90
	opFbreg      = 0x91
	opBregx      = 0x92
	opPiece      = 0x93
	opAddrx      = 0xa1
)

// Evaluate runs the stack-machine over expr and returns the Pieces it
// produced. A bare expression with no DW_OP_piece ops yields exactly one
// Piece: the final stack value, typed by how it was derived.
func Evaluate(expr []byte, cb Callbacks) ([]Piece, error) {
	e := &evaluator{buf: expr, cb: cb}
	return e.run()
}

type evaluator struct {
	buf   []byte
	pos   int
	stack []uint64
	// topIsAddress tracks whether the current stack top was derived from an
	// address-producing op (addr/fbreg/bregN/addrx/plus-on-address) so we
	// know how to classify the final implicit piece.
	topIsAddress bool
	cb           Callbacks
	pieces       []Piece
}

func (e *evaluator) run() ([]Piece, error) {
	for e.pos < len(e.buf) {
		op := e.buf[e.pos]
		e.pos++

		switch {
		case op == opAddr:
			if e.pos+8 > len(e.buf) {
				return nil, fmt.Errorf("locexpr: truncated DW_OP_addr")
			}
			v := binary.LittleEndian.Uint64(e.buf[e.pos : e.pos+8])
			e.pos += 8
			e.push(v, true)

		case op == opAddrx:
			idx, n := uleb128(e.buf[e.pos:])
			e.pos += n
			if e.cb.AddrIndex == nil {
				return nil, ErrUnsupportedPiece
			}
			addr, err := e.cb.AddrIndex(idx)
			if err != nil {
				return nil, err
			}
			e.push(addr, true)

		case op == opFbreg:
			off, n := sleb128(e.buf[e.pos:])
			e.pos += n
			if e.cb.FrameBase == nil {
				return nil, ErrUnsupportedPiece
			}
			fb, err := e.cb.FrameBase()
			if err != nil {
				return nil, err
			}
			e.push(uint64(int64(fb)+off), true)

		case op >= opBreg0 && op <= opBreg31:
			regNum := int(op - opBreg0)
			off, n := sleb128(e.buf[e.pos:])
			e.pos += n
			if e.cb.Register == nil {
				return nil, ErrUnsupportedPiece
			}
			rv, err := e.cb.Register(regNum)
			if err != nil {
				return nil, err
			}
			e.push(uint64(int64(rv)+off), true)

		case op == opBregx:
			regNum, n := uleb128(e.buf[e.pos:])
			e.pos += n
			off, n2 := sleb128(e.buf[e.pos:])
			e.pos += n2
			if e.cb.Register == nil {
				return nil, ErrUnsupportedPiece
			}
			rv, err := e.cb.Register(int(regNum))
			if err != nil {
				return nil, err
			}
			e.push(uint64(int64(rv)+off), true)

		case op >= opReg0 && op <= opReg31, op == opRegx:
			// The variable lives directly in a register, not at a
			// memory address: unsupported here.
			if op == opRegx {
				_, n := uleb128(e.buf[e.pos:])
				e.pos += n
			}
			return nil, ErrUnsupportedPiece

		case op >= opLit0 && op <= opLit31:
			e.push(uint64(op-opLit0), false)

		case op == opConst1u:
			e.push(uint64(e.buf[e.pos]), false)
			e.pos++
		case op == opConst1s:
			e.push(uint64(int8(e.buf[e.pos])), false)
			e.pos++
		case op == opConst2u:
			e.push(uint64(binary.LittleEndian.Uint16(e.buf[e.pos:])), false)
			e.pos += 2
		case op == opConst2s:
			e.push(uint64(int16(binary.LittleEndian.Uint16(e.buf[e.pos:]))), false)
			e.pos += 2
		case op == opConst4u:
			e.push(uint64(binary.LittleEndian.Uint32(e.buf[e.pos:])), false)
			e.pos += 4
		case op == opConst4s:
			e.push(uint64(int32(binary.LittleEndian.Uint32(e.buf[e.pos:]))), false)
			e.pos += 4
		case op == opConstu:
			v, n := uleb128(e.buf[e.pos:])
			e.pos += n
			e.push(v, false)
		case op == opConsts:
			v, n := sleb128(e.buf[e.pos:])
			e.pos += n
			e.push(uint64(v), false)

		case op == opPlusUconst:
			v, n := uleb128(e.buf[e.pos:])
			e.pos += n
			top := e.pop()
			e.push(top+v, e.topIsAddress)

		case op == opPlus:
			b := e.pop()
			a := e.pop()
			e.push(a+b, e.topIsAddress)

		case op == opDeref:
			return nil, ErrUnsupportedPiece

		case op == opPiece:
			size, n := uleb128(e.buf[e.pos:])
			e.pos += n
			_ = size
			if len(e.stack) == 0 {
				e.pieces = append(e.pieces, Piece{Kind: KindUnsupported})
				continue
			}
			v := e.pop()
			if e.topIsAddress {
				e.pieces = append(e.pieces, Piece{Kind: KindAddress, Address: v})
			} else {
				e.pieces = append(e.pieces, Piece{Kind: KindUnsupported})
			}

		default:
			return nil, fmt.Errorf("locexpr: unsupported opcode %#x", op)
		}
	}

	if len(e.pieces) > 0 {
		return e.pieces, nil
	}
	if len(e.stack) == 0 {
		return nil, fmt.Errorf("locexpr: expression produced no value")
	}
	if !e.topIsAddress {
		return []Piece{{Kind: KindUnsupported}}, nil
	}
	return []Piece{{Kind: KindAddress, Address: e.top()}}, nil
}

func (e *evaluator) push(v uint64, isAddress bool) {
	e.stack = append(e.stack, v)
	e.topIsAddress = isAddress
}

func (e *evaluator) pop() uint64 {
	if len(e.stack) == 0 {
		return 0
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v
}

func (e *evaluator) top() uint64 {
	if len(e.stack) == 0 {
		return 0
	}
	return e.stack[len(e.stack)-1]
}

// PieceAddress returns the raw, undereferenced address of the first piece.
// A multi-piece location (DW_OP_piece) still has one address for the
// variable as a whole — the first piece's — even though its value is
// assembled from every piece.
func PieceAddress(pieces []Piece) (uint64, bool) {
	if len(pieces) == 0 {
		return 0, false
	}
	if pieces[0].Kind != KindAddress {
		return 0, false
	}
	return pieces[0].Address, true
}

// SumValue dereferences every Address piece to a machine word and adds the
// words together. For the common single-piece case this is just the word
// at that one address; a genuine multi-piece expression assembles its value
// by summing the dereferenced word of each piece in turn.
func SumValue(pieces []Piece, readWord func(addr uint64) (uint64, error)) (uint64, bool, error) {
	if len(pieces) == 0 {
		return 0, false, nil
	}

	var sum uint64
	for _, p := range pieces {
		if p.Kind != KindAddress {
			return 0, false, nil
		}
		word, err := readWord(p.Address)
		if err != nil {
			return 0, false, err
		}
		sum += word
	}
	return sum, true, nil
}

func uleb128(b []byte) (uint64, int) {
	var result uint64
	var shift uint
	var i int
	for {
		if i >= len(b) {
			return result, i
		}
		byt := b[i]
		result |= uint64(byt&0x7f) << shift
		i++
		if byt&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, i
}

func sleb128(b []byte) (int64, int) {
	var result int64
	var shift uint
	var i int
	var byt byte
	for {
		if i >= len(b) {
			return result, i
		}
		byt = b[i]
		result |= int64(byt&0x7f) << shift
		shift += 7
		i++
		if byt&0x80 == 0 {
			break
		}
	}
	if shift < 64 && byt&0x40 != 0 {
		result |= -1 << shift
	}
	return result, i
}
