package variable

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewell/godbg/internal/dwarfidx"
)

// fakeMem is a byte-addressable in-memory MemReader used to exercise
// discovery without a real traced process.
type fakeMem struct {
	bytes map[uint64]byte
}

func newFakeMem() *fakeMem {
	return &fakeMem{bytes: make(map[uint64]byte)}
}

func (m *fakeMem) putWord(addr, word uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	for i, b := range buf {
		m.bytes[addr+uint64(i)] = b
	}
}

func (m *fakeMem) ReadWord(addr uint64) (uint64, error) {
	b, err := m.ReadBytes(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *fakeMem) ReadBytes(addr uint64, size int) ([]byte, error) {
	out := make([]byte, size)
	for i := 0; i < size; i++ {
		b, ok := m.bytes[addr+uint64(i)]
		if !ok {
			return nil, errNoSuchByte
		}
		out[i] = b
	}
	return out, nil
}

var errNoSuchByte = errBytesUnmapped{}

type errBytesUnmapped struct{}

func (errBytesUnmapped) Error() string { return "address not backed by fake memory" }

// TestDiscoverStructWithPointerMember exercises the struct/pointer
// discovery property: struct P{int a; int *b;} p; int q=5; p.b=&q must
// produce records for p, p.a, p.b, and *p.b, with *p.b's address equal to
// &q and its window containing q's little-endian bytes.
func TestDiscoverStructWithPointerMember(t *testing.T) {
	const (
		intType = iota
		ptrToIntType
		structPType
	)
	table := []dwarfidx.TypeName{
		intType: {Kind: dwarfidx.KindName, Name: "int", ByteSize: 4},
		ptrToIntType: {
			Kind:         dwarfidx.KindRef,
			ByteSize:     8,
			PointeeIndex: intPtr(intType),
		},
		structPType: {
			Kind:        dwarfidx.KindProduct,
			ProductName: "P",
			ByteSize:    16,
			Members: []dwarfidx.Member{
				{FieldName: "a", FieldTypeIndex: intType, ByteOffset: 0},
				{FieldName: "b", FieldTypeIndex: ptrToIntType, ByteOffset: 8},
			},
		},
	}

	const (
		pAddr = uint64(0x1000)
		qAddr = uint64(0x2000)
	)
	mem := newFakeMem()
	mem.putWord(pAddr, 7)           // p.a = 7
	mem.putWord(pAddr+8, qAddr)     // p.b = &q
	mem.putWord(qAddr, 5)           // q = 5
	mem.putWord(qAddr-8, 0)         // padding read before q's window
	mem.putWord(qAddr+8, 0)         // padding read after q's window

	maps := []MemoryMap{
		{From: 0x0, To: 0x10000, Read: true, Write: true},
	}

	root := Variable{Name: "p", Address: pAddr, HasAddr: true, TypeIndex: structPType, Type: table[structPType]}
	discovered := DiscoverWithTable(root, maps, table, mem)

	byPath := map[string]DiscoveredVariable{}
	for _, d := range discovered {
		byPath[d.Path] = d
	}

	for _, want := range []string{"p", "p.a", "p.b", "*p.b"} {
		_, ok := byPath[want]
		require.True(t, ok, "expected discovered path %q, got paths %v", want, keysOf(byPath))
	}

	deref := byPath["*p.b"]
	require.Equal(t, qAddr, deref.Address)
	require.True(t, deref.WindowOK, "*p.b window not decorated")
	offset := int(qAddr - deref.WindowStart)
	require.True(t, offset >= 0 && offset+4 <= len(deref.Window), "*p.b window does not cover its own address")
	got := deref.Window[offset : offset+4]
	require.Equal(t, []byte{0x05, 0x00, 0x00, 0x00}, got)
}

// TestDiscoverSkipsUnmappedPointer confirms that a pointer whose value
// points outside any known mapping stops the walk without emitting a
// dereferenced record.
func TestDiscoverSkipsUnmappedPointer(t *testing.T) {
	const (
		intType = iota
		ptrToIntType
	)
	table := []dwarfidx.TypeName{
		intType:      {Kind: dwarfidx.KindName, Name: "int", ByteSize: 4},
		ptrToIntType: {Kind: dwarfidx.KindRef, ByteSize: 8, PointeeIndex: intPtr(intType)},
	}

	const pAddr = uint64(0x1000)
	mem := newFakeMem()
	mem.putWord(pAddr, 0xDEADBEEF) // points nowhere mapped

	maps := []MemoryMap{{From: 0x0, To: 0x10000, Read: true, Write: true}}

	root := Variable{Name: "p", Address: pAddr, HasAddr: true, TypeIndex: ptrToIntType, Type: table[ptrToIntType]}
	discovered := DiscoverWithTable(root, maps, table, mem)

	for _, d := range discovered {
		require.NotEqual(t, "*p", d.Path, "expected no dereferenced record for an unmapped pointer")
	}
}

func intPtr(i int) *int { return &i }

func keysOf(m map[string]DiscoveredVariable) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
