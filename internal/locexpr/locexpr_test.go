package locexpr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dwAddrExpr(addr uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = opAddr
	binary.LittleEndian.PutUint64(buf[1:], addr)
	return buf
}

func TestEvaluateDWAddr(t *testing.T) {
	pieces, err := Evaluate(dwAddrExpr(0x601040), Callbacks{})
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, KindAddress, pieces[0].Kind)
	assert.Equal(t, uint64(0x601040), pieces[0].Address)
}

func TestEvaluateFbreg(t *testing.T) {
	// DW_OP_fbreg -20 (SLEB128 of -20 is 0x6c)
	expr := []byte{opFbreg, 0x6c}
	pieces, err := Evaluate(expr, Callbacks{
		FrameBase: func() (uint64, error) { return 0x7ffee0000100, nil },
	})
	require.NoError(t, err)
	require.Len(t, pieces, 1)
	assert.Equal(t, KindAddress, pieces[0].Kind)
	assert.Equal(t, uint64(0x7ffee00000ec), pieces[0].Address)
}

func TestEvaluateRegisterDirectIsUnsupported(t *testing.T) {
	// DW_OP_reg0: value lives in a register, not a memory address.
	_, err := Evaluate([]byte{opReg0}, Callbacks{
		Register: func(int) (uint64, error) { return 42, nil },
	})
	assert.ErrorIs(t, err, ErrUnsupportedPiece)
}

func TestEvaluateBregPlusOffset(t *testing.T) {
	// DW_OP_breg6 (rbp) -8
	expr := []byte{opBreg0 + 6, 0x78} // sleb128(-8) = 0x78
	pieces, err := Evaluate(expr, Callbacks{
		Register: func(reg int) (uint64, error) {
			assert.Equal(t, 6, reg)
			return 0x1000, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0FF8), pieces[0].Address)
}

func TestPieceAddressUsesFirstPiece(t *testing.T) {
	addr, ok := PieceAddress([]Piece{
		{Kind: KindAddress, Address: 0x2000},
		{Kind: KindAddress, Address: 0x3000},
	})
	assert.True(t, ok)
	assert.Equal(t, uint64(0x2000), addr)
}

func TestPieceAddressUnsupported(t *testing.T) {
	_, ok := PieceAddress([]Piece{{Kind: KindUnsupported}})
	assert.False(t, ok)
}

func TestSumValueSinglePiece(t *testing.T) {
	sum, ok, err := SumValue([]Piece{{Kind: KindAddress, Address: 0x2000}}, func(addr uint64) (uint64, error) {
		assert.Equal(t, uint64(0x2000), addr)
		return 0xdeadbeef, nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(0xdeadbeef), sum)
}

func TestSumValueMultiplePiecesSumsDereferencedWords(t *testing.T) {
	words := map[uint64]uint64{0x2000: 1, 0x3000: 2}
	sum, ok, err := SumValue([]Piece{
		{Kind: KindAddress, Address: 0x2000},
		{Kind: KindAddress, Address: 0x3000},
	}, func(addr uint64) (uint64, error) { return words[addr], nil })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)
}

func TestSumValueUnsupported(t *testing.T) {
	_, ok, err := SumValue([]Piece{{Kind: KindUnsupported}}, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestULEB128(t *testing.T) {
	v, n := uleb128([]byte{0xE5, 0x8E, 0x26})
	assert.Equal(t, uint64(624485), v)
	assert.Equal(t, 3, n)
}

func TestSLEB128Negative(t *testing.T) {
	v, n := sleb128([]byte{0x7F})
	assert.Equal(t, int64(-1), v)
	assert.Equal(t, 1, n)
}
