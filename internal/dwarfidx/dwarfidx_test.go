package dwarfidx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFunctionMetaContains(t *testing.T) {
	foo := FunctionMeta{Name: "foo", LowPC: 0x1000, HighPC: 0x20, hasLowPC: true, hasHighPC: true}

	assert.True(t, foo.Contains(0x1000))
	assert.True(t, foo.Contains(0x101F))
	assert.False(t, foo.Contains(0x1020), "high_pc is a size, not an end address")
	assert.False(t, foo.Contains(0x0FFF))
}

func TestFunctionMetaContainsRequiresBothPCs(t *testing.T) {
	partial := FunctionMeta{Name: "bar", LowPC: 0x2000, hasLowPC: true}
	assert.False(t, partial.Contains(0x2000))
}

func TestSortFunctionsByLowPC(t *testing.T) {
	fns := []FunctionMeta{
		{Name: "c", LowPC: 0x3000},
		{Name: "a", LowPC: 0x1000},
		{Name: "b", LowPC: 0x2000},
	}
	sortFunctionsByLowPC(fns)

	want := []string{"a", "b", "c"}
	for i, f := range fns {
		assert.Equal(t, want[i], f.Name)
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "prog.c", baseName("/home/user/src/prog.c"))
	assert.Equal(t, "prog.c", baseName("prog.c"))
	assert.Equal(t, "", baseName("/home/user/src/"))
}
