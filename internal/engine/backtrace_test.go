package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracewell/godbg/internal/dwarfidx"
)

func TestBacktraceStopsAtMain(t *testing.T) {
	// Frame layout: foo (fp=0x100) called by bar (fp=0x200) called by
	// main (fp=0x300). Memory at fp+8 holds the return address, at fp
	// holds the caller's frame pointer.
	const wordSize = 8
	mem := map[uint64]uint64{
		0x100 + 8: 0x2000, // foo's return address, in bar
		0x100:     0x200,  // foo's saved fp -> bar's frame
		0x200 + 8: 0x3000, // bar's return address, in main
		0x200:     0x300,  // bar's saved fp -> main's frame
	}
	functions := map[uint64]dwarfidx.FunctionMeta{
		0x1000: {Name: "foo", LowPC: 0x1000, HighPC: 0x100},
		0x2000: {Name: "bar", LowPC: 0x2000, HighPC: 0x100},
		0x3000: {Name: "main", LowPC: 0x3000, HighPC: 0x100},
	}

	functionAt := func(pc uint64) (dwarfidx.FunctionMeta, error) {
		for _, meta := range functions {
			if pc >= meta.LowPC && pc < meta.LowPC+meta.HighPC {
				return meta, nil
			}
		}
		return dwarfidx.FunctionMeta{}, errors.New("no function at pc")
	}
	readWord := func(addr uint64) (uint64, error) {
		v, ok := mem[addr]
		if !ok {
			return 0, errors.New("unmapped")
		}
		return v, nil
	}

	frames, err := backtrace(0x1000, 0x100, wordSize, functionAt, readWord)
	require.NoError(t, err)
	wantNames := []string{"foo", "bar", "main"}
	require.Len(t, frames, len(wantNames))
	for i, want := range wantNames {
		require.Equal(t, want, frames[i].Function.Name, "frame %d", i)
	}
}

func TestBacktraceStopsOnLookupFailure(t *testing.T) {
	functions := map[uint64]dwarfidx.FunctionMeta{
		0x1000: {Name: "foo", LowPC: 0x1000, HighPC: 0x100},
	}
	functionAt := func(pc uint64) (dwarfidx.FunctionMeta, error) {
		meta, ok := functions[pc]
		if !ok {
			return dwarfidx.FunctionMeta{}, errors.New("no function at pc")
		}
		return meta, nil
	}
	readWord := func(addr uint64) (uint64, error) { return 0, nil }

	frames, err := backtrace(0x1000, 0x100, 8, functionAt, readWord)
	require.NoError(t, err)
	require.Len(t, frames, 1, "next pc unresolvable")
}

func TestBacktraceDepthCap(t *testing.T) {
	// Every frame resolves to the same non-main function and chains to
	// itself, forcing the depth cap to be the only thing that stops the
	// walk.
	meta := dwarfidx.FunctionMeta{Name: "recurse", LowPC: 0x1000, HighPC: 0x100}
	functionAt := func(pc uint64) (dwarfidx.FunctionMeta, error) { return meta, nil }
	readWord := func(addr uint64) (uint64, error) { return 0x1000, nil }

	frames, err := backtrace(0x1000, 0x100, 8, functionAt, readWord)
	require.NoError(t, err)
	require.Len(t, frames, maxBacktraceDepth)
}
