package engine

import "github.com/tracewell/godbg/internal/dwarfidx"

// maxBacktraceDepth caps the frame-pointer walk.
const maxBacktraceDepth = 20

// Frame is one entry of a Backtrace result.
type Frame struct {
	Function dwarfidx.FunctionMeta
	PC       uint64
}

// Backtrace walks the frame-pointer chain starting at the current PC's
// enclosing subprogram: `return_addr = *(fp + word); fp = *fp`. It stops
// when the function is named "main", when a lookup fails, or at
// maxBacktraceDepth.
func (e *Engine) Backtrace() ([]Frame, error) {
	return backtrace(e.ProgramCounter(), e.curRegs.BasePointer, uint64(e.arch.WordSize()), e.idx.FunctionAt, e.ReadWord)
}

// backtrace is the pure frame-walking core, factored out so it can be
// exercised with a fake function-lookup and a fake memory reader.
func backtrace(pc, fp, wordSize uint64, functionAt func(uint64) (dwarfidx.FunctionMeta, error), readWord func(uint64) (uint64, error)) ([]Frame, error) {
	var frames []Frame

	curPC := pc
	curFP := fp
	for depth := 0; depth < maxBacktraceDepth; depth++ {
		meta, err := functionAt(curPC)
		if err != nil {
			break
		}
		frames = append(frames, Frame{Function: meta, PC: curPC})
		if meta.Name == "main" {
			break
		}

		retAddr, err := readWord(curFP + wordSize)
		if err != nil {
			break
		}
		nextFP, err := readWord(curFP)
		if err != nil {
			break
		}
		curPC = retAddr
		curFP = nextFP
	}
	return frames, nil
}
