//go:build amd64

package target

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// x86_64 DWARF register numbering, per the System V AMD64 ABI: {0:RAX,
// 1:RDX, 2:RCX, 3:RBX, 4:RSI, 5:RDI, 6:RBP, 7:RSP, 8..15: R8..R15, 16:RIP,
// 17:EFLAGS, 18:CS, 19:SS, 20:DS, 21:ES, 22:FS, 23:GS}.
const (
	dwarfRAX = 0
	dwarfRDX = 1
	dwarfRCX = 2
	dwarfRBX = 3
	dwarfRSI = 4
	dwarfRDI = 5
	dwarfRBP = 6
	dwarfRSP = 7
	dwarfR8  = 8
	dwarfR15 = 15
	dwarfRIP = 16
	dwarfEFL = 17
	dwarfCS  = 18
	dwarfSS  = 19
	dwarfDS  = 20
	dwarfES  = 21
	dwarfFS  = 22
	dwarfGS  = 23
)

type amd64Target struct{}

func newArchTarget() Target { return amd64Target{} }

// TrapBytes is the one-byte INT3 encoding.
func (amd64Target) TrapBytes() []byte { return []byte{0xCC} }

// TrapMask covers exactly the low byte of the word at the breakpoint
// address: word' = (word & ^0xFF) | byte.
func (amd64Target) TrapMask() uint64 { return 0xFF }

func (amd64Target) WordSize() int { return 8 }

func (amd64Target) FrameBaseRegister(regs Registers, fullRegs any) (uint64, error) {
	return regs.BasePointer, nil
}

func (amd64Target) DwarfRegToArchReg(n int, fullRegs any) (uint64, error) {
	regs, ok := fullRegs.(*unix.PtraceRegs)
	if !ok {
		return 0, fmt.Errorf("dwarf reg %d: full register bank has unexpected type %T", n, fullRegs)
	}
	switch n {
	case dwarfRAX:
		return regs.Rax, nil
	case dwarfRDX:
		return regs.Rdx, nil
	case dwarfRCX:
		return regs.Rcx, nil
	case dwarfRBX:
		return regs.Rbx, nil
	case dwarfRSI:
		return regs.Rsi, nil
	case dwarfRDI:
		return regs.Rdi, nil
	case dwarfRBP:
		return regs.Rbp, nil
	case dwarfRSP:
		return regs.Rsp, nil
	case dwarfR8, dwarfR8 + 1, dwarfR8 + 2, dwarfR8 + 3, dwarfR8 + 4, dwarfR8 + 5, dwarfR8 + 6, dwarfR8 + 7:
		r8regs := []uint64{regs.R8, regs.R9, regs.R10, regs.R11, regs.R12, regs.R13, regs.R14, regs.R15}
		return r8regs[n-dwarfR8], nil
	case dwarfRIP:
		return regs.Rip, nil
	case dwarfEFL:
		return regs.Eflags, nil
	case dwarfCS:
		return regs.Cs, nil
	case dwarfSS:
		return regs.Ss, nil
	case dwarfDS:
		return regs.Ds, nil
	case dwarfES:
		return regs.Es, nil
	case dwarfFS:
		return regs.Fs, nil
	case dwarfGS:
		return regs.Gs, nil
	default:
		return 0, fmt.Errorf("dwarf reg %d: %w", n, errInvalidRegister)
	}
}

func (amd64Target) GetRegisters(pid int) (any, Registers, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return nil, Registers{}, err
	}
	proj := Registers{
		InstructionPointer: regs.Rip,
		StackPointer:       regs.Rsp,
		BasePointer:        regs.Rbp,
	}
	return &regs, proj, nil
}

func (amd64Target) SetRegisters(pid int, full any) error {
	regs, ok := full.(*unix.PtraceRegs)
	if !ok {
		return fmt.Errorf("SetRegisters: unexpected type %T", full)
	}
	return unix.PtraceSetRegs(pid, regs)
}

func (amd64Target) SetInstructionPointer(pid int, full any, pc uint64) error {
	regs, ok := full.(*unix.PtraceRegs)
	if !ok {
		return fmt.Errorf("SetInstructionPointer: unexpected type %T", full)
	}
	regs.Rip = pc
	return unix.PtraceSetRegs(pid, regs)
}
