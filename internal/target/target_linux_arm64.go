//go:build arm64

package target

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// aarch64 DWARF register numbering: reg 31 maps to SP, every other number n
// maps to regs[n].
const dwarfSP = 31

type arm64Target struct{}

func newArchTarget() Target { return arm64Target{} }

// TrapBytes is the BRK #0 encoding (0xD4200020, little-endian in memory).
func (arm64Target) TrapBytes() []byte { return []byte{0x20, 0x00, 0x20, 0xD4} }

// TrapMask covers the low 32 bits, matching the instruction's natural
// alignment.
func (arm64Target) TrapMask() uint64 { return 0xFFFFFFFF }

func (arm64Target) WordSize() int { return 8 }

func (arm64Target) FrameBaseRegister(regs Registers, fullRegs any) (uint64, error) {
	return regs.BasePointer, nil
}

func (arm64Target) DwarfRegToArchReg(n int, fullRegs any) (uint64, error) {
	regs, ok := fullRegs.(*unix.PtraceRegsArm64)
	if !ok {
		return 0, fmt.Errorf("dwarf reg %d: full register bank has unexpected type %T", n, fullRegs)
	}
	switch {
	case n == dwarfSP:
		return regs.Sp, nil
	case n >= 0 && n <= 30:
		return regs.Regs[n], nil
	default:
		return 0, fmt.Errorf("dwarf reg %d: %w", n, errInvalidRegister)
	}
}

func (arm64Target) GetRegisters(pid int) (any, Registers, error) {
	var regs unix.PtraceRegsArm64
	if err := unix.PtraceGetRegSetArm64(pid, unix.NT_PRSTATUS, &regs); err != nil {
		return nil, Registers{}, err
	}
	proj := Registers{
		InstructionPointer: regs.Pc,
		StackPointer:       regs.Sp,
		// x29 is the frame-pointer register in the AAPCS64 convention.
		BasePointer: regs.Regs[29],
	}
	return &regs, proj, nil
}

func (arm64Target) SetRegisters(pid int, full any) error {
	regs, ok := full.(*unix.PtraceRegsArm64)
	if !ok {
		return fmt.Errorf("SetRegisters: unexpected type %T", full)
	}
	return unix.PtraceSetRegSetArm64(pid, unix.NT_PRSTATUS, regs)
}

func (arm64Target) SetInstructionPointer(pid int, full any, pc uint64) error {
	regs, ok := full.(*unix.PtraceRegsArm64)
	if !ok {
		return fmt.Errorf("SetInstructionPointer: unexpected type %T", full)
	}
	regs.Pc = pc
	return unix.PtraceSetRegSetArm64(pid, unix.NT_PRSTATUS, regs)
}
