package breakpoint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePatcher simulates the memory patching side effects Enable/Disable
// trigger, without a real traced child.
type fakePatcher struct {
	mem           map[uintptr]byte
	failRestore   bool
}

func newFakePatcher() *fakePatcher {
	return &fakePatcher{mem: map[uintptr]byte{0x1000: 0x55}}
}

func (p *fakePatcher) PatchTrap(addr uintptr) ([]byte, error) {
	orig := p.mem[addr]
	p.mem[addr] = 0xCC
	return []byte{orig}, nil
}

func (p *fakePatcher) RestoreOriginal(addr uintptr, original []byte) error {
	if p.failRestore {
		return errors.New("simulated restore failure")
	}
	p.mem[addr] = original[0]
	return nil
}

func TestInstallEnableDisableRestoresOriginalByte(t *testing.T) {
	patcher := newFakePatcher()
	table := New(patcher)

	_, err := table.Install(0x1000, Location{File: "prog.c", Line: 10}, nil)
	require.NoError(t, err)

	require.NoError(t, table.Enable(0x1000))
	assert.Equal(t, byte(0xCC), patcher.mem[0x1000])

	bp, ok := table.Get(0x1000)
	require.True(t, ok)
	assert.True(t, bp.Enabled)

	require.NoError(t, table.Disable(0x1000))
	assert.Equal(t, byte(0x55), patcher.mem[0x1000], "byte at addr must equal the byte before install")
	assert.False(t, bp.Enabled)
}

func TestEnableTwiceIsInvalidState(t *testing.T) {
	patcher := newFakePatcher()
	table := New(patcher)
	_, _ = table.Install(0x1000, Location{}, nil)
	require.NoError(t, table.Enable(0x1000))

	err := table.Enable(0x1000)
	assert.ErrorIs(t, err, ErrBreakpointInvalidState)
}

func TestDisableWithoutEnableIsInvalidState(t *testing.T) {
	patcher := newFakePatcher()
	table := New(patcher)
	_, _ = table.Install(0x1000, Location{}, nil)

	err := table.Disable(0x1000)
	assert.ErrorIs(t, err, ErrBreakpointInvalidState)
}

func TestAtMostOneBreakpointPerAddress(t *testing.T) {
	patcher := newFakePatcher()
	table := New(patcher)
	_, err := table.Install(0x1000, Location{}, nil)
	require.NoError(t, err)

	_, err = table.Install(0x1000, Location{}, nil)
	assert.ErrorIs(t, err, ErrBreakpointExists)
}

func TestDeleteRequiresDisabledFirst(t *testing.T) {
	patcher := newFakePatcher()
	table := New(patcher)
	_, _ = table.Install(0x1000, Location{}, nil)
	require.NoError(t, table.Enable(0x1000))

	require.NoError(t, table.Delete(0x1000))
	assert.False(t, table.IsBreakpoint(0x1000))
	assert.Equal(t, byte(0x55), patcher.mem[0x1000])
}

func TestDisableFailureLeavesTableConsistent(t *testing.T) {
	patcher := newFakePatcher()
	patcher.failRestore = true
	table := New(patcher)
	_, _ = table.Install(0x1000, Location{}, nil)
	require.NoError(t, table.Enable(0x1000))

	err := table.Disable(0x1000)
	require.Error(t, err)

	bp, _ := table.Get(0x1000)
	assert.True(t, bp.Enabled, "table must not claim disabled when the memory patch failed")
}
