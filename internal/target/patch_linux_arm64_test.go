//go:build arm64

package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchTrapAndRestoreArm64(t *testing.T) {
	const addr = 0x400000
	const original = uint64(0xAABBCCDD11223344)

	mem := newFakeMemory(addr, original)
	arm := arm64Target{}

	origBytes, err := PatchTrap(mem, arm, addr)
	require.NoError(t, err)
	require.Len(t, origBytes, 4)

	patched, _ := mem.ReadWord(addr)
	assert.Equal(t, uint64(0xAABBCCDDD4200020), patched, "only the low 32 bits should be replaced with the trap")

	err = RestoreOriginal(mem, arm, addr, origBytes)
	require.NoError(t, err)

	restored, _ := mem.ReadWord(addr)
	assert.Equal(t, original, restored)
}
