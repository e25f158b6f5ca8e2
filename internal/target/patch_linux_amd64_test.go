//go:build amd64

package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatchTrapAndRestoreAmd64(t *testing.T) {
	const addr = 0x401000
	const original = uint64(0x1122334455667788)

	mem := newFakeMemory(addr, original)
	amd := amd64Target{}

	origBytes, err := PatchTrap(mem, amd, addr)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x88}, origBytes)

	patched, _ := mem.ReadWord(addr)
	assert.Equal(t, uint64(0x11223344556677CC), patched, "only the low byte should be replaced with the trap")

	err = RestoreOriginal(mem, amd, addr, origBytes)
	require.NoError(t, err)

	restored, _ := mem.ReadWord(addr)
	assert.Equal(t, original, restored)
}
